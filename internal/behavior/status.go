package behavior

import (
	"fmt"
	"strings"

	bt "github.com/joeycumines/go-behaviortree"
)

// State is the observable state of a node instance. It extends bt.Status
// with Idle (not ticked in the current execution) and Skipped (a
// precondition short-circuited the node).
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSuccess
	StateFailure
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailure:
		return "FAILURE"
	case StateSkipped:
		return "SKIPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Completed reports whether s is a terminal outcome of a tick.
func (s State) Completed() bool {
	return s == StateSuccess || s == StateFailure || s == StateSkipped
}

// stateOf maps an engine status onto a State. Anything unrecognised is a
// failure, matching how go-behaviortree treats invalid statuses.
func stateOf(status bt.Status) State {
	switch status {
	case bt.Running:
		return StateRunning
	case bt.Success:
		return StateSuccess
	default:
		return StateFailure
	}
}

// StatusString renders a bt.Status the way tree definitions spell it.
func StatusString(status bt.Status) string {
	return stateOf(status).String()
}

// ParseStatus parses SUCCESS, FAILURE or RUNNING, case-insensitively.
func ParseStatus(s string) (bt.Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS":
		return bt.Success, nil
	case "FAILURE":
		return bt.Failure, nil
	case "RUNNING":
		return bt.Running, nil
	default:
		return bt.Failure, fmt.Errorf("invalid status %q", s)
	}
}
