package behavior

import (
	"fmt"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
)

// wrap installs the per-instance tick hook around an engine node: pre and
// post conditions, panic recovery, statistics and observer notification.
func (n *TreeNode) wrap(inner bt.Node) bt.Node {
	return func() (bt.Tick, []bt.Node) {
		tick, children := inner()
		if tick == nil {
			return nil, children
		}
		return func(children []bt.Node) (bt.Status, error) {
			return n.tick(tick, children)
		}, children
	}
}

func (n *TreeNode) tick(tick bt.Tick, children []bt.Node) (bt.Status, error) {
	if n.conds != nil {
		state, done, err := n.conds.pre(n, n.State())
		if err != nil {
			n.record(StateFailure)
			return bt.Failure, err
		}
		if done {
			if err := n.conds.post(n, state); err != nil {
				n.record(StateFailure)
				return bt.Failure, err
			}
			n.record(state)
			return engineStatus(state), nil
		}
	}

	status, err := n.safeTick(tick, children)
	state := stateOf(status)
	if err != nil {
		status, state = bt.Failure, StateFailure
	}
	if n.conds != nil && state.Completed() {
		if perr := n.conds.post(n, state); perr != nil && err == nil {
			status, state, err = bt.Failure, StateFailure, perr
		}
	}
	n.record(state)
	return status, err
}

func (n *TreeNode) safeTick(tick bt.Tick, children []bt.Node) (status bt.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = bt.Failure, fmt.Errorf("panic in %s: %v", n.path, r)
		}
	}()
	return tick(children)
}

// engineStatus maps a State back onto the engine. Skipped nodes let their
// parent continue, so they count as success.
func engineStatus(s State) bt.Status {
	switch s {
	case StateRunning:
		return bt.Running
	case StateFailure:
		return bt.Failure
	default:
		return bt.Success
	}
}

func (n *TreeNode) record(state State) {
	n.mu.Lock()
	prev := n.state
	n.state = state
	n.stats.Ticks++
	switch state {
	case StateSuccess:
		n.stats.Successes++
	case StateFailure:
		n.stats.Failures++
	case StateRunning:
		n.stats.Running++
	case StateSkipped:
		n.stats.Skipped++
	}
	n.mu.Unlock()

	if prev != state {
		n.tree.notify(StatusEvent{
			Time:     time.Now(),
			TreeUID:  n.tree.uid,
			TreeID:   n.tree.id,
			NodeUID:  n.uid,
			NodeID:   n.id,
			NodeName: n.name,
			NodePath: n.path,
			Previous: prev,
			Current:  state,
		})
	}
}

// onHalt registers fn to run when n is halted. Builders use it to discard
// per-execution progress, so a halted node starts over on its next tick.
func (n *TreeNode) onHalt(fn func()) {
	n.halts = append(n.halts, fn)
}

// haltSubtree halts the nodes under and including n, children first.
func (n *TreeNode) haltSubtree() {
	for _, c := range n.children {
		c.haltSubtree()
	}
	for _, fn := range n.halts {
		fn()
	}
	n.mu.Lock()
	n.state = StateIdle
	n.mu.Unlock()
}
