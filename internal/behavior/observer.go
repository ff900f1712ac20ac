package behavior

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// StatusEvent describes a state change of one node instance.
type StatusEvent struct {
	Time     time.Time
	TreeUID  uuid.UUID
	TreeID   string
	NodeUID  int
	NodeID   string
	NodeName string
	NodePath string
	Previous State
	Current  State
}

// Observer receives status changes. Implementations must be safe to call
// from the goroutine ticking the tree and must not tick it themselves.
type Observer interface {
	OnStatusChange(ev StatusEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev StatusEvent)

func (f ObserverFunc) OnStatusChange(ev StatusEvent) { f(ev) }

// AddObserver subscribes o to state changes of every node in the tree.
func (t *Tree) AddObserver(o Observer) {
	if o == nil {
		return
	}
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

func (t *Tree) notify(ev StatusEvent) {
	t.obsMu.RLock()
	observers := t.observers
	t.obsMu.RUnlock()
	for _, o := range observers {
		o.OnStatusChange(ev)
	}
}

// LogObserver logs every transition, like a console tree logger.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogObserver returns an observer logging at level. A nil logger uses
// slog.Default().
func NewLogObserver(logger *slog.Logger, level slog.Level) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger, level: level}
}

func (o *LogObserver) OnStatusChange(ev StatusEvent) {
	o.logger.Log(context.Background(), o.level, "node status",
		"tree", ev.TreeID,
		"node", ev.NodeName,
		"uid", ev.NodeUID,
		"from", ev.Previous.String(),
		"to", ev.Current.String(),
	)
}
