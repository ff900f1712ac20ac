package behavior

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bt "github.com/joeycumines/go-behaviortree"
)

// DefaultTickInterval is the sleep between ticks of a Running tree used when
// none is configured.
const DefaultTickInterval = 10 * time.Millisecond

// Tree is an instantiated behavior tree. It is created once by a Factory and
// owned by the caller; nothing else retains it.
type Tree struct {
	uid    uuid.UUID
	id     string
	bb     *Blackboard
	root   *TreeNode
	nodes  []*TreeNode
	logger *slog.Logger
	wake   chan struct{}

	scripts *programCache

	obsMu     sync.RWMutex
	observers []Observer
}

func newTree(id string, bb *Blackboard, logger *slog.Logger) *Tree {
	uid := uuid.New()
	return &Tree{
		uid:    uid,
		id:     id,
		bb:     bb,
		logger: logger.With("tree", id, "tree_uid", uid.String()),
		wake:   make(chan struct{}, 1),
	}
}

// UID identifies this instance.
func (t *Tree) UID() uuid.UUID { return t.uid }

// ID is the tree ID it was created from.
func (t *Tree) ID() string { return t.id }

// Blackboard returns the root blackboard.
func (t *Tree) Blackboard() *Blackboard { return t.bb }

// RootNode returns the root node instance.
func (t *Tree) RootNode() *TreeNode { return t.root }

// Root returns the engine node of the root, for use with go-behaviortree
// tickers and managers.
func (t *Tree) Root() bt.Node { return t.root.engine }

// Nodes returns every node instance in pre-order.
func (t *Tree) Nodes() []*TreeNode {
	out := make([]*TreeNode, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// FindNode returns the first node whose name or path matches.
func (t *Tree) FindNode(nameOrPath string) (*TreeNode, bool) {
	for _, n := range t.nodes {
		if n.name == nameOrPath || n.path == nameOrPath {
			return n, true
		}
	}
	return nil, false
}

// Wake interrupts the sleep of TickWhileRunning. It never blocks.
func (t *Tree) Wake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// TickOnce ticks the root once. When the root completes, every node returns
// to Idle for the next execution.
func (t *Tree) TickOnce() (bt.Status, error) {
	status, err := t.root.engine.Tick()
	if err != nil || status != bt.Running {
		t.resetStates()
	}
	return status, err
}

// TickWhileRunning ticks until the root is no longer Running, waiting up to
// sleep between ticks. A cancelled ctx halts the tree and returns ctx.Err().
func (t *Tree) TickWhileRunning(ctx context.Context, sleep time.Duration) (bt.Status, error) {
	return t.Run(ctx, RunOptions{Interval: sleep})
}

// RunOptions controls Tree.Run.
type RunOptions struct {
	// Interval is the longest wait between Running ticks. Zero uses
	// DefaultTickInterval; a negative value does not wait at all.
	Interval time.Duration
	// MaxTicks stops the run with ErrMaxTicks once reached. Zero is unlimited.
	MaxTicks int
}

// Run drives the tree to a terminal status.
func (t *Tree) Run(ctx context.Context, opts RunOptions) (bt.Status, error) {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultTickInterval
	}
	for ticks := 1; ; ticks++ {
		if err := ctx.Err(); err != nil {
			t.Halt()
			return bt.Running, err
		}
		status, err := t.TickOnce()
		if err != nil {
			t.logger.Debug("tick failed", "tick", ticks, "error", err)
			return bt.Failure, err
		}
		if status != bt.Running {
			t.logger.Debug("tree completed", "tick", ticks, "status", StatusString(status))
			return status, nil
		}
		if opts.MaxTicks > 0 && ticks >= opts.MaxTicks {
			t.Halt()
			return bt.Running, fmt.Errorf("%w after %d ticks", ErrMaxTicks, ticks)
		}
		if interval < 0 {
			continue
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.Halt()
			return bt.Running, ctx.Err()
		case <-t.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Halt stops every Running node and resets node states. The next tick
// starts the tree from the beginning.
func (t *Tree) Halt() {
	if t.root != nil {
		t.root.haltSubtree()
	}
	t.resetStates()
}

func (t *Tree) resetStates() {
	for _, n := range t.nodes {
		n.mu.Lock()
		n.state = StateIdle
		n.mu.Unlock()
	}
}

// Stats returns the counters of every node keyed by path.
func (t *Tree) Stats() map[string]NodeStats {
	out := make(map[string]NodeStats, len(t.nodes))
	for _, n := range t.nodes {
		out[n.path] = n.Stats()
	}
	return out
}

// Print writes an indented rendering of the tree.
func (t *Tree) Print(w io.Writer) error {
	var b strings.Builder
	b.WriteString("----------------\n")
	printNode(&b, t.root, 0)
	b.WriteString("----------------\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func printNode(b *strings.Builder, n *TreeNode, depth int) {
	b.WriteString(strings.Repeat("   ", depth))
	b.WriteString(n.name)
	if n.name != n.id {
		b.WriteString(" (")
		b.WriteString(n.id)
		b.WriteString(")")
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		printNode(b, c, depth+1)
	}
}
