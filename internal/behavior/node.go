package behavior

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
)

// TreeNode is one node instance of a Tree. Callbacks receive it to read
// their ports, write outputs and reach the blackboard.
type TreeNode struct {
	uid      int
	id       string
	name     string
	kind     NodeKind
	path     string
	attrs    map[string]string
	manifest Manifest
	bb       *Blackboard
	tree     *Tree
	parent   *TreeNode
	children []*TreeNode

	engine bt.Node
	halts  []func()
	conds  *conditions

	mu    sync.Mutex
	state State
	stats NodeStats
}

// NodeStats counts the outcomes of a node instance.
type NodeStats struct {
	Ticks     int
	Successes int
	Failures  int
	Running   int
	Skipped   int
	Last      State
}

// UID is unique within the tree and follows pre-order.
func (n *TreeNode) UID() int { return n.uid }

// ID is the registration ID, e.g. "Sequence" or "CheckBattery".
func (n *TreeNode) ID() string { return n.id }

// Name is the instance name, defaulting to the ID.
func (n *TreeNode) Name() string { return n.name }

// Kind is the registered kind of the node.
func (n *TreeNode) Kind() NodeKind { return n.kind }

// Path is the slash-separated chain of names from the tree root.
func (n *TreeNode) Path() string { return n.path }

// Parent returns the enclosing node, or nil for the root.
func (n *TreeNode) Parent() *TreeNode { return n.parent }

// Children returns the child instances.
func (n *TreeNode) Children() []*TreeNode { return n.children }

// Blackboard returns the scope the node's ports resolve in.
func (n *TreeNode) Blackboard() *Blackboard { return n.bb }

// Tree returns the owning tree.
func (n *TreeNode) Tree() *Tree { return n.tree }

// Logger returns the tree logger annotated with this node.
func (n *TreeNode) Logger() *slog.Logger {
	return n.tree.logger.With("node", n.name, "uid", n.uid)
}

// Wake interrupts the sleep of Tree.TickWhileRunning. Asynchronous nodes
// call it once they have a result.
func (n *TreeNode) Wake() {
	n.tree.Wake()
}

// Attributes returns a copy of the attributes given in the definition.
func (n *TreeNode) Attributes() map[string]string {
	return maps.Clone(n.attrs)
}

// State returns the state recorded by the latest tick.
func (n *TreeNode) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Stats returns the outcome counters of the node.
func (n *TreeNode) Stats() NodeStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.stats
	s.Last = n.state
	return s
}

// Engine returns the go-behaviortree node of this instance.
func (n *TreeNode) Engine() bt.Node { return n.engine }

// rawPort returns the attribute text of a port, falling back to the
// declared default.
func (n *TreeNode) rawPort(name string) (string, bool) {
	if v, ok := n.attrs[name]; ok {
		return v, true
	}
	if p, ok := n.manifest.Port(name); ok && p.Default != "" {
		return p.Default, true
	}
	return "", false
}

// blackboardKey extracts the key of a {key} reference. {=} refers to the key
// named like the port.
func blackboardKey(port, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return "", false
	}
	key := strings.TrimSpace(raw[1 : len(raw)-1])
	if key == "=" {
		key = port
	}
	return key, key != ""
}

// InputValue resolves a port: a {key} reference yields the blackboard value,
// anything else the literal text.
func (n *TreeNode) InputValue(name string) (any, bool) {
	raw, ok := n.rawPort(name)
	if !ok {
		return nil, false
	}
	if key, ok := blackboardKey(name, raw); ok {
		return n.bb.Lookup(key)
	}
	return raw, true
}

// Input resolves a port as text.
func (n *TreeNode) Input(name string) (string, bool) {
	v, ok := n.InputValue(name)
	if !ok {
		return "", false
	}
	return toString(v), true
}

func (n *TreeNode) missingPort(name string) error {
	return fmt.Errorf("%w: %s: input %q not set", ErrPort, n.name, name)
}

// InputInt resolves a port as an integer.
func (n *TreeNode) InputInt(name string) (int, error) {
	v, ok := n.InputValue(name)
	if !ok {
		return 0, n.missingPort(name)
	}
	i, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: input %q: %v", ErrPort, n.name, name, err)
	}
	return i, nil
}

// InputBool resolves a port as a boolean.
func (n *TreeNode) InputBool(name string) (bool, error) {
	v, ok := n.InputValue(name)
	if !ok {
		return false, n.missingPort(name)
	}
	switch v := v.(type) {
	case bool:
		return v, nil
	default:
		b, err := strconv.ParseBool(strings.TrimSpace(toString(v)))
		if err != nil {
			return false, fmt.Errorf("%w: %s: input %q: %v", ErrPort, n.name, name, err)
		}
		return b, nil
	}
}

// InputDuration resolves a port as a duration. Bare integers are
// milliseconds.
func (n *TreeNode) InputDuration(name string) (time.Duration, error) {
	v, ok := n.InputValue(name)
	if !ok {
		return 0, n.missingPort(name)
	}
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	if ms, err := toInt(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(toString(v)))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: input %q: %v", ErrPort, n.name, name, err)
	}
	return d, nil
}

// SetOutput writes value to the blackboard key the port refers to.
func (n *TreeNode) SetOutput(name string, value any) error {
	if p, ok := n.manifest.Port(name); ok && p.Direction == PortInput {
		return fmt.Errorf("%w: %s: %q is an input port", ErrPort, n.name, name)
	}
	raw, ok := n.rawPort(name)
	if !ok {
		return fmt.Errorf("%w: %s: output %q not connected", ErrPort, n.name, name)
	}
	key, ok := blackboardKey(name, raw)
	if !ok {
		return fmt.Errorf("%w: %s: output %q must be a {key} reference, got %q", ErrPort, n.name, name, raw)
	}
	n.bb.Set(key, value)
	return nil
}

func toString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt(v any) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int(f), nil
}
