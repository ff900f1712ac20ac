package behavior

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	bt "github.com/joeycumines/go-behaviortree"
)

// NodeKind classifies a registered node by the number of children it takes.
type NodeKind int

const (
	// KindAction is a leaf that does work.
	KindAction NodeKind = iota + 1
	// KindCondition is a leaf that only inspects state.
	KindCondition
	// KindControl has one or more children.
	KindControl
	// KindDecorator has exactly one child.
	KindDecorator
	// KindSubTree is an expanded SubTree reference.
	KindSubTree
)

func (k NodeKind) String() string {
	switch k {
	case KindAction:
		return "Action"
	case KindCondition:
		return "Condition"
	case KindControl:
		return "Control"
	case KindDecorator:
		return "Decorator"
	case KindSubTree:
		return "SubTree"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// checkChildren validates the child count of a node of kind k.
func (k NodeKind) checkChildren(n int) error {
	switch k {
	case KindAction, KindCondition:
		if n != 0 {
			return fmt.Errorf("%s nodes take no children, got %d", k, n)
		}
	case KindDecorator, KindSubTree:
		if n != 1 {
			return fmt.Errorf("%s nodes take exactly one child, got %d", k, n)
		}
	case KindControl:
		if n == 0 {
			return fmt.Errorf("%s nodes need at least one child", k)
		}
	}
	return nil
}

// PortDirection is the data flow direction of a port.
type PortDirection int

const (
	PortInput PortDirection = iota
	PortOutput
	PortInOut
)

func (d PortDirection) String() string {
	switch d {
	case PortInput:
		return "input_port"
	case PortOutput:
		return "output_port"
	case PortInOut:
		return "inout_port"
	default:
		return fmt.Sprintf("PortDirection(%d)", int(d))
	}
}

// PortInfo declares a port of a registered node.
type PortInfo struct {
	Name        string
	Direction   PortDirection
	Default     string
	Description string
}

// InputPort declares an input port. def is used when the attribute is absent.
func InputPort(name, def, description string) PortInfo {
	return PortInfo{Name: name, Direction: PortInput, Default: def, Description: description}
}

// OutputPort declares an output port.
func OutputPort(name, def, description string) PortInfo {
	return PortInfo{Name: name, Direction: PortOutput, Default: def, Description: description}
}

// InOutPort declares a port that is both read and written.
func InOutPort(name, def, description string) PortInfo {
	return PortInfo{Name: name, Direction: PortInOut, Default: def, Description: description}
}

// Manifest is the registered model of a node ID.
type Manifest struct {
	ID    string
	Kind  NodeKind
	Ports []PortInfo
	// Builtin is true for nodes pre-registered by NewFactory.
	Builtin bool
}

// Port returns the declared port with the given name.
func (m Manifest) Port(name string) (PortInfo, bool) {
	for _, p := range m.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortInfo{}, false
}

// SimpleFunc is the callback of a simple action or condition.
type SimpleFunc func(n *TreeNode) bt.Status

// Simple adapts a zero-argument callback to a SimpleFunc.
func Simple(fn func() bt.Status) SimpleFunc {
	return func(*TreeNode) bt.Status { return fn() }
}

// Ticker is implemented by node types registered with RegisterNodeType.
// A fresh value is constructed for every instance in every tree.
type Ticker interface {
	Tick(n *TreeNode) bt.Status
}

// Constructor builds the Ticker of one node instance.
type Constructor func(n *TreeNode) (Ticker, error)

// StatefulAction is an action that may stay Running across several ticks.
// OnStart is called on the first tick of an execution, OnRunning on each
// following tick until a non-Running status is returned.
type StatefulAction interface {
	OnStart(n *TreeNode) bt.Status
	OnRunning(n *TreeNode) bt.Status
}

// Halter is optionally implemented by a StatefulAction that needs to clean up
// when the tree is halted while it is Running.
type Halter interface {
	OnHalted(n *TreeNode)
}

// StatefulConstructor builds the StatefulAction of one node instance.
type StatefulConstructor func(n *TreeNode) (StatefulAction, error)

// Builder is the low-level hook used by builtin nodes. It receives the node
// instance and its already-built children and returns the engine tick.
type Builder func(n *TreeNode, children []bt.Node) (bt.Tick, error)

type registration struct {
	manifest Manifest
	build    Builder
}

// reservedIDs are element names with structural meaning in definitions.
var reservedIDs = []string{
	"root", "BehaviorTree", "TreeNodesModel", "include", "SubTree",
	"Action", "Condition", "Control", "Decorator",
}

// Factory maps node IDs to builders and tree IDs to definitions, and
// instantiates trees from them.
type Factory struct {
	mu          sync.RWMutex
	nodes       map[string]*registration
	trees       map[string]*treeDef
	treeOrder   []string
	mainTree    string
	logger      *slog.Logger
	searchPaths []string
	scripts     *programCache
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger used by the factory and the trees it creates.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithSearchPaths adds directories searched when an include path is not
// found relative to the including file.
func WithSearchPaths(paths ...string) FactoryOption {
	return func(f *Factory) {
		f.searchPaths = append(f.searchPaths, paths...)
	}
}

// WithScriptCacheSize bounds the number of compiled expressions retained.
func WithScriptCacheSize(size int) FactoryOption {
	return func(f *Factory) {
		f.scripts = newProgramCache(size)
	}
}

// NewFactory returns a factory with the builtin nodes registered.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		nodes:   make(map[string]*registration),
		trees:   make(map[string]*treeDef),
		logger:  slog.Default(),
		scripts: newProgramCache(DefaultScriptCacheSize),
	}
	for _, opt := range opts {
		opt(f)
	}
	registerBuiltins(f)
	return f
}

// Logger returns the factory logger.
func (f *Factory) Logger() *slog.Logger {
	return f.logger
}

// RegisterBuilder registers a node ID backed by a Builder.
func (f *Factory) RegisterBuilder(id string, kind NodeKind, build Builder, ports ...PortInfo) error {
	return f.register(Manifest{ID: id, Kind: kind, Ports: ports}, build)
}

func (f *Factory) register(m Manifest, build Builder) error {
	if m.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrInvalidID)
	}
	if slices.Contains(reservedIDs, m.ID) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidID, m.ID)
	}
	if build == nil {
		return fmt.Errorf("%w: %q has no builder", ErrInvalidID, m.ID)
	}
	switch m.Kind {
	case KindAction, KindCondition, KindControl, KindDecorator:
	default:
		return fmt.Errorf("%w: %q has unsupported kind %s", ErrInvalidID, m.ID, m.Kind)
	}
	seen := make(map[string]bool, len(m.Ports))
	for _, p := range m.Ports {
		if p.Name == "" || p.Name == "name" || p.Name == "ID" || p.Name[0] == '_' {
			return fmt.Errorf("%w: %q declares reserved port name %q", ErrPort, m.ID, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %q declares port %q twice", ErrPort, m.ID, p.Name)
		}
		seen[p.Name] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[m.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, m.ID)
	}
	f.nodes[m.ID] = &registration{manifest: m, build: build}
	f.logger.Debug("registered node", "id", m.ID, "kind", m.Kind.String())
	return nil
}

// RegisterSimpleAction registers an action backed by a plain callback.
func (f *Factory) RegisterSimpleAction(id string, fn SimpleFunc, ports ...PortInfo) error {
	return f.registerSimple(id, KindAction, fn, ports)
}

// RegisterSimpleCondition registers a condition backed by a plain callback.
func (f *Factory) RegisterSimpleCondition(id string, fn SimpleFunc, ports ...PortInfo) error {
	return f.registerSimple(id, KindCondition, fn, ports)
}

func (f *Factory) registerSimple(id string, kind NodeKind, fn SimpleFunc, ports []PortInfo) error {
	if fn == nil {
		return fmt.Errorf("%w: %q has a nil callback", ErrInvalidID, id)
	}
	return f.register(Manifest{ID: id, Kind: kind, Ports: ports}, func(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
		return func([]bt.Node) (bt.Status, error) {
			return fn(n), nil
		}, nil
	})
}

// RegisterNodeType registers an action whose instances are built by ctor.
func (f *Factory) RegisterNodeType(id string, ctor Constructor, ports ...PortInfo) error {
	if ctor == nil {
		return fmt.Errorf("%w: %q has a nil constructor", ErrInvalidID, id)
	}
	return f.register(Manifest{ID: id, Kind: KindAction, Ports: ports}, func(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
		ticker, err := ctor(n)
		if err != nil {
			return nil, err
		}
		if ticker == nil {
			return nil, fmt.Errorf("constructor for %q returned nil", id)
		}
		return func([]bt.Node) (bt.Status, error) {
			return ticker.Tick(n), nil
		}, nil
	})
}

// RegisterStatefulAction registers an action that may run across ticks.
func (f *Factory) RegisterStatefulAction(id string, ctor StatefulConstructor, ports ...PortInfo) error {
	if ctor == nil {
		return fmt.Errorf("%w: %q has a nil constructor", ErrInvalidID, id)
	}
	return f.register(Manifest{ID: id, Kind: KindAction, Ports: ports}, func(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
		action, err := ctor(n)
		if err != nil {
			return nil, err
		}
		if action == nil {
			return nil, fmt.Errorf("constructor for %q returned nil", id)
		}
		return statefulTick(n, action), nil
	})
}

// statefulTick drives a StatefulAction and installs its halt hook.
func statefulTick(n *TreeNode, action StatefulAction) bt.Tick {
	var (
		mu      sync.Mutex
		running bool
	)
	n.onHalt(func() {
		mu.Lock()
		wasRunning := running
		running = false
		mu.Unlock()
		if h, ok := action.(Halter); ok && wasRunning {
			h.OnHalted(n)
		}
	})
	return func([]bt.Node) (bt.Status, error) {
		mu.Lock()
		started := running
		mu.Unlock()
		var status bt.Status
		if started {
			status = action.OnRunning(n)
		} else {
			status = action.OnStart(n)
		}
		mu.Lock()
		running = status == bt.Running
		mu.Unlock()
		return status, nil
	}
}

// Unregister removes a node ID. It reports whether the ID was registered.
func (f *Factory) Unregister(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[id]; !ok {
		return false
	}
	delete(f.nodes, id)
	return true
}

// Manifest returns the model registered under id.
func (f *Factory) Manifest(id string) (Manifest, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.nodes[id]
	if !ok {
		return Manifest{}, false
	}
	return r.manifest, true
}

// Manifests returns every registered model, sorted by ID.
func (f *Factory) Manifests() []Manifest {
	f.mu.RLock()
	out := make([]Manifest, 0, len(f.nodes))
	for _, r := range f.nodes {
		out = append(out, r.manifest)
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Factory) lookup(id string) (*registration, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.nodes[id]
	return r, ok
}
