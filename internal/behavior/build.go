package behavior

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	bt "github.com/joeycumines/go-behaviortree"
)

// explicitTags are the generic element names that carry the node ID in an
// ID attribute, e.g. <Action ID="CheckBattery"/>.
var explicitTags = map[string]NodeKind{
	"Action":    KindAction,
	"Condition": KindCondition,
	"Control":   KindControl,
	"Decorator": KindDecorator,
}

// CreateTree instantiates a registered tree. A nil bb gets a fresh
// blackboard. The returned tree is owned by the caller.
func (f *Factory) CreateTree(id string, bb *Blackboard) (*Tree, error) {
	if bb == nil {
		bb = new(Blackboard)
	}
	def, err := f.lookupTree(id)
	if err != nil {
		return nil, err
	}
	t := newTree(id, bb, f.logger)
	t.scripts = f.scripts
	b := &treeBuilder{f: f, tree: t}
	root, err := b.build(def.root, bb, nil, []string{id})
	if err != nil {
		return nil, err
	}
	t.root = root
	f.logger.Debug("created tree", "tree", id, "uid", t.uid.String(), "nodes", len(t.nodes))
	return t, nil
}

type treeBuilder struct {
	f    *Factory
	tree *Tree
}

func (b *treeBuilder) newNode(id string, kind NodeKind, attrs map[string]string, m Manifest, bb *Blackboard, parent *TreeNode) *TreeNode {
	name := attrs["name"]
	if name == "" {
		name = id
	}
	path := name
	if parent != nil {
		path = parent.path + "/" + name
	}
	n := &TreeNode{
		uid:      len(b.tree.nodes) + 1,
		id:       id,
		name:     name,
		kind:     kind,
		path:     path,
		attrs:    attrs,
		manifest: m,
		bb:       bb,
		tree:     b.tree,
		parent:   parent,
	}
	b.tree.nodes = append(b.tree.nodes, n)
	return n
}

func (b *treeBuilder) build(el *element, bb *Blackboard, parent *TreeNode, stack []string) (*TreeNode, error) {
	if el.tag == "SubTree" {
		return b.buildSubTree(el, bb, parent, stack)
	}

	id := el.tag
	attrs := maps.Clone(el.attrs)
	if attrs == nil {
		attrs = make(map[string]string)
	}
	explicitKind, explicit := explicitTags[el.tag]
	if explicit {
		id = attrs["ID"]
		if id == "" {
			return nil, el.errorf(ErrMalformed, "<%s> without ID", el.tag)
		}
		delete(attrs, "ID")
	}

	reg, ok := b.f.lookup(id)
	if !ok {
		return nil, el.errorf(ErrUnknownNode, "%q is not registered", id)
	}
	m := reg.manifest
	if explicit && explicitKind != m.Kind {
		return nil, el.errorf(ErrMalformed, "%q is registered as %s, not %s", id, m.Kind, el.tag)
	}
	if err := m.Kind.checkChildren(len(el.children)); err != nil {
		return nil, el.errorf(ErrMalformed, "%s: %v", id, err)
	}
	if err := checkPorts(m, attrs); err != nil {
		return nil, &DefinitionError{Source: el.source, Line: el.line, Err: err}
	}

	n := b.newNode(id, m.Kind, attrs, m, bb, parent)
	conds, err := compileConditions(b.f.scripts, attrs)
	if err != nil {
		return nil, el.errorf(ErrMalformed, "%s: %v", n.name, err)
	}
	n.conds = conds

	children := make([]bt.Node, 0, len(el.children))
	for _, c := range el.children {
		child, err := b.build(c, bb, n, stack)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
		children = append(children, child.engine)
	}

	tick, err := reg.build(n, children)
	if err != nil {
		return nil, &DefinitionError{Source: el.source, Line: el.line, Err: fmt.Errorf("building %q: %w", n.name, err)}
	}
	if tick == nil {
		return nil, el.errorf(ErrMalformed, "builder for %q returned no tick", id)
	}
	n.engine = n.wrap(bt.New(tick, children...))
	return n, nil
}

func (b *treeBuilder) buildSubTree(el *element, bb *Blackboard, parent *TreeNode, stack []string) (*TreeNode, error) {
	id, _ := el.attr("ID")
	if id == "" {
		return nil, el.errorf(ErrMalformed, "<SubTree> without ID")
	}
	if slices.Contains(stack, id) {
		return nil, el.errorf(ErrRecursiveSubTree, "%s", strings.Join(append(slices.Clone(stack), id), " -> "))
	}
	def, err := b.f.lookupTree(id)
	if err != nil {
		return nil, &DefinitionError{Source: el.source, Line: el.line, Err: err}
	}

	attrs := maps.Clone(el.attrs)
	autoremap := false
	if v, ok := attrs["_autoremap"]; ok {
		autoremap, err = strconv.ParseBool(v)
		if err != nil {
			return nil, el.errorf(ErrMalformed, "invalid _autoremap %q", v)
		}
	}
	remap := make(map[string]string)
	literals := make(map[string]string)
	for _, k := range el.keys {
		if k == "ID" || k == "name" || strings.HasPrefix(k, "_") {
			continue
		}
		v := attrs[k]
		if key, ok := blackboardKey(k, v); ok {
			remap[k] = key
		} else {
			literals[k] = v
		}
	}
	scope := bb.NewChild(remap, autoremap)
	for k, v := range literals {
		scope.setLocal(k, v)
	}

	if attrs["name"] == "" {
		attrs["name"] = id
	}
	n := b.newNode("SubTree", KindSubTree, attrs, Manifest{ID: "SubTree", Kind: KindSubTree}, scope, parent)
	n.conds, err = compileConditions(b.f.scripts, attrs)
	if err != nil {
		return nil, el.errorf(ErrMalformed, "%s: %v", n.name, err)
	}

	root, err := b.build(def.root, scope, n, append(slices.Clone(stack), id))
	if err != nil {
		return nil, err
	}
	n.children = []*TreeNode{root}
	n.engine = n.wrap(bt.New(passthrough, root.engine))
	return n, nil
}

// passthrough ticks the single child of a SubTree node.
func passthrough(children []bt.Node) (bt.Status, error) {
	return children[0].Tick()
}

// checkPorts rejects undeclared attributes on nodes that declare ports.
func checkPorts(m Manifest, attrs map[string]string) error {
	if len(m.Ports) == 0 {
		return nil
	}
	for k := range attrs {
		if k == "name" || k == "ID" || strings.HasPrefix(k, "_") {
			continue
		}
		if _, ok := m.Port(k); !ok {
			return fmt.Errorf("%w: %q has no port %q", ErrPort, m.ID, k)
		}
	}
	return nil
}
