package behavior

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/require"
)

const yamlMain = `btcpp_format: "4"
main_tree_to_execute: Main
trees:
  - id: Main
    root:
      type: Sequence
      name: root_sequence
      children:
        - type: Counter
          ports:
            key: a
        - type: SubTree
          ports:
            ID: Sub
            value: "{a}"
  - id: Sub
    root:
      type: SetBlackboard
      ports:
        value: "{value}"
        output_key: "@copied"
`

const xmlMain = `<root BTCPP_format="4" main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Sequence name="root_sequence">
      <Counter key="a"/>
      <SubTree ID="Sub" value="{a}"/>
    </Sequence>
  </BehaviorTree>
  <BehaviorTree ID="Sub">
    <SetBlackboard value="{value}" output_key="@copied"/>
  </BehaviorTree>
</root>`

func TestDefinition_XMLAndYAMLAreEquivalent(t *testing.T) {
	t.Parallel()

	for name, text := range map[string]string{"xml": xmlMain, "yaml": yamlMain} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newTestFactory(t)
			tree, err := f.CreateTreeFromText(text, nil)
			require.NoError(t, err)
			require.Equal(t, "Main", tree.ID())
			require.Equal(t, []string{"Main", "Sub"}, f.TreeIDs())
			require.Equal(t, "Main", f.MainTreeID())

			status, err := runTree(t, tree)
			require.NoError(t, err)
			require.Equal(t, bt.Success, status)
			require.Equal(t, 1, tree.Blackboard().Get("a"))
			require.Equal(t, 1, tree.Blackboard().Get("copied"))

			var paths []string
			for _, n := range tree.Nodes() {
				paths = append(paths, n.Path())
			}
			require.Equal(t, []string{
				"root_sequence",
				"root_sequence/Counter",
				"root_sequence/Sub",
				"root_sequence/Sub/SetBlackboard",
			}, paths)
		})
	}
}

func TestDefinition_ExplicitCategoryForm(t *testing.T) {
	t.Parallel()

	tree, status := runXML(t, `<Control ID="Sequence">
      <Action ID="Counter" key="x"/>
      <Decorator ID="Inverter"><Action ID="AlwaysFailure"/></Decorator>
    </Control>`)
	require.Equal(t, bt.Success, status)
	require.Equal(t, 1, tree.Blackboard().Get("x"))
}

func TestDefinition_ExplicitCategoryMismatch(t *testing.T) {
	t.Parallel()

	_, err := newTestFactory(t).CreateTreeFromText(xmlTree(`<Condition ID="Counter"/>`), nil)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDefinition_UnknownNode(t *testing.T) {
	t.Parallel()

	_, err := newTestFactory(t).CreateTreeFromText(xmlTree(`<Sequence>
      <NoSuchNode/>
    </Sequence>`), nil)
	require.ErrorIs(t, err, ErrUnknownNode)
	require.True(t, IsDefinitionError(err))

	var de *DefinitionError
	require.True(t, errors.As(err, &de))
	require.Equal(t, 4, de.Line)
}

func TestDefinition_Malformed(t *testing.T) {
	t.Parallel()

	for name, text := range map[string]string{
		"not root":        `<tree/>`,
		"no tree id":      `<root BTCPP_format="4"><BehaviorTree><AlwaysSuccess/></BehaviorTree></root>`,
		"two roots":       `<root BTCPP_format="4"><BehaviorTree ID="A"><AlwaysSuccess/><AlwaysSuccess/></BehaviorTree></root>`,
		"bad format":      `<root BTCPP_format="3"><BehaviorTree ID="A"><AlwaysSuccess/></BehaviorTree></root>`,
		"unclosed":        `<root BTCPP_format="4"><BehaviorTree ID="A">`,
		"unexpected tag":  `<root BTCPP_format="4"><Sequence/></root>`,
		"yaml no type":    "trees:\n  - id: A\n    root:\n      name: x\n",
		"yaml no root":    "trees:\n  - id: A\n",
		"yaml bad field":  "trees:\n  - id: A\n    rooot: {}\n",
		"yaml map port":   "trees:\n  - id: A\n    root:\n      type: Sleep\n      ports:\n        msec: {a: 1}\n",
		"decorator arity": `<root BTCPP_format="4"><BehaviorTree ID="A"><Inverter/></BehaviorTree></root>`,
		"leaf arity":      `<root BTCPP_format="4"><BehaviorTree ID="A"><AlwaysSuccess><AlwaysSuccess/></AlwaysSuccess></BehaviorTree></root>`,
		"undeclared port": `<root BTCPP_format="4"><BehaviorTree ID="A"><Sleep msec="1" seconds="2"/></BehaviorTree></root>`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFactory().CreateTreeFromText(text, nil)
			require.Error(t, err)
			require.True(t, IsDefinitionError(err), "%v", err)
		})
	}
}

func TestDefinition_DuplicateTreeID(t *testing.T) {
	t.Parallel()

	f := NewFactory()
	doc := `<root BTCPP_format="4"><BehaviorTree ID="A"><AlwaysSuccess/></BehaviorTree></root>`
	require.NoError(t, f.RegisterTreeFromText(doc))
	require.ErrorIs(t, f.RegisterTreeFromText(doc), ErrMalformed)

	f.ClearRegisteredTrees()
	require.Empty(t, f.TreeIDs())
	require.NoError(t, f.RegisterTreeFromText(doc))
}

func TestDefinition_MainTreeSelection(t *testing.T) {
	t.Parallel()

	f := NewFactory()
	tree, err := f.CreateTreeFromText(`<root BTCPP_format="4">
  <BehaviorTree ID="First"><AlwaysSuccess/></BehaviorTree>
  <BehaviorTree ID="Second"><AlwaysFailure/></BehaviorTree>
</root>`, nil)
	require.NoError(t, err)
	require.Equal(t, "First", tree.ID())

	_, err = f.CreateTree("Missing", nil)
	require.ErrorIs(t, err, ErrUnknownTree)
}

func TestDefinition_RecursiveSubTree(t *testing.T) {
	t.Parallel()

	f := NewFactory()
	require.NoError(t, f.RegisterTreeFromText(`<root BTCPP_format="4">
  <BehaviorTree ID="A"><SubTree ID="B"/></BehaviorTree>
  <BehaviorTree ID="B"><Sequence><SubTree ID="A"/></Sequence></BehaviorTree>
</root>`))
	_, err := f.CreateTree("A", nil)
	require.ErrorIs(t, err, ErrRecursiveSubTree)
	require.Contains(t, err.Error(), "A -> B -> A")
}

func TestDefinition_SubTreeReusedNotRecursive(t *testing.T) {
	t.Parallel()

	tree, err := newTestFactory(t).CreateTreeFromText(`<root BTCPP_format="4" main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Sequence>
      <SubTree ID="Inc" _autoremap="true"/>
      <SubTree ID="Inc" _autoremap="true"/>
    </Sequence>
  </BehaviorTree>
  <BehaviorTree ID="Inc"><Counter key="n"/></BehaviorTree>
</root>`, nil)
	require.NoError(t, err)
	status, err := runTree(t, tree)
	require.NoError(t, err)
	require.Equal(t, bt.Success, status)
	require.Equal(t, 2, tree.Blackboard().Get("n"))
}

func TestDefinition_SubTreePorts(t *testing.T) {
	t.Parallel()

	tree, err := newTestFactory(t).CreateTreeFromText(`<root BTCPP_format="4" main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Sequence>
      <SetBlackboard value="hello" output_key="msg"/>
      <SubTree ID="Echo" name="by_ref" text="{msg}" out="{ref}"/>
      <SubTree ID="Echo" name="by_literal" text="literal" out="{lit}"/>
    </Sequence>
  </BehaviorTree>
  <BehaviorTree ID="Echo">
    <Sequence>
      <SetBlackboard value="{text}" output_key="out"/>
      <SetBlackboard value="private" output_key="scratch"/>
    </Sequence>
  </BehaviorTree>
</root>`, nil)
	require.NoError(t, err)
	status, err := runTree(t, tree)
	require.NoError(t, err)
	require.Equal(t, bt.Success, status)

	bb := tree.Blackboard()
	require.Equal(t, "hello", bb.Get("ref"))
	require.Equal(t, "literal", bb.Get("lit"))
	require.False(t, bb.Has("scratch"))
	require.False(t, bb.Has("text"))

	n, ok := tree.FindNode("by_literal")
	require.True(t, ok)
	require.Equal(t, KindSubTree, n.Kind())
	require.Equal(t, "Sequence/by_literal/Sequence", n.Children()[0].Path())
}

func TestDefinition_IncludeFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	require.NoError(t, os.Mkdir(lib, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "sub.yaml"), []byte(`btcpp_format: "4"
trees:
  - id: Sub
    root:
      type: Counter
      ports:
        key: "@visits"
`), 0o644))
	main := filepath.Join(dir, "main.xml")
	require.NoError(t, os.WriteFile(main, []byte(`<root BTCPP_format="4" main_tree_to_execute="Main">
  <include path="lib/sub.yaml"/>
  <BehaviorTree ID="Main">
    <SubTree ID="Sub"/>
  </BehaviorTree>
</root>`), 0o644))

	f := newTestFactory(t)
	tree, err := f.CreateTreeFromFile(main, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Main", "Sub"}, f.TreeIDs())
	status, err := runTree(t, tree)
	require.NoError(t, err)
	require.Equal(t, bt.Success, status)
	require.Equal(t, 1, tree.Blackboard().Get("visits"))
}

func TestDefinition_IncludeSearchPath(t *testing.T) {
	t.Parallel()

	shared := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(shared, "common.xml"), []byte(`<root BTCPP_format="4">
  <BehaviorTree ID="Common"><AlwaysSuccess/></BehaviorTree>
</root>`), 0o644))
	main := filepath.Join(t.TempDir(), "main.xml")
	require.NoError(t, os.WriteFile(main, []byte(`<root BTCPP_format="4" main_tree_to_execute="Main">
  <include path="common.xml"/>
  <BehaviorTree ID="Main"><SubTree ID="Common"/></BehaviorTree>
</root>`), 0o644))

	_, err := NewFactory().CreateTreeFromFile(main, nil)
	require.Error(t, err)

	tree, err := NewFactory(WithSearchPaths(shared)).CreateTreeFromFile(main, nil)
	require.NoError(t, err)
	require.Equal(t, "Main", tree.ID())
}

func TestDefinition_IncludeTwice(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte(`<root BTCPP_format="4">
  <BehaviorTree ID="A"><AlwaysSuccess/></BehaviorTree>
</root>`), 0o644))
	main := filepath.Join(dir, "main.xml")
	require.NoError(t, os.WriteFile(main, []byte(`<root BTCPP_format="4">
  <include path="a.xml"/>
  <include path="./a.xml"/>
  <BehaviorTree ID="Main"><SubTree ID="A"/></BehaviorTree>
</root>`), 0o644))

	err := NewFactory().RegisterTreeFromFile(main)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDefinition_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewFactory().CreateTreeFromFile(filepath.Join(t.TempDir(), "nope.xml"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.False(t, IsDefinitionError(err))
}
