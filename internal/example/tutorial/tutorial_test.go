package tutorial

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/btrun/internal/behavior"
)

func newFactory(t *testing.T) (*behavior.Factory, *GripperInterface, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	g := NewGripperInterface(&out)
	f := behavior.NewFactory()
	require.NoError(t, Register(f, g, &out))
	return f, g, &out
}

func run(t *testing.T, tree *behavior.Tree) bt.Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := tree.TickWhileRunning(ctx, behavior.DefaultTickInterval)
	require.NoError(t, err)
	return status
}

func TestCheckBattery(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	for range 3 {
		require.Equal(t, bt.Success, CheckBattery(&out))
	}
	assert.Equal(t, strings.Repeat("[ Battery: OK ]\n", 3), out.String())
}

func TestGripperInterface(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	g := NewGripperInterface(&out)
	require.True(t, g.IsOpen())

	require.Equal(t, bt.Success, g.Close())
	require.False(t, g.IsOpen())
	require.Equal(t, bt.Success, g.Close())
	require.False(t, g.IsOpen())

	require.Equal(t, bt.Success, g.Open())
	require.True(t, g.IsOpen())
	require.Equal(t, bt.Success, g.Open())
	require.True(t, g.IsOpen())

	assert.Equal(t, "GripperInterface::close\nGripperInterface::close\nGripperInterface::open\nGripperInterface::open\n", out.String())
}

func TestMainTree(t *testing.T) {
	t.Parallel()

	f, g, out := newFactory(t)
	tree, err := f.CreateTreeFromText(MainTreeXML, nil)
	require.NoError(t, err)
	require.Equal(t, MainTreeID, tree.ID())

	require.Equal(t, bt.Success, run(t, tree))
	assert.Equal(t, `[ Battery: OK ]
GripperInterface::open
ApproachObject: approach_object
GripperInterface::close
`, out.String())
	assert.False(t, g.IsOpen())
}

func TestMainTreeFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tree.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<root BTCPP_format="4">
  <BehaviorTree ID="MainTree">
    <Sequence>
      <CloseGripper/>
      <Action ID="ApproachObject" name="second_approach"/>
      <OpenGripper/>
    </Sequence>
  </BehaviorTree>
</root>`), 0o644))

	f, g, out := newFactory(t)
	tree, err := f.CreateTreeFromFile(path, nil)
	require.NoError(t, err)
	require.Equal(t, bt.Success, run(t, tree))
	assert.Equal(t, "GripperInterface::close\nApproachObject: second_approach\nGripperInterface::open\n", out.String())
	assert.True(t, g.IsOpen())
}

func TestRegisterTwice(t *testing.T) {
	t.Parallel()

	f, g, out := newFactory(t)
	err := Register(f, g, out)
	require.ErrorIs(t, err, behavior.ErrDuplicateID)
}

func TestManifests(t *testing.T) {
	t.Parallel()

	f, _, _ := newFactory(t)
	for id, kind := range map[string]behavior.NodeKind{
		"CheckBattery":   behavior.KindCondition,
		"OpenGripper":    behavior.KindAction,
		"CloseGripper":   behavior.KindAction,
		"ApproachObject": behavior.KindAction,
	} {
		m, ok := f.Manifest(id)
		require.True(t, ok, id)
		require.Equal(t, kind, m.Kind, id)
		require.False(t, m.Builtin, id)
	}
}
