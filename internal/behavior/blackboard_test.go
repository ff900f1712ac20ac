package behavior

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlackboard_BasicOperations(t *testing.T) {
	t.Parallel()

	bb := new(Blackboard)

	bb.Set("key1", "value1")
	require.Equal(t, "value1", bb.Get("key1"))
	require.Nil(t, bb.Get("nonexistent"))
	require.True(t, bb.Has("key1"))
	require.False(t, bb.Has("nonexistent"))

	bb.Delete("key1")
	require.False(t, bb.Has("key1"))

	bb.Set("int", 42)
	bb.Set("slice", []int{1, 2, 3})
	require.Equal(t, 42, bb.Get("int"))
	require.Equal(t, []int{1, 2, 3}, bb.Get("slice"))
	require.Equal(t, 2, bb.Len())
	require.ElementsMatch(t, []string{"int", "slice"}, bb.Keys())

	bb.Clear()
	require.Zero(t, bb.Len())
	require.Empty(t, bb.Keys())
}

func TestBlackboard_ZeroValue(t *testing.T) {
	t.Parallel()

	var bb Blackboard
	require.Nil(t, bb.Get("x"))
	require.Nil(t, bb.Snapshot())
	bb.Delete("x")
	require.Empty(t, bb.Visible())
}

func TestBlackboard_Remap(t *testing.T) {
	t.Parallel()

	parent := new(Blackboard)
	parent.Set("goal", "kitchen")
	child := parent.NewChild(map[string]string{"target": "goal"}, false)

	require.Equal(t, "kitchen", child.Get("target"))
	require.False(t, child.Has("goal"), "unmapped keys stay private")

	child.Set("target", "garage")
	require.Equal(t, "garage", parent.Get("goal"))

	child.Set("local", 1)
	require.False(t, parent.Has("local"))
	require.Equal(t, map[string]any{"target": "garage", "local": 1}, child.Visible())
	require.Same(t, parent, child.Parent())
	require.Same(t, parent, child.Root())
}

func TestBlackboard_Autoremap(t *testing.T) {
	t.Parallel()

	parent := new(Blackboard)
	parent.Set("shared", 1)
	parent.Set("_private", 2)
	child := parent.NewChild(nil, true)

	require.Equal(t, 1, child.Get("shared"))
	require.False(t, child.Has("_private"))

	child.Set("fresh", "x")
	require.Equal(t, "x", parent.Get("fresh"))

	child.Set("_mine", true)
	require.False(t, parent.Has("_mine"))

	visible := child.Visible()
	require.Equal(t, 1, visible["shared"])
	require.NotContains(t, visible, "_private")
	require.Equal(t, true, visible["_mine"])
}

func TestBlackboard_AutoremapLocalShadows(t *testing.T) {
	t.Parallel()

	parent := new(Blackboard)
	parent.Set("text", "outer")
	child := parent.NewChild(nil, true)
	child.setLocal("text", "inner")

	require.Equal(t, "inner", child.Get("text"))
	child.Set("text", "changed")
	require.Equal(t, "outer", parent.Get("text"))
}

func TestBlackboard_RootPrefix(t *testing.T) {
	t.Parallel()

	root := new(Blackboard)
	mid := root.NewChild(nil, false)
	leaf := mid.NewChild(map[string]string{"a": "b"}, false)

	leaf.Set("@global", "g")
	require.Equal(t, "g", root.Get("global"))
	require.Equal(t, "g", mid.Get("@global"))
	require.False(t, mid.Has("global"))
	require.Same(t, root, leaf.Root())
}

func TestBlackboard_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	bb := new(Blackboard)
	child := bb.NewChild(nil, true)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("k%d", i)
				child.Set(key, j)
				_ = child.Get(key)
				_ = child.Visible()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8, bb.Len())
	for i := range 8 {
		require.Equal(t, 99, bb.Get(fmt.Sprintf("k%d", i)))
	}
}
