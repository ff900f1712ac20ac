package behavior

import (
	"context"
	"fmt"
	"testing"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/require"
)

// newTestFactory returns a factory with two extra nodes:
//
//	Counter: increments the int at {key} and returns {result} (SUCCESS)
//	Wait:    returns Running for {ticks} ticks, then Success
func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	f := NewFactory()
	require.NoError(t, f.RegisterSimpleAction("Counter", func(n *TreeNode) bt.Status {
		key, _ := n.Input("key")
		v, _ := n.Blackboard().Get(key).(int)
		n.Blackboard().Set(key, v+1)
		raw, _ := n.Input("result")
		status, err := ParseStatus(raw)
		if err != nil {
			return bt.Failure
		}
		return status
	}, InputPort("key", "count", ""), InputPort("result", "SUCCESS", "")))
	require.NoError(t, f.RegisterStatefulAction("Wait", func(*TreeNode) (StatefulAction, error) {
		return new(waitAction), nil
	}, InputPort("ticks", "1", "")))
	return f
}

type waitAction struct {
	remaining int
}

func (a *waitAction) OnStart(n *TreeNode) bt.Status {
	ticks, err := n.InputInt("ticks")
	if err != nil {
		return bt.Failure
	}
	a.remaining = ticks
	if a.remaining <= 0 {
		return bt.Success
	}
	return bt.Running
}

func (a *waitAction) OnRunning(*TreeNode) bt.Status {
	a.remaining--
	if a.remaining <= 0 {
		return bt.Success
	}
	return bt.Running
}

func (a *waitAction) OnHalted(n *TreeNode) {
	n.Blackboard().Set("halted", n.Name())
}

// xmlTree wraps body in a single-tree document with ID Main.
func xmlTree(body string) string {
	return fmt.Sprintf(`<root BTCPP_format="4" main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    %s
  </BehaviorTree>
</root>`, body)
}

func runTree(t *testing.T, tree *Tree) (bt.Status, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return tree.Run(ctx, RunOptions{Interval: -1})
}

// runXML builds a tree from body and runs it to completion.
func runXML(t *testing.T, body string) (*Tree, bt.Status) {
	t.Helper()
	tree, err := newTestFactory(t).CreateTreeFromText(xmlTree(body), nil)
	require.NoError(t, err)
	status, err := runTree(t, tree)
	require.NoError(t, err)
	return tree, status
}
