// Package tutorial registers the nodes of the first BehaviorTree.CPP
// tutorial: a battery check, a gripper that opens and closes, and an action
// that approaches an object.
package tutorial

import (
	_ "embed"
	"fmt"
	"io"
	"sync"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/btrun/internal/behavior"
)

// MainTreeXML is the definition run when no file is given.
//
//go:embed main_tree.xml
var MainTreeXML string

// MainTreeID is the ID of the tree in MainTreeXML.
const MainTreeID = "MainTree"

// CheckBattery reports the battery as fine.
func CheckBattery(w io.Writer) bt.Status {
	fmt.Fprintln(w, "[ Battery: OK ]")
	return bt.Success
}

// ApproachObject is a synchronous action without ports.
type ApproachObject struct {
	w io.Writer
}

// NewApproachObject returns the constructor registered as ApproachObject.
func NewApproachObject(w io.Writer) behavior.Constructor {
	return func(*behavior.TreeNode) (behavior.Ticker, error) {
		return &ApproachObject{w: w}, nil
	}
}

// Tick prints the node name and succeeds.
func (a *ApproachObject) Tick(n *behavior.TreeNode) bt.Status {
	fmt.Fprintf(a.w, "ApproachObject: %s\n", n.Name())
	return bt.Success
}

// GripperInterface is the state shared by the OpenGripper and CloseGripper
// actions. The zero value is not ready for use; see NewGripperInterface.
type GripperInterface struct {
	mu   sync.Mutex
	open bool
	w    io.Writer
}

// NewGripperInterface returns an open gripper reporting to w.
func NewGripperInterface(w io.Writer) *GripperInterface {
	return &GripperInterface{open: true, w: w}
}

// Open opens the gripper.
func (g *GripperInterface) Open() bt.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
	fmt.Fprintln(g.w, "GripperInterface::open")
	return bt.Success
}

// Close closes the gripper.
func (g *GripperInterface) Close() bt.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	fmt.Fprintln(g.w, "GripperInterface::close")
	g.open = false
	return bt.Success
}

// IsOpen reports the flag set by the latest Open or Close.
func (g *GripperInterface) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Register adds CheckBattery, OpenGripper, ApproachObject and CloseGripper to
// f. Node output goes to w.
func Register(f *behavior.Factory, g *GripperInterface, w io.Writer) error {
	if err := f.RegisterNodeType("ApproachObject", NewApproachObject(w)); err != nil {
		return err
	}
	if err := f.RegisterSimpleCondition("CheckBattery", behavior.Simple(func() bt.Status {
		return CheckBattery(w)
	})); err != nil {
		return err
	}
	if err := f.RegisterSimpleAction("OpenGripper", behavior.Simple(g.Open)); err != nil {
		return err
	}
	return f.RegisterSimpleAction("CloseGripper", behavior.Simple(g.Close))
}
