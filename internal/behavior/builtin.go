package behavior

import (
	"fmt"
	"sync"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
)

func registerBuiltins(f *Factory) {
	for _, r := range builtins() {
		r.manifest.Builtin = true
		if err := f.register(r.manifest, r.build); err != nil {
			panic(fmt.Errorf("registering builtin %q: %w", r.manifest.ID, err))
		}
	}
}

func builtins() []registration {
	return []registration{
		// controls
		{Manifest{ID: "Sequence", Kind: KindControl}, memorized(bt.Sequence)},
		{Manifest{ID: "ReactiveSequence", Kind: KindControl}, fixedTick(func() bt.Tick { return bt.Sequence })},
		{Manifest{ID: "Fallback", Kind: KindControl}, memorized(bt.Selector)},
		{Manifest{ID: "ReactiveFallback", Kind: KindControl}, fixedTick(func() bt.Tick { return bt.Selector })},
		{Manifest{ID: "Parallel", Kind: KindControl, Ports: []PortInfo{
			InputPort("success_count", "-1", "children that must succeed; negative counts back from the number of children"),
			InputPort("failure_count", "1", "children that must fail; negative counts back from the number of children"),
		}}, parallelBuilder},
		{Manifest{ID: "IfThenElse", Kind: KindControl}, ifThenElseBuilder},

		// decorators
		{Manifest{ID: "Inverter", Kind: KindDecorator}, fixedTick(func() bt.Tick { return bt.Not(bt.Sequence) })},
		{Manifest{ID: "ForceSuccess", Kind: KindDecorator}, fixedTick(func() bt.Tick { return force(bt.Success) })},
		{Manifest{ID: "ForceFailure", Kind: KindDecorator}, fixedTick(func() bt.Tick { return force(bt.Failure) })},
		{Manifest{ID: "Repeat", Kind: KindDecorator, Ports: []PortInfo{
			InputPort("num_cycles", "", "repetitions, -1 repeats forever"),
		}}, repeatBuilder},
		{Manifest{ID: "RetryUntilSuccessful", Kind: KindDecorator, Ports: []PortInfo{
			InputPort("num_attempts", "", "attempts, -1 retries forever"),
		}}, retryBuilder},
		{Manifest{ID: "KeepRunningUntilFailure", Kind: KindDecorator}, fixedTick(keepRunningUntilFailure)},
		{Manifest{ID: "RunOnce", Kind: KindDecorator, Ports: []PortInfo{
			InputPort("then_skip", "true", "skip the child after its first completion instead of repeating its result"),
		}}, runOnceBuilder},
		{Manifest{ID: "Precondition", Kind: KindDecorator, Ports: []PortInfo{
			InputPort("if", "", "expression guarding the child"),
			InputPort("else", "FAILURE", "status returned when the guard is false"),
		}}, preconditionBuilder},

		// leaves
		{Manifest{ID: "AlwaysSuccess", Kind: KindAction}, fixedTick(func() bt.Tick { return constant(bt.Success) })},
		{Manifest{ID: "AlwaysFailure", Kind: KindAction}, fixedTick(func() bt.Tick { return constant(bt.Failure) })},
		{Manifest{ID: "Sleep", Kind: KindAction, Ports: []PortInfo{
			InputPort("msec", "", "duration, in milliseconds or as a Go duration"),
		}}, func(n *TreeNode, _ []bt.Node) (bt.Tick, error) { return statefulTick(n, new(sleepAction)), nil }},
		{Manifest{ID: "SetBlackboard", Kind: KindAction, Ports: []PortInfo{
			InputPort("value", "", "value to store, literal or {key}"),
			InOutPort("output_key", "", "blackboard key to write"),
		}}, setBlackboardBuilder},
		{Manifest{ID: "Script", Kind: KindAction, Ports: []PortInfo{
			InputPort("code", "", "statements separated by ';'"),
		}}, scriptBuilder(false)},
		{Manifest{ID: "ScriptCondition", Kind: KindCondition, Ports: []PortInfo{
			InputPort("code", "", "boolean expression"),
		}}, scriptBuilder(true)},
	}
}

// fixedTick registers a builder whose tick has no configuration. The
// constructor runs once per node instance.
func fixedTick(newTick func() bt.Tick) Builder {
	return func(*TreeNode, []bt.Node) (bt.Tick, error) {
		return newTick(), nil
	}
}

// memorized resumes tick at the first child still Running. A halt discards
// that progress, so the next execution starts from the first child again.
func memorized(tick bt.Tick) Builder {
	return func(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
		var (
			mu      sync.Mutex
			current = bt.Memorize(tick)
		)
		n.onHalt(func() {
			mu.Lock()
			current = bt.Memorize(tick)
			mu.Unlock()
		})
		return func(children []bt.Node) (bt.Status, error) {
			mu.Lock()
			t := current
			mu.Unlock()
			return t(children)
		}, nil
	}
}

func constant(status bt.Status) bt.Tick {
	return func([]bt.Node) (bt.Status, error) {
		return status, nil
	}
}

func force(status bt.Status) bt.Tick {
	return func(children []bt.Node) (bt.Status, error) {
		s, err := children[0].Tick()
		if err != nil {
			return bt.Failure, err
		}
		if s == bt.Running {
			return bt.Running, nil
		}
		return status, nil
	}
}

func keepRunningUntilFailure() bt.Tick {
	return func(children []bt.Node) (bt.Status, error) {
		s, err := children[0].Tick()
		if err != nil {
			return bt.Failure, err
		}
		if s == bt.Failure {
			return bt.Failure, nil
		}
		return bt.Running, nil
	}
}

// resolveCount turns a possibly negative count into an absolute one.
func resolveCount(count, children int) int {
	if count < 0 {
		return children + count + 1
	}
	return count
}

func parallelBuilder(n *TreeNode, children []bt.Node) (bt.Tick, error) {
	var (
		mu        sync.Mutex
		completed = make(map[int]bt.Status, len(children))
	)
	n.onHalt(func() {
		mu.Lock()
		clear(completed)
		mu.Unlock()
	})
	finish := func(status bt.Status) (bt.Status, error) {
		for i, c := range n.children {
			if _, done := completed[i]; !done {
				c.haltSubtree()
			}
		}
		clear(completed)
		return status, nil
	}
	return func(children []bt.Node) (bt.Status, error) {
		successCount, err := n.InputInt("success_count")
		if err != nil {
			return bt.Failure, err
		}
		failureCount, err := n.InputInt("failure_count")
		if err != nil {
			return bt.Failure, err
		}
		successCount = resolveCount(successCount, len(children))
		failureCount = resolveCount(failureCount, len(children))
		if successCount < 1 || successCount > len(children) || failureCount < 1 || failureCount > len(children) {
			return bt.Failure, fmt.Errorf("%w: %s: thresholds %d/%d invalid for %d children", ErrPort, n.name, successCount, failureCount, len(children))
		}

		mu.Lock()
		defer mu.Unlock()
		var successes, failures int
		for i, child := range children {
			status, done := completed[i]
			if !done {
				s, err := child.Tick()
				if err != nil {
					clear(completed)
					return bt.Failure, err
				}
				status = s
				if s != bt.Running {
					completed[i] = s
				}
			}
			switch status {
			case bt.Success:
				successes++
			case bt.Failure:
				failures++
			}
		}
		switch {
		case successes >= successCount:
			return finish(bt.Success)
		case failures >= failureCount, len(children)-failures < successCount:
			return finish(bt.Failure)
		default:
			return bt.Running, nil
		}
	}, nil
}

func ifThenElseBuilder(n *TreeNode, children []bt.Node) (bt.Tick, error) {
	if len(children) != 2 && len(children) != 3 {
		return nil, fmt.Errorf("%w: IfThenElse takes 2 or 3 children, got %d", ErrMalformed, len(children))
	}
	var (
		mu     sync.Mutex
		branch = -1
	)
	n.onHalt(func() {
		mu.Lock()
		branch = -1
		mu.Unlock()
	})
	return func(children []bt.Node) (bt.Status, error) {
		mu.Lock()
		defer mu.Unlock()
		if branch < 0 {
			s, err := children[0].Tick()
			if err != nil {
				return bt.Failure, err
			}
			switch s {
			case bt.Running:
				return bt.Running, nil
			case bt.Success:
				branch = 1
			default:
				if len(children) < 3 {
					return bt.Failure, nil
				}
				branch = 2
			}
		}
		s, err := children[branch].Tick()
		if err != nil || s != bt.Running {
			branch = -1
		}
		if err != nil {
			return bt.Failure, err
		}
		return s, nil
	}, nil
}

func repeatBuilder(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
	return loopTick(n, "num_cycles", bt.Success), nil
}

func retryBuilder(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
	return loopTick(n, "num_attempts", bt.Failure), nil
}

// loopTick re-ticks the child while it returns again, up to the count read
// from port. Any other completed status ends the loop with that status.
// Finite loops run synchronously within one tick; infinite ones (-1) yield
// Running after each iteration and wake the tree.
func loopTick(n *TreeNode, port string, again bt.Status) bt.Tick {
	var (
		mu    sync.Mutex
		count int
	)
	n.onHalt(func() {
		mu.Lock()
		count = 0
		mu.Unlock()
	})
	return func(children []bt.Node) (bt.Status, error) {
		limit, err := n.InputInt(port)
		if err != nil {
			return bt.Failure, err
		}
		mu.Lock()
		defer mu.Unlock()
		for limit < 0 || count < limit {
			s, err := children[0].Tick()
			if err != nil {
				count = 0
				return bt.Failure, err
			}
			if s == bt.Running {
				return bt.Running, nil
			}
			if s != again {
				count = 0
				return s, nil
			}
			count++
			if limit < 0 {
				n.Wake()
				return bt.Running, nil
			}
		}
		count = 0
		return again, nil
	}
}

func runOnceBuilder(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
	var (
		mu     sync.Mutex
		done   bool
		result bt.Status
	)
	return func(children []bt.Node) (bt.Status, error) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			skip, err := n.InputBool("then_skip")
			if err != nil {
				return bt.Failure, err
			}
			if skip {
				return bt.Success, nil
			}
			return result, nil
		}
		s, err := children[0].Tick()
		if err != nil {
			return bt.Failure, err
		}
		if s != bt.Running {
			done, result = true, s
		}
		return s, nil
	}, nil
}

func preconditionBuilder(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
	code, ok := n.attrs["if"]
	if !ok {
		return nil, n.missingPort("if")
	}
	guard, err := compileScript(n.tree.scripts, code)
	if err != nil {
		return nil, err
	}
	elseRaw, _ := n.Input("else")
	elseStatus, err := ParseStatus(elseRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: else: %v", ErrPort, n.name, err)
	}
	var (
		mu      sync.Mutex
		running bool
	)
	n.onHalt(func() {
		mu.Lock()
		running = false
		mu.Unlock()
	})
	return func(children []bt.Node) (bt.Status, error) {
		mu.Lock()
		defer mu.Unlock()
		if !running {
			ok, err := guard.evalBool(n.bb)
			if err != nil {
				return bt.Failure, err
			}
			if !ok {
				return elseStatus, nil
			}
		}
		s, err := children[0].Tick()
		running = err == nil && s == bt.Running
		return s, err
	}, nil
}

// sleepAction completes once its timer fires; the timer wakes the tree.
type sleepAction struct {
	mu    sync.Mutex
	timer *time.Timer
	fired bool
}

func (a *sleepAction) OnStart(n *TreeNode) bt.Status {
	d, err := n.InputDuration("msec")
	if err != nil {
		n.Logger().Error("sleep: invalid duration", "error", err)
		return bt.Failure
	}
	if d <= 0 {
		return bt.Success
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fired = false
	a.timer = time.AfterFunc(d, func() {
		a.mu.Lock()
		a.fired = true
		a.mu.Unlock()
		n.Wake()
	})
	return bt.Running
}

func (a *sleepAction) OnRunning(*TreeNode) bt.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fired {
		a.timer = nil
		return bt.Success
	}
	return bt.Running
}

func (a *sleepAction) OnHalted(*TreeNode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func setBlackboardBuilder(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
	raw, ok := n.attrs["output_key"]
	if !ok || raw == "" {
		return nil, n.missingPort("output_key")
	}
	key := raw
	if k, ok := blackboardKey("output_key", raw); ok {
		key = k
	}
	return func([]bt.Node) (bt.Status, error) {
		v, ok := n.InputValue("value")
		if !ok {
			return bt.Failure, n.missingPort("value")
		}
		n.bb.Set(key, v)
		return bt.Success, nil
	}, nil
}

func scriptBuilder(condition bool) Builder {
	return func(n *TreeNode, _ []bt.Node) (bt.Tick, error) {
		code, ok := n.attrs["code"]
		if !ok {
			return nil, n.missingPort("code")
		}
		s, err := compileScript(n.tree.scripts, code)
		if err != nil {
			return nil, err
		}
		if !condition {
			return func([]bt.Node) (bt.Status, error) {
				if _, err := s.exec(n.bb); err != nil {
					return bt.Failure, err
				}
				return bt.Success, nil
			}, nil
		}
		return func([]bt.Node) (bt.Status, error) {
			ok, err := s.evalBool(n.bb)
			if err != nil {
				return bt.Failure, err
			}
			if ok {
				return bt.Success, nil
			}
			return bt.Failure, nil
		}, nil
	}
}
