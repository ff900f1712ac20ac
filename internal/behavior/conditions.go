package behavior

import "fmt"

// conditions holds the compiled pre and post condition attributes of a node.
//
// Preconditions are evaluated before the node is ticked: _while on every
// tick, the others only when the node is not already Running, in the order
// _failureIf, _successIf, _skipIf. Postconditions run after the node
// completes.
type conditions struct {
	failureIf  *script
	successIf  *script
	skipIf     *script
	while      *script
	onSuccess  *script
	onFailure  *script
	postScript *script
}

var conditionAttrs = []string{"_failureIf", "_successIf", "_skipIf", "_while", "_onSuccess", "_onFailure", "_post"}

func compileConditions(cache *programCache, attrs map[string]string) (*conditions, error) {
	var (
		c     conditions
		found bool
	)
	for _, name := range conditionAttrs {
		code, ok := attrs[name]
		if !ok {
			continue
		}
		s, err := compileScript(cache, code)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		found = true
		switch name {
		case "_failureIf":
			c.failureIf = s
		case "_successIf":
			c.successIf = s
		case "_skipIf":
			c.skipIf = s
		case "_while":
			c.while = s
		case "_onSuccess":
			c.onSuccess = s
		case "_onFailure":
			c.onFailure = s
		case "_post":
			c.postScript = s
		}
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}

// pre reports whether a precondition decided the outcome of this tick.
func (c *conditions) pre(n *TreeNode, prev State) (State, bool, error) {
	if c.while != nil {
		ok, err := c.while.evalBool(n.bb)
		if err != nil {
			return StateFailure, false, fmt.Errorf("%s: _while: %w", n.path, err)
		}
		if !ok {
			if prev == StateRunning {
				n.haltSubtree()
			}
			return StateSkipped, true, nil
		}
	}
	if prev == StateRunning {
		return 0, false, nil
	}
	checks := []struct {
		name   string
		s      *script
		result State
	}{
		{"_failureIf", c.failureIf, StateFailure},
		{"_successIf", c.successIf, StateSuccess},
		{"_skipIf", c.skipIf, StateSkipped},
	}
	for _, check := range checks {
		if check.s == nil {
			continue
		}
		ok, err := check.s.evalBool(n.bb)
		if err != nil {
			return StateFailure, false, fmt.Errorf("%s: %s: %w", n.path, check.name, err)
		}
		if ok {
			return check.result, true, nil
		}
	}
	return 0, false, nil
}

func (c *conditions) post(n *TreeNode, state State) error {
	var scripts []*script
	switch state {
	case StateSuccess:
		scripts = append(scripts, c.onSuccess, c.postScript)
	case StateFailure:
		scripts = append(scripts, c.onFailure, c.postScript)
	}
	for _, s := range scripts {
		if s == nil {
			continue
		}
		if _, err := s.exec(n.bb); err != nil {
			return fmt.Errorf("%s: %w", n.path, err)
		}
	}
	return nil
}
