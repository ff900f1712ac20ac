package behavior

import (
	"container/list"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultScriptCacheSize is the default maximum number of compiled
// expressions retained per factory.
const DefaultScriptCacheSize = 256

// programCache is a bounded LRU cache for compiled expr-lang programs.
type programCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	maxSize int
}

type programEntry struct {
	code    string
	program *vm.Program
}

func newProgramCache(size int) *programCache {
	if size < 1 {
		size = 1
	}
	return &programCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: size,
	}
}

// compile returns the cached program for code, compiling it on a miss.
// Programs are compiled without a typed env, so any blackboard key may be
// referenced; unknown keys evaluate to nil.
func (c *programCache) compile(code string) (*vm.Program, error) {
	c.mu.Lock()
	if el, ok := c.entries[code]; ok {
		c.lru.MoveToFront(el)
		program := el.Value.(*programEntry).program
		c.mu.Unlock()
		return program, nil
	}
	c.mu.Unlock()

	program, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[code]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*programEntry).program, nil
	}
	c.entries[code] = c.lru.PushFront(&programEntry{code: code, program: program})
	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*programEntry).code)
	}
	return program, nil
}

// Len returns the number of cached programs.
func (c *programCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// scriptStatement is one "key op expression" assignment, or a bare
// expression when key is empty.
type scriptStatement struct {
	key     string
	op      string
	program *vm.Program
}

// script is a compiled sequence of statements separated by ';'.
type script struct {
	code       string
	statements []scriptStatement
}

var assignmentPattern = regexp.MustCompile(`^(@?[A-Za-z_][A-Za-z0-9_]*)\s*(:=|\+=|-=|\*=|/=|=)(.*)$`)

// splitStatements splits code on ';' outside of string literals.
func splitStatements(code string) []string {
	var (
		out   []string
		start int
		quote rune
		esc   bool
	)
	for i, r := range code {
		switch {
		case esc:
			esc = false
		case quote != 0:
			if r == '\\' && quote != '`' {
				esc = true
			} else if r == quote {
				quote = 0
			}
		case r == '"', r == '\'', r == '`':
			quote = r
		case r == ';':
			out = append(out, code[start:i])
			start = i + 1
		}
	}
	return append(out, code[start:])
}

func compileScript(cache *programCache, code string) (*script, error) {
	s := &script{code: code}
	for _, raw := range splitStatements(code) {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		var key, op, rhs string
		if m := assignmentPattern.FindStringSubmatch(stmt); m != nil && !(m[2] == "=" && strings.HasPrefix(m[3], "=")) {
			key, op, rhs = m[1], m[2], strings.TrimSpace(m[3])
		} else {
			rhs = stmt
		}
		if rhs == "" {
			return nil, fmt.Errorf("script %q: empty expression", stmt)
		}
		program, err := cache.compile(rhs)
		if err != nil {
			return nil, fmt.Errorf("script %q: %w", stmt, err)
		}
		s.statements = append(s.statements, scriptStatement{key: key, op: op, program: program})
	}
	if len(s.statements) == 0 {
		return nil, fmt.Errorf("script %q has no statements", code)
	}
	return s, nil
}

// exec runs the statements against bb. Assignments are visible to the
// statements that follow them.
func (s *script) exec(bb *Blackboard) (any, error) {
	var last any
	for _, stmt := range s.statements {
		out, err := expr.Run(stmt.program, bb.Visible())
		if err != nil {
			return nil, fmt.Errorf("script %q: %w", s.code, err)
		}
		last = out
		if stmt.key == "" {
			continue
		}
		if stmt.op != ":=" && stmt.op != "=" {
			out, err = applyCompound(stmt.op, bb.Get(stmt.key), out)
			if err != nil {
				return nil, fmt.Errorf("script %q: %s: %w", s.code, stmt.key, err)
			}
		}
		bb.Set(stmt.key, out)
		last = out
	}
	return last, nil
}

// evalBool runs the script and requires a boolean result.
func (s *script) evalBool(bb *Blackboard) (bool, error) {
	out, err := s.exec(bb)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, not bool", s.code, out)
	}
	return b, nil
}

func applyCompound(op string, current, value any) (any, error) {
	if op == "+=" {
		if cs, ok := current.(string); ok {
			return cs + toString(value), nil
		}
	}
	ci, cInt := current.(int)
	vi, vInt := value.(int)
	if cInt && vInt {
		switch op {
		case "+=":
			return ci + vi, nil
		case "-=":
			return ci - vi, nil
		case "*=":
			return ci * vi, nil
		case "/=":
			if vi == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return ci / vi, nil
		}
	}
	cf, err := toFloat(current)
	if err != nil {
		return nil, err
	}
	vf, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+=":
		return cf + vf, nil
	case "-=":
		return cf - vf, nil
	case "*=":
		return cf * vf, nil
	case "/=":
		if vf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return cf / vf, nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("value is not set")
	default:
		i, err := toInt(v)
		if err != nil {
			return 0, fmt.Errorf("%v is not numeric", v)
		}
		return float64(i), nil
	}
}
