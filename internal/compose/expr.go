package compose

import (
	"fmt"
	"os"
	"strings"

	"github.com/edisonhq/edison/internal/config"
	"github.com/edisonhq/edison/internal/pathio"
)

// ActivePacks lists the packs active for this composition, consulted by the
// has-pack(name) predicate (spec.md §4.G step 3 expression grammar).
type ActivePacks []string

func (a ActivePacks) has(name string) bool {
	for _, p := range a {
		if p == name {
			return true
		}
	}
	return false
}

// evalExpr evaluates the conditional expression grammar spec.md §4.G step 3
// defines: has-pack(name) | config(path) | config-eq(path,value) | env(NAME)
// | file-exists(path) | not(e) | and(a,b) | or(a,b).
func (p *Pipeline) evalExpr(expr string) (bool, error) {
	expr = strings.TrimSpace(expr)
	name, args, err := parseCall(expr)
	if err != nil {
		return false, err
	}
	switch name {
	case "has-pack":
		if len(args) != 1 {
			return false, fmt.Errorf("has-pack expects 1 argument, got %d", len(args))
		}
		return p.Packs.has(args[0]), nil
	case "config":
		if len(args) != 1 {
			return false, fmt.Errorf("config expects 1 argument, got %d", len(args))
		}
		if p.Config == nil {
			return false, nil
		}
		return p.Config.PathTruthy(args[0]), nil
	case "config-eq":
		if len(args) != 2 {
			return false, fmt.Errorf("config-eq expects 2 arguments, got %d", len(args))
		}
		if p.Config == nil {
			return false, nil
		}
		v, ok := config.GetPath(p.Config.Raw, args[0])
		if !ok {
			return false, nil
		}
		return fmt.Sprintf("%v", v) == args[1], nil
	case "env":
		if len(args) != 1 {
			return false, fmt.Errorf("env expects 1 argument, got %d", len(args))
		}
		return os.Getenv(args[0]) != "", nil
	case "file-exists":
		if len(args) != 1 {
			return false, fmt.Errorf("file-exists expects 1 argument, got %d", len(args))
		}
		return pathio.Exists(args[0]), nil
	case "not":
		if len(args) != 1 {
			return false, fmt.Errorf("not expects 1 argument, got %d", len(args))
		}
		v, err := p.evalExpr(args[0])
		return !v, err
	case "and":
		if len(args) != 2 {
			return false, fmt.Errorf("and expects 2 arguments, got %d", len(args))
		}
		a, err := p.evalExpr(args[0])
		if err != nil || !a {
			return false, err
		}
		return p.evalExpr(args[1])
	case "or":
		if len(args) != 2 {
			return false, fmt.Errorf("or expects 2 arguments, got %d", len(args))
		}
		a, err := p.evalExpr(args[0])
		if err != nil {
			return false, err
		}
		if a {
			return true, nil
		}
		return p.evalExpr(args[1])
	default:
		return false, fmt.Errorf("unknown expression function: %q", name)
	}
}

// parseCall splits `name(arg1,arg2)` into its function name and
// comma-separated arguments, respecting nested parens so `not(and(a,b))`
// parses correctly.
func parseCall(expr string) (name string, args []string, err error) {
	open := strings.IndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return "", nil, fmt.Errorf("malformed expression: %q", expr)
	}
	name = strings.TrimSpace(expr[:open])
	inner := expr[open+1 : len(expr)-1]
	args = splitArgs(inner)
	for i, a := range args {
		args[i] = strings.TrimSpace(a)
	}
	return name, args, nil
}

func splitArgs(s string) []string {
	var args []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	if start <= len(s) {
		args = append(args, s[start:])
	}
	return args
}
