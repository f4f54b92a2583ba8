package condition

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// splitStatements splits a condition into statements on newlines and
// semicolons, dropping blanks.
func splitStatements(condition string) []string {
	raw := strings.FieldsFunc(condition, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	var statements []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}

// evalStatement evaluates one statement in the scope. Variable and
// function definitions mutate the scope; their value is the defined
// value, so a condition ending in a bare assignment is not boolean.
func evalStatement(stmt string, scope map[string]any) (any, error) {
	name, params, body, isDef := parseDefinition(stmt)
	if !isDef {
		return run(stmt, scope)
	}

	if params == nil {
		value, err := run(body, scope)
		if err != nil {
			return nil, err
		}
		scope[name] = value
		return value, nil
	}

	fn, err := makeUserFunc(name, params, body, scope)
	if err != nil {
		return nil, err
	}
	scope[name] = fn
	return fn, nil
}

// run compiles and executes a single expression against the scope.
// Compilation is untyped so identifiers resolve from the scope at run time.
func run(src string, scope map[string]any) (any, error) {
	program, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, scope)
}

// makeUserFunc builds the closure for a `name(params) = body` definition.
// The body resolves free identifiers from the live scope at call time, so
// definitions may reference variables assigned by later statements.
func makeUserFunc(name string, params []string, body string, scope map[string]any) (func(args ...any) (any, error), error) {
	program, err := expr.Compile(body)
	if err != nil {
		return nil, err
	}
	return func(args ...any) (any, error) {
		if len(args) != len(params) {
			return nil, fmt.Errorf("%s expects %d arguments, got %d", name, len(params), len(args))
		}
		local := make(map[string]any, len(scope)+len(params))
		for k, v := range scope {
			local[k] = v
		}
		for i, p := range params {
			local[p] = args[i]
		}
		return expr.Run(program, local)
	}, nil
}

// parseDefinition recognizes `name = body` and `name(a, b) = body` forms.
// The split point is the first top-level `=` that is not part of a
// comparison operator; a left side that is not a plain identifier or
// parameter list means the statement is an ordinary expression.
func parseDefinition(stmt string) (name string, params []string, body string, ok bool) {
	pos := topLevelAssign(stmt)
	if pos < 0 {
		return "", nil, "", false
	}

	lhs := strings.TrimSpace(stmt[:pos])
	rhs := strings.TrimSpace(stmt[pos+1:])
	if rhs == "" {
		return "", nil, "", false
	}

	if identRe.MatchString(lhs) {
		return lhs, nil, rhs, true
	}

	open := strings.IndexByte(lhs, '(')
	if open <= 0 || !strings.HasSuffix(lhs, ")") {
		return "", nil, "", false
	}
	fnName := strings.TrimSpace(lhs[:open])
	if !identRe.MatchString(fnName) {
		return "", nil, "", false
	}

	params = []string{}
	inner := strings.TrimSpace(lhs[open+1 : len(lhs)-1])
	if inner != "" {
		for _, p := range strings.Split(inner, ",") {
			p = strings.TrimSpace(p)
			if !identRe.MatchString(p) {
				return "", nil, "", false
			}
			params = append(params, p)
		}
	}
	return fnName, params, rhs, true
}

// topLevelAssign returns the index of the first assignment `=` outside
// parentheses, brackets, and string literals, or -1 if there is none.
func topLevelAssign(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("=!<>", s[i-1]) >= 0 {
				continue
			}
			return i
		}
	}
	return -1
}
