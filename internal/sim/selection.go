package sim

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/openwater-labs/aquanet/internal/domain"
)

// Selection restricts which (scenario, leak config) pairs a generation run
// touches, via a CEL expression over two string variables:
//
//	scenario == "ltown" && leak.startsWith("burst-")
//
// A nil *Selection admits every pair.
type Selection struct {
	expr string
	prog cel.Program
}

// CompileSelection compiles a selection expression. An empty expression
// yields nil, admitting every pair.
func CompileSelection(expr string) (*Selection, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("scenario", cel.StringType),
		cel.Variable("leak", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating selection environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, domain.ConfigErrorf("compiling selection %q: %v", expr, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, domain.ConfigErrorf("selection %q must evaluate to a boolean, got %s", expr, ast.OutputType())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building selection program: %w", err)
	}
	return &Selection{expr: expr, prog: prog}, nil
}

// Matches reports whether the selection admits a pair.
func (s *Selection) Matches(scenario, leak string) (bool, error) {
	if s == nil {
		return true, nil
	}

	out, _, err := s.prog.Eval(map[string]any{
		"scenario": scenario,
		"leak":     leak,
	})
	if err != nil {
		return false, domain.ConfigErrorf("evaluating selection %q: %v", s.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, domain.ConfigErrorf("selection %q produced %T, want bool", s.expr, out.Value())
	}
	return b, nil
}

// String returns the source expression.
func (s *Selection) String() string {
	if s == nil {
		return ""
	}
	return s.expr
}
