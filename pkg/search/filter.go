package search

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over parameter candidates. Available
// variables: m, t, poly, extra, ecc_offset, ecc_length, page, spare, sector,
// chunk, offset (int), swap (bool) and transform (string), for example
//
//	m == 14 && transform in ["none", "inv"] && extra <= 8
type Filter struct {
	Expression string
	program    cel.Program
}

// CompileFilter parses and type-checks expr, which must yield a bool.
func CompileFilter(expr string) (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("m", cel.IntType),
		cel.Variable("t", cel.IntType),
		cel.Variable("poly", cel.IntType),
		cel.Variable("extra", cel.IntType),
		cel.Variable("ecc_offset", cel.IntType),
		cel.Variable("ecc_length", cel.IntType),
		cel.Variable("page", cel.IntType),
		cel.Variable("spare", cel.IntType),
		cel.Variable("sector", cel.IntType),
		cel.Variable("chunk", cel.IntType),
		cel.Variable("offset", cel.IntType),
		cel.Variable("swap", cel.BoolType),
		cel.Variable("transform", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("search: filter environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("search: filter %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("search: filter %q yields %s, want bool", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("search: filter program: %w", err)
	}
	return &Filter{Expression: expr, program: prg}, nil
}

// Match evaluates the filter for one candidate.
func (f *Filter) Match(c ParamCandidate) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"m":          c.Params.M,
		"t":          c.Params.T,
		"poly":       int64(c.Params.Poly),
		"extra":      c.Params.ExtraBytes,
		"ecc_offset": c.Layout.ECCOffset,
		"ecc_length": c.Layout.ECCLength,
		"page":       c.Layout.PageSize,
		"spare":      c.Layout.SpareSize,
		"sector":     c.Layout.SectorSize,
		"chunk":      c.Layout.ChunkSize,
		"offset":     c.Offset,
		"swap":       c.Params.SwapBits,
		"transform":  c.Params.Transform.String(),
	})
	if err != nil {
		return false, fmt.Errorf("search: filter %q: %w", f.Expression, err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("search: filter %q yielded %v", f.Expression, out.Value())
	}
	return v, nil
}
