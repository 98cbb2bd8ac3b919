// Package selector resolves column-selector expressions (bare names,
// rename pairs, starts_with/ends_with/contains, and !-negation) against
// a schema, producing an ordered, deduplicated list of column names.
package selector

import (
	"strings"

	"github.com/vincev/dply/ast"
	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
)

// Resolve expands a list of selector argument expressions against
// schema into an ordered, deduplicated list of column references.
func Resolve(args []ast.Expr, schema plan.Schema) ([]plan.ColumnRef, error) {
	var refs []plan.ColumnRef
	seen := make(map[string]bool)
	for _, arg := range args {
		matched, err := resolveOne(arg, schema)
		if err != nil {
			return nil, err
		}
		for _, r := range matched {
			if seen[r.As] {
				continue
			}
			seen[r.As] = true
			refs = append(refs, r)
		}
	}
	return refs, nil
}

func resolveOne(arg ast.Expr, schema plan.Schema) ([]plan.ColumnRef, error) {
	switch e := arg.(type) {
	case *ast.Ident:
		if !schema.Has(e.Name) {
			return nil, dplyerr.Schemaf(e.Span(), "unknown column %q", e.Name)
		}
		return []plan.ColumnRef{{Name: e.Name, As: e.Name}}, nil

	case *ast.Assign:
		// new = old
		old, ok := e.Value.(*ast.Ident)
		if !ok {
			return nil, dplyerr.Schemaf(e.Span(), "expected a column name on the right of %q =", e.Target)
		}
		if !schema.Has(old.Name) {
			return nil, dplyerr.Schemaf(old.Span(), "unknown column %q", old.Name)
		}
		return []plan.ColumnRef{{Name: old.Name, As: e.Target}}, nil

	case *ast.Not:
		positive, err := resolveOne(e.Inner, schema)
		if err != nil {
			return nil, err
		}
		excluded := make(map[string]bool, len(positive))
		for _, r := range positive {
			excluded[r.Name] = true
		}
		var out []plan.ColumnRef
		for _, col := range schema.Names() {
			if !excluded[col] {
				out = append(out, plan.ColumnRef{Name: col, As: col})
			}
		}
		return out, nil

	case *ast.Call:
		return resolveCall(e, schema)

	default:
		return nil, dplyerr.Schemaf(arg.Span(), "not a valid column selector")
	}
}

func resolveCall(c *ast.Call, schema plan.Schema) ([]plan.ColumnRef, error) {
	if len(c.Args) != 1 {
		return nil, dplyerr.Signaturef(c.Span(), "%s() takes exactly one string argument", c.Name)
	}
	lit, ok := c.Args[0].(*ast.Lit)
	if !ok || lit.Kind != ast.LitString {
		return nil, dplyerr.Signaturef(c.Args[0].Span(), "%s() argument must be a string literal", c.Name)
	}
	pattern := lit.Str

	var pred func(string) bool
	switch c.Name {
	case "starts_with":
		pred = func(col string) bool { return strings.HasPrefix(col, pattern) }
	case "ends_with":
		pred = func(col string) bool { return strings.HasSuffix(col, pattern) }
	case "contains":
		pred = func(col string) bool { return strings.Contains(col, pattern) }
	default:
		return nil, dplyerr.Signaturef(c.Span(), "unknown selector %q", c.Name)
	}

	var out []plan.ColumnRef
	for _, col := range schema.Names() {
		if pred(col) {
			out = append(out, plan.ColumnRef{Name: col, As: col})
		}
	}
	return out, nil
}

// ResolveRequired is Resolve but errors if it matches zero columns,
// for callers (select) that require at least one.
func ResolveRequired(args []ast.Expr, schema plan.Schema, what string) ([]plan.ColumnRef, error) {
	refs, err := Resolve(args, schema)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, dplyerr.SchemafNoSpan("%s matched no columns", what)
	}
	return refs, nil
}
