// Package compiler lowers filter/mutate/summarize argument expressions
// from the AST into the plan package's logical Expr/Agg trees.
package compiler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vincev/dply/ast"
	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
)

// durationUnits maps the duration-conversion helper names to the Go
// duration they scale by.
var durationUnits = map[string]time.Duration{
	"dnanos": time.Nanosecond, "nanos": time.Nanosecond,
	"dmicros": time.Microsecond, "micros": time.Microsecond,
	"dmillis": time.Millisecond, "millis": time.Millisecond,
	"dsecs": time.Second, "secs": time.Second,
}

var dateLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// CompileRow lowers a filter expression against schema into a
// plan.Expr. Scalar broadcast calls (mean/max/min/median) are not
// valid here; use CompileMutate for mutate's right-hand sides, where
// they are.
func CompileRow(e ast.Expr, schema plan.Schema) (plan.Expr, error) {
	return compileExpr(e, schema, nil)
}

// CompileMutate lowers a mutate right-hand side against schema,
// resolving scalar broadcast aggregates (mean/max/min/median applied
// directly to a column, anywhere in the expression) against rows —
// the frame's current rows, i.e. after every earlier step of the
// pipeline (a preceding filter included) has been applied.
func CompileMutate(e ast.Expr, schema plan.Schema, rows []plan.Row) (plan.Expr, error) {
	return compileExpr(e, schema, rows)
}

func compileExpr(e ast.Expr, schema plan.Schema, rows []plan.Row) (plan.Expr, error) {
	switch n := e.(type) {
	case *ast.Lit:
		return litExpr(n), nil

	case *ast.Ident:
		idx := schema.IndexOf(n.Name)
		if idx < 0 {
			return nil, dplyerr.Schemaf(n.Span(), "unknown column %q", n.Name)
		}
		return plan.ColExpr{Index: idx}, nil

	case *ast.Cmp:
		lhs, err := compileExpr(n.Lhs, schema, rows)
		if err != nil {
			return nil, err
		}
		rhs, err := compileExpr(n.Rhs, schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.CmpExpr{Op: cmpOp(n.Op), Lhs: lhs, Rhs: rhs}, nil

	case *ast.Logical:
		lhs, err := compileExpr(n.Lhs, schema, rows)
		if err != nil {
			return nil, err
		}
		rhs, err := compileExpr(n.Rhs, schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.LogicalExpr{Op: logicalOp(n.Op), Lhs: lhs, Rhs: rhs}, nil

	case *ast.Arith:
		lhs, err := compileExpr(n.Lhs, schema, rows)
		if err != nil {
			return nil, err
		}
		rhs, err := compileExpr(n.Rhs, schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.ArithExpr{Op: arithOp(n.Op), Lhs: lhs, Rhs: rhs}, nil

	case *ast.Not:
		inner, err := compileExpr(n.Inner, schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.NotExpr{Inner: inner}, nil

	case *ast.Neg:
		inner, err := compileExpr(n.Inner, schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.NegExpr{Inner: inner}, nil

	case *ast.Call:
		if rows != nil && isBroadcastAgg(n.Name) {
			return compileBroadcast(n, schema, rows)
		}
		return compileCall(n, schema, rows)

	default:
		return nil, dplyerr.Schemaf(e.Span(), "expression not valid in this position")
	}
}

func isBroadcastAgg(name string) bool {
	switch name {
	case "mean", "max", "min", "median":
		return true
	default:
		return false
	}
}

func compileBroadcast(c *ast.Call, schema plan.Schema, rows []plan.Row) (plan.Expr, error) {
	if len(c.Args) != 1 {
		return nil, dplyerr.Signaturef(c.Span(), "%s() takes exactly one column", c.Name)
	}
	col, err := compileExpr(c.Args[0], schema, rows)
	if err != nil {
		return nil, err
	}
	agg := plan.AggCall{Kind: aggKinds[c.Name], Col: col}
	v, err := agg.Eval(schema, rows)
	if err != nil {
		return nil, dplyerr.RuntimeWrap(err, "%s() broadcast", c.Name)
	}
	return plan.LitExpr{Value: v}, nil
}

func litExpr(l *ast.Lit) plan.Expr {
	switch l.Kind {
	case ast.LitInt:
		return plan.LitExpr{Value: plan.IntVal(l.Int)}
	case ast.LitFloat:
		return plan.LitExpr{Value: plan.FloatVal(l.Float)}
	case ast.LitString:
		return plan.LitExpr{Value: plan.StrVal(l.Str)}
	case ast.LitBool:
		return plan.LitExpr{Value: plan.BoolVal(l.Bool)}
	default:
		return plan.LitExpr{Value: plan.Null()}
	}
}

// columnType reports the static type of e's column when e is a bare
// identifier naming a schema column, so contains() can reject numeric
// patterns against string columns at compile time.
func columnType(e ast.Expr, schema plan.Schema) (plan.Type, bool) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return 0, false
	}
	f, ok := schema.Field(id.Name)
	if !ok {
		return 0, false
	}
	return f.Type, true
}

// containsPattern renders a contains() pattern literal to the string
// form ContainsExpr matches against: the literal text for a regex
// match on string columns, or the same decimal text Value.String()
// produces for an element-equality match on list columns.
func containsPattern(l *ast.Lit) (string, error) {
	switch l.Kind {
	case ast.LitString:
		return l.Str, nil
	case ast.LitInt:
		return strconv.FormatInt(l.Int, 10), nil
	case ast.LitFloat:
		return strconv.FormatFloat(l.Float, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("contains() pattern must be a string, int, or float literal")
	}
}

func cmpOp(op ast.CmpOp) plan.CmpOp {
	switch op {
	case ast.CmpEq:
		return plan.CmpEq
	case ast.CmpNe:
		return plan.CmpNe
	case ast.CmpLt:
		return plan.CmpLt
	case ast.CmpLe:
		return plan.CmpLe
	case ast.CmpGt:
		return plan.CmpGt
	case ast.CmpGe:
		return plan.CmpGe
	default:
		return plan.CmpEq
	}
}

func logicalOp(op ast.LogicalOp) plan.LogicalOp {
	if op == ast.LogicalOr {
		return plan.LogicalOr
	}
	return plan.LogicalAnd
}

func arithOp(op ast.ArithOp) plan.ArithOp {
	switch op {
	case ast.ArithAdd:
		return plan.ArithAdd
	case ast.ArithSub:
		return plan.ArithSub
	case ast.ArithMul:
		return plan.ArithMul
	case ast.ArithDiv:
		return plan.ArithDiv
	default:
		return plan.ArithAdd
	}
}

func compileCall(c *ast.Call, schema plan.Schema, rows []plan.Row) (plan.Expr, error) {
	switch c.Name {
	case "contains":
		if len(c.Args) != 2 {
			return nil, dplyerr.Signaturef(c.Span(), "contains() takes a column and a pattern")
		}
		inner, err := compileExpr(c.Args[0], schema, rows)
		if err != nil {
			return nil, err
		}
		pat, ok := c.Args[1].(*ast.Lit)
		if !ok {
			return nil, dplyerr.Signaturef(c.Args[1].Span(), "contains() pattern must be a literal")
		}
		// A string column only ever matches a string pattern as a
		// regex; a list column also accepts a numeric literal, matched
		// against its elements by equality.
		if t, ok := columnType(c.Args[0], schema); ok && t == plan.Utf8 && pat.Kind != ast.LitString {
			return nil, dplyerr.Signaturef(c.Args[1].Span(), "contains() pattern must be a string literal")
		}
		pattern, err := containsPattern(pat)
		if err != nil {
			return nil, dplyerr.Signaturef(c.Args[1].Span(), "%s", err)
		}
		ce, err := plan.NewContainsExpr(inner, pattern)
		if err != nil {
			return nil, dplyerr.RuntimeWrap(err, "invalid contains() pattern")
		}
		return ce, nil

	case "is_null":
		if len(c.Args) != 1 {
			return nil, dplyerr.Signaturef(c.Span(), "is_null() takes exactly one column")
		}
		inner, err := compileExpr(c.Args[0], schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.IsNullExpr{Inner: inner}, nil

	case "len":
		if len(c.Args) != 1 {
			return nil, dplyerr.Signaturef(c.Span(), "len() takes exactly one column")
		}
		inner, err := compileExpr(c.Args[0], schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.LenExpr{Inner: inner}, nil

	case "field":
		if len(c.Args) != 2 {
			return nil, dplyerr.Signaturef(c.Span(), "field() takes a struct column and a field name")
		}
		inner, err := compileExpr(c.Args[0], schema, rows)
		if err != nil {
			return nil, err
		}
		name, ok := c.Args[1].(*ast.Lit)
		if !ok || name.Kind != ast.LitString {
			name2, ok2 := c.Args[1].(*ast.Ident)
			if !ok2 {
				return nil, dplyerr.Signaturef(c.Args[1].Span(), "field() name must be a string or identifier")
			}
			return plan.FieldExpr{Inner: inner, Name: name2.Name}, nil
		}
		return plan.FieldExpr{Inner: inner, Name: name.Str}, nil

	case "row":
		if len(c.Args) != 0 {
			return nil, dplyerr.Signaturef(c.Span(), "row() takes no arguments")
		}
		return plan.RowExpr{Index: -1}, nil

	case "dt", "ymd_hms":
		if len(c.Args) != 1 {
			return nil, dplyerr.Signaturef(c.Span(), "%s() takes exactly one string argument", c.Name)
		}
		lit, ok := c.Args[0].(*ast.Lit)
		if !ok || lit.Kind != ast.LitString {
			return nil, dplyerr.Signaturef(c.Args[0].Span(), "%s() argument must be a string literal", c.Name)
		}
		t, err := parseDate(lit.Str)
		if err != nil {
			return nil, dplyerr.RuntimeWrap(err, "invalid %s() literal %q at %d:%d", c.Name, lit.Str,
				lit.Span().Line, lit.Span().Col)
		}
		typ := plan.Date
		if len(lit.Str) > 10 {
			typ = plan.Datetime
		}
		v := plan.Value{Type: typ, Time: t}
		return plan.ConstTimeExpr{Value: v}, nil

	case "dnanos", "dmicros", "dmillis", "dsecs":
		if len(c.Args) != 1 {
			return nil, dplyerr.Signaturef(c.Span(), "%s() takes exactly one numeric argument", c.Name)
		}
		inner, err := compileExpr(c.Args[0], schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.DurationConvExpr{Inner: inner, Unit: durationUnits[c.Name], ToDur: true}, nil

	case "nanos", "micros", "millis", "secs":
		if len(c.Args) != 1 {
			return nil, dplyerr.Signaturef(c.Span(), "%s() takes exactly one duration argument", c.Name)
		}
		inner, err := compileExpr(c.Args[0], schema, rows)
		if err != nil {
			return nil, err
		}
		return plan.DurationConvExpr{Inner: inner, Unit: durationUnits[c.Name], ToDur: false}, nil

	case "mean", "max", "min", "median":
		// Only reachable here for filter/summarize contexts, where
		// rows is nil and scalar broadcast isn't legal.
		return nil, dplyerr.Signaturef(c.Span(), "%s() can only be used inside summarize() or as a scalar broadcast in mutate()", c.Name)

	default:
		return nil, dplyerr.Signaturef(c.Span(), "unknown function %q in this expression context", c.Name)
	}
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// CompileAgg lowers one summarize() assignment's right-hand side into
// a plan.Agg.
func CompileAgg(e ast.Expr, schema plan.Schema) (plan.Agg, error) {
	c, ok := e.(*ast.Call)
	if !ok {
		return nil, dplyerr.Signaturef(e.Span(), "summarize() values must be aggregate calls")
	}

	if c.Name == "n" {
		if len(c.Args) != 0 {
			return nil, dplyerr.Signaturef(c.Span(), "n() takes no arguments")
		}
		return plan.AggCall{Kind: plan.AggN}, nil
	}

	kind, ok := aggKinds[c.Name]
	if !ok {
		return nil, dplyerr.Signaturef(c.Span(), "unknown aggregate %q", c.Name)
	}

	if kind == plan.AggQuantile {
		if len(c.Args) != 2 {
			return nil, dplyerr.Signaturef(c.Span(), "quantile() takes a column and a quantile value")
		}
		col, err := CompileRow(c.Args[0], schema)
		if err != nil {
			return nil, err
		}
		q, err := literalFloat(c.Args[1])
		if err != nil {
			return nil, err
		}
		return plan.AggCall{Kind: kind, Col: col, Quantile: q}, nil
	}

	if len(c.Args) != 1 {
		return nil, dplyerr.Signaturef(c.Span(), "%s() takes exactly one column", c.Name)
	}
	col, err := CompileRow(c.Args[0], schema)
	if err != nil {
		return nil, err
	}
	return plan.AggCall{Kind: kind, Col: col}, nil
}

var aggKinds = map[string]plan.AggKind{
	"list": plan.AggList, "max": plan.AggMax, "min": plan.AggMin,
	"mean": plan.AggMean, "median": plan.AggMedian, "sd": plan.AggSD,
	"sum": plan.AggSum, "var": plan.AggVar, "quantile": plan.AggQuantile,
}

func literalFloat(e ast.Expr) (float64, error) {
	lit, ok := e.(*ast.Lit)
	if !ok {
		return 0, dplyerr.Signaturef(e.Span(), "expected a numeric literal")
	}
	switch lit.Kind {
	case ast.LitInt:
		return float64(lit.Int), nil
	case ast.LitFloat:
		return lit.Float, nil
	case ast.LitString:
		f, err := strconv.ParseFloat(lit.Str, 64)
		if err != nil {
			return 0, dplyerr.Signaturef(e.Span(), "expected a numeric literal")
		}
		return f, nil
	default:
		return 0, dplyerr.Signaturef(e.Span(), "expected a numeric literal")
	}
}
