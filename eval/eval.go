// Package eval walks a validated script's pipelines, threading a
// lazy plan.Frame through each step, maintaining the process-wide
// variable table and display configuration, and dispatching sinks and
// terminals.
package eval

import (
	"io"
	"os"

	"github.com/vincev/dply/ast"
	"github.com/vincev/dply/compiler"
	"github.com/vincev/dply/dataio"
	"github.com/vincev/dply/display"
	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
	"github.com/vincev/dply/selector"
	"github.com/vincev/dply/signature"
)

// Context is the process-wide evaluation state: the variable table and
// display configuration, both persisting across pipelines within a
// script or REPL session.
type Context struct {
	Vars   map[string]*plan.Frame
	Config display.Config
	Out    io.Writer

	// LastSchema is the most recently materialized schema, used by the
	// REPL's completion hooks to offer column names.
	LastSchema plan.Schema
}

// NewContext builds a fresh evaluation context with default display
// settings and an empty variable table.
func NewContext(out io.Writer) *Context {
	return &Context{
		Vars:   make(map[string]*plan.Frame),
		Config: display.DefaultConfig(),
		Out:    out,
	}
}

// groupState is the per-pipeline slot holding group_by's keys until
// the immediately-following summarize consumes them.
type groupState struct {
	indices []int
	names   []string
}

// Run validates and evaluates every pipeline in script, in order. A
// failure in one pipeline aborts the whole script (REPL callers should
// instead call RunPipeline per submission so earlier pipelines' state
// survives a later error).
func (c *Context) Run(script *ast.Script) error {
	if err := signature.Check(script); err != nil {
		return err
	}
	for _, p := range script.Pipelines {
		if err := c.RunPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

// RunPipeline evaluates a single already-checked pipeline.
func (c *Context) RunPipeline(p *ast.Pipeline) error {
	if len(p.Steps) == 0 {
		return nil
	}
	if cs, ok := p.Steps[0].(*ast.CallStep); ok && cs.Call.Name == "config" && len(p.Steps) == 1 {
		return c.evalConfig(cs.Call)
	}

	frame, startIdx, err := c.resolveFirstStep(p.Steps[0])
	if err != nil {
		return err
	}

	var grouping *groupState
	for i := startIdx; i < len(p.Steps); i++ {
		step := p.Steps[i]
		switch s := step.(type) {
		case *ast.VarStep:
			c.Vars[s.Name] = frame.Clone()

		case *ast.CallStep:
			nf, done, gs, err := c.evalCall(s.Call, frame, grouping)
			if err != nil {
				return err
			}
			frame = nf
			grouping = gs
			if done {
				return nil
			}

		default:
			return dplyerr.SignaturefNoSpan("unrecognized pipeline step")
		}
	}

	if frame != nil {
		if schema, err := frame.Schema(); err == nil {
			c.LastSchema = schema
		}
	}
	return nil
}

// resolveFirstStep builds the pipeline's initial frame: a source read
// or a variable dereference. It returns the index of the next
// unconsumed step (1, since the first step is always consumed here).
func (c *Context) resolveFirstStep(step ast.Step) (*plan.Frame, int, error) {
	switch s := step.(type) {
	case *ast.VarStep:
		f, ok := c.Vars[s.Name]
		if !ok {
			return nil, 0, dplyerr.Variablef(s.Span(), "undefined variable %q", s.Name)
		}
		return f.Clone(), 1, nil

	case *ast.CallStep:
		switch s.Call.Name {
		case "csv", "json", "parquet":
			f, err := c.openSource(s.Call)
			if err != nil {
				return nil, 0, err
			}
			return f, 1, nil
		default:
			return nil, 0, dplyerr.Signaturef(s.Call.Span(), "%s() cannot be the first step of a pipeline", s.Call.Name)
		}

	default:
		return nil, 0, dplyerr.SignaturefNoSpan("unrecognized pipeline step")
	}
}

func (c *Context) openSource(call *ast.Call) (*plan.Frame, error) {
	path, err := stringArg(call.Args[0])
	if err != nil {
		return nil, err
	}
	switch call.Name {
	case "csv":
		return plan.FromSource(dataio.CSVSource{Path: path}), nil
	case "json":
		return plan.FromSource(dataio.JSONSource{Path: path}), nil
	case "parquet":
		return plan.FromSource(dataio.ParquetSource{Path: path}), nil
	default:
		return nil, dplyerr.Signaturef(call.Span(), "unknown source function %q", call.Name)
	}
}

func stringArg(e ast.Expr) (string, error) {
	lit, ok := e.(*ast.Lit)
	if !ok || lit.Kind != ast.LitString {
		return "", dplyerr.Signaturef(e.Span(), "expected a string literal")
	}
	return lit.Str, nil
}

// evalCall dispatches one middle/sink/terminal/standalone call. done
// is true when the pipeline has reached a terminal and should stop.
func (c *Context) evalCall(call *ast.Call, frame *plan.Frame, grouping *groupState) (*plan.Frame, bool, *groupState, error) {
	switch call.Name {
	case "config":
		return frame, false, grouping, c.evalConfig(call)

	case "csv", "json", "parquet":
		if grouping != nil {
			return nil, false, nil, dplyerr.Signaturef(call.Span(), "group_by() must be immediately followed by summarize()")
		}
		nf, err := c.evalSink(call, frame)
		return nf, false, nil, err

	case "select":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalSelect(call, frame) })
	case "rename":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalRename(call, frame) })
	case "relocate":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalRelocate(call, frame) })
	case "filter":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalFilter(call, frame) })
	case "mutate":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalMutate(call, frame) })
	case "arrange":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalArrange(call, frame) })
	case "count":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalCount(call, frame) })
	case "distinct":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalDistinct(call, frame) })
	case "unnest":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalUnnest(call, frame) })

	case "group_by":
		if grouping != nil {
			return nil, false, nil, dplyerr.Signaturef(call.Span(), "group_by() must be immediately followed by summarize()")
		}
		gs, err := c.evalGroupBy(call, frame)
		return frame, false, gs, err

	case "summarize":
		nf, err := c.evalSummarize(call, frame, grouping)
		return nf, false, nil, err

	case "inner_join", "left_join", "outer_join", "cross_join", "anti_join":
		return c.dispatch(call, grouping, func() (*plan.Frame, error) { return c.evalJoin(call, frame) })

	case "head":
		return c.evalTerminal(call, grouping, func() error { return c.printHead(call, frame) })
	case "show":
		return c.evalTerminal(call, grouping, func() error { return c.printShow(frame) })
	case "glimpse":
		return c.evalTerminal(call, grouping, func() error { return c.printGlimpse(frame) })

	default:
		return nil, false, nil, dplyerr.Signaturef(call.Span(), "unknown function %q", call.Name)
	}
}

func (c *Context) dispatch(call *ast.Call, grouping *groupState, f func() (*plan.Frame, error)) (*plan.Frame, bool, *groupState, error) {
	if grouping != nil {
		return nil, false, nil, dplyerr.Signaturef(call.Span(), "group_by() must be immediately followed by summarize()")
	}
	nf, err := f()
	return nf, false, nil, err
}

func (c *Context) evalTerminal(call *ast.Call, grouping *groupState, f func() error) (*plan.Frame, bool, *groupState, error) {
	if grouping != nil {
		return nil, false, nil, dplyerr.Signaturef(call.Span(), "group_by() must be immediately followed by summarize()")
	}
	return nil, true, nil, f()
}

func (c *Context) evalConfig(call *ast.Call) error {
	for _, arg := range call.Args {
		asn, ok := arg.(*ast.Assign)
		if !ok {
			return dplyerr.Signaturef(arg.Span(), "config() takes named arguments only")
		}
		n, err := intLit(asn.Value)
		if err != nil {
			return err
		}
		switch asn.Target {
		case "max_columns":
			c.Config.MaxColumns = n
		case "max_column_width":
			c.Config.MaxColumnWidth = n
		case "max_table_width":
			c.Config.MaxTableWidth = n
		default:
			return dplyerr.Signaturef(asn.Span(), "config() does not accept option %q", asn.Target)
		}
	}
	return nil
}

func intLit(e ast.Expr) (int, error) {
	lit, ok := e.(*ast.Lit)
	if !ok || lit.Kind != ast.LitInt {
		return 0, dplyerr.Signaturef(e.Span(), "expected an integer literal")
	}
	return int(lit.Int), nil
}

func boolLit(e ast.Expr) (bool, error) {
	lit, ok := e.(*ast.Lit)
	if !ok || lit.Kind != ast.LitBool {
		return false, dplyerr.Signaturef(e.Span(), "expected a boolean literal")
	}
	return lit.Bool, nil
}

func (c *Context) evalSink(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	path, err := stringArg(call.Args[0])
	if err != nil {
		return nil, err
	}
	overwrite := false
	for _, arg := range call.Args[1:] {
		if asn, ok := arg.(*ast.Assign); ok && asn.Target == "overwrite" {
			overwrite, err = boolLit(asn.Value)
			if err != nil {
				return nil, err
			}
		}
	}

	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	rows, err := frame.Materialize()
	if err != nil {
		return nil, err
	}

	switch call.Name {
	case "csv":
		err = dataio.WriteCSV(path, overwrite, schema, rows)
	case "json":
		err = dataio.WriteJSON(path, overwrite, schema, rows)
	case "parquet":
		err = dataio.WriteParquet(path, overwrite, schema, rows)
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func (c *Context) evalSelect(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	refs, err := selector.ResolveRequired(call.Args, schema, "select()")
	if err != nil {
		return nil, err
	}
	return frame.Project(refs)
}

func (c *Context) evalRename(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	var pairs []plan.ColumnRef
	for _, arg := range call.Args {
		asn, ok := arg.(*ast.Assign)
		if !ok {
			return nil, dplyerr.Signaturef(arg.Span(), "rename() arguments must be new = old")
		}
		old, ok := asn.Value.(*ast.Ident)
		if !ok || !schema.Has(old.Name) {
			return nil, dplyerr.Schemaf(asn.Span(), "unknown column in rename()")
		}
		pairs = append(pairs, plan.ColumnRef{Name: old.Name, As: asn.Target})
	}
	return frame.Rename(pairs)
}

func (c *Context) evalRelocate(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	var cols []string
	var before, after string
	for _, arg := range call.Args {
		if asn, ok := arg.(*ast.Assign); ok {
			switch asn.Target {
			case "before":
				ident, ok := asn.Value.(*ast.Ident)
				if !ok {
					return nil, dplyerr.Signaturef(asn.Span(), "before= expects a column identifier")
				}
				before = ident.Name
			case "after":
				ident, ok := asn.Value.(*ast.Ident)
				if !ok {
					return nil, dplyerr.Signaturef(asn.Span(), "after= expects a column identifier")
				}
				after = ident.Name
			default:
				return nil, dplyerr.Signaturef(asn.Span(), "relocate() does not accept named argument %q", asn.Target)
			}
			continue
		}
		refs, err := selector.Resolve([]ast.Expr{arg}, schema)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			cols = append(cols, r.Name)
		}
	}
	return frame.Relocate(cols, before, after)
}

func (c *Context) evalFilter(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	var pred plan.Expr
	for _, arg := range call.Args {
		e, err := compiler.CompileRow(arg, schema)
		if err != nil {
			return nil, err
		}
		if pred == nil {
			pred = e
		} else {
			pred = plan.LogicalExpr{Op: plan.LogicalAnd, Lhs: pred, Rhs: e}
		}
	}
	return frame.Filter(pred)
}

func (c *Context) evalMutate(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	rows, err := frame.Materialize()
	if err != nil {
		return nil, err
	}

	var assigns []plan.MutateAssignment
	for _, arg := range call.Args {
		asn, ok := arg.(*ast.Assign)
		if !ok {
			return nil, dplyerr.Signaturef(arg.Span(), "mutate() arguments must be name = expr")
		}
		e, err := compiler.CompileMutate(asn.Value, schema, rows)
		if err != nil {
			return nil, err
		}
		typ, err := inferExprType(e, schema, rows)
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, plan.MutateAssignment{Name: asn.Target, Type: typ, Expr: e})
	}
	return frame.Mutate(assigns)
}

// inferExprType evaluates e against each row in turn and takes the
// type of the first non-null result (Utf8 when there is none); mutate
// needs a static schema type before any row has actually been
// rewritten, and every dply value carries its own type tag once
// computed.
func inferExprType(e plan.Expr, schema plan.Schema, rows []plan.Row) (plan.Type, error) {
	if len(rows) == 0 {
		return plan.Utf8, nil
	}
	for _, row := range rows {
		v, err := e.Eval(schema, row)
		if err != nil {
			return 0, err
		}
		if !v.IsNull() {
			return v.Type, nil
		}
	}
	return plan.Utf8, nil
}

func (c *Context) evalArrange(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	var keys []plan.SortKey
	for _, arg := range call.Args {
		desc := false
		colExpr := arg
		if call2, ok := arg.(*ast.Call); ok && call2.Name == "desc" {
			if len(call2.Args) != 1 {
				return nil, dplyerr.Signaturef(call2.Span(), "desc() takes exactly one column")
			}
			desc = true
			colExpr = call2.Args[0]
		}
		ident, ok := colExpr.(*ast.Ident)
		if !ok {
			return nil, dplyerr.Signaturef(colExpr.Span(), "arrange() arguments must be columns or desc(column)")
		}
		idx := schema.IndexOf(ident.Name)
		if idx < 0 {
			return nil, dplyerr.Schemaf(ident.Span(), "unknown column %q", ident.Name)
		}
		keys = append(keys, plan.SortKey{Index: idx, Desc: desc})
	}
	return frame.Sort(keys)
}

func (c *Context) evalCount(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	var cols []string
	var indices []int
	sortResult := false
	for _, arg := range call.Args {
		if asn, ok := arg.(*ast.Assign); ok && asn.Target == "sort" {
			sortResult, err = boolLit(asn.Value)
			if err != nil {
				return nil, err
			}
			continue
		}
		ident, ok := arg.(*ast.Ident)
		if !ok {
			return nil, dplyerr.Signaturef(arg.Span(), "count() arguments must be column identifiers")
		}
		idx := schema.IndexOf(ident.Name)
		if idx < 0 {
			return nil, dplyerr.Schemaf(ident.Span(), "unknown column %q", ident.Name)
		}
		cols = append(cols, ident.Name)
		indices = append(indices, idx)
	}

	nf, err := frame.GroupAggregate(indices, cols, []plan.MutateAssignment{
		{Name: "n", Type: plan.Int64, Expr: plan.AggCall{Kind: plan.AggN}},
	})
	if err != nil {
		return nil, err
	}
	if sortResult {
		nSchema, err := nf.Schema()
		if err != nil {
			return nil, err
		}
		return nf.Sort([]plan.SortKey{{Index: nSchema.IndexOf("n"), Desc: true}})
	}
	return nf, nil
}

func (c *Context) evalDistinct(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, arg := range call.Args {
		ident, ok := arg.(*ast.Ident)
		if !ok {
			return nil, dplyerr.Signaturef(arg.Span(), "distinct() arguments must be column identifiers")
		}
		if !schema.Has(ident.Name) {
			return nil, dplyerr.Schemaf(ident.Span(), "unknown column %q", ident.Name)
		}
		names = append(names, ident.Name)
	}
	return frame.Distinct(names)
}

func (c *Context) evalUnnest(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, arg := range call.Args {
		ident, ok := arg.(*ast.Ident)
		if !ok {
			return nil, dplyerr.Signaturef(arg.Span(), "unnest() arguments must be column identifiers")
		}
		if !schema.Has(ident.Name) {
			return nil, dplyerr.Schemaf(ident.Span(), "unknown column %q", ident.Name)
		}
		names = append(names, ident.Name)
	}
	return frame.Unnest(names)
}

func (c *Context) evalGroupBy(call *ast.Call, frame *plan.Frame) (*groupState, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	gs := &groupState{}
	for _, arg := range call.Args {
		ident, ok := arg.(*ast.Ident)
		if !ok {
			return nil, dplyerr.Signaturef(arg.Span(), "group_by() arguments must be column identifiers")
		}
		idx := schema.IndexOf(ident.Name)
		if idx < 0 {
			return nil, dplyerr.Schemaf(ident.Span(), "unknown column %q", ident.Name)
		}
		gs.indices = append(gs.indices, idx)
		gs.names = append(gs.names, ident.Name)
	}
	return gs, nil
}

func (c *Context) evalSummarize(call *ast.Call, frame *plan.Frame, grouping *groupState) (*plan.Frame, error) {
	schema, err := frame.Schema()
	if err != nil {
		return nil, err
	}

	keyNames := map[string]bool{}
	if grouping != nil {
		for _, n := range grouping.names {
			keyNames[n] = true
		}
	}

	var aggs []plan.MutateAssignment
	for _, arg := range call.Args {
		asn, ok := arg.(*ast.Assign)
		if !ok {
			return nil, dplyerr.Signaturef(arg.Span(), "summarize() arguments must be name = agg(col)")
		}
		if keyNames[asn.Target] {
			return nil, dplyerr.SignaturefNoSpan("summarize() output %q collides with a group_by() key", asn.Target)
		}
		agg, err := compiler.CompileAgg(asn.Value, schema)
		if err != nil {
			return nil, err
		}
		typ, err := aggResultType(agg, schema, frame)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, plan.MutateAssignment{Name: asn.Target, Type: typ, Expr: agg})
	}

	var indices []int
	var names []string
	if grouping != nil {
		indices, names = grouping.indices, grouping.names
	}
	return frame.GroupAggregate(indices, names, aggs)
}

func aggResultType(agg plan.Agg, schema plan.Schema, frame *plan.Frame) (plan.Type, error) {
	rows, err := frame.Materialize()
	if err != nil {
		return 0, err
	}
	v, err := agg.Eval(schema, rows)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return plan.Float64, nil
	}
	return v.Type, nil
}

func (c *Context) evalJoin(call *ast.Call, frame *plan.Frame) (*plan.Frame, error) {
	if len(call.Args) == 0 {
		return nil, dplyerr.Signaturef(call.Span(), "%s() requires a pipeline variable argument", call.Name)
	}
	ident, ok := call.Args[0].(*ast.Ident)
	if !ok {
		return nil, dplyerr.Signaturef(call.Args[0].Span(), "%s()'s first argument must be a pipeline variable", call.Name)
	}
	other, ok := c.Vars[ident.Name]
	if !ok {
		return nil, dplyerr.Variablef(ident.Span(), "undefined variable %q", ident.Name)
	}

	leftSchema, err := frame.Schema()
	if err != nil {
		return nil, err
	}
	rightSchema, err := other.Schema()
	if err != nil {
		return nil, err
	}

	var preds []plan.JoinPredicate
	for _, arg := range call.Args[1:] {
		cmp, ok := arg.(*ast.Cmp)
		if !ok || cmp.Op != ast.CmpEq {
			return nil, dplyerr.Signaturef(arg.Span(), "join predicates must be equality comparisons")
		}
		lIdent, lok := cmp.Lhs.(*ast.Ident)
		rIdent, rok := cmp.Rhs.(*ast.Ident)
		if !lok || !rok {
			return nil, dplyerr.Signaturef(arg.Span(), "join predicates must compare two columns")
		}
		li := leftSchema.IndexOf(lIdent.Name)
		ri := rightSchema.IndexOf(rIdent.Name)
		if li < 0 || ri < 0 {
			return nil, dplyerr.Schemaf(arg.Span(), "join predicate references an unknown column")
		}
		preds = append(preds, plan.JoinPredicate{LeftIndex: li, RightIndex: ri})
	}

	kind := joinKind(call.Name)
	if kind == plan.JoinOuter && len(preds) == 0 && len(call.Args) == 1 {
		hasCommon := false
		for _, lf := range leftSchema {
			if rightSchema.Has(lf.Name) {
				hasCommon = true
			}
		}
		if !hasCommon {
			return nil, dplyerr.SchemafNoSpan("outer_join() has no common columns and no explicit predicates; add one or the other")
		}
	}

	return frame.Join(other, kind, preds)
}

func joinKind(name string) plan.JoinKind {
	switch name {
	case "inner_join":
		return plan.JoinInner
	case "left_join":
		return plan.JoinLeft
	case "outer_join":
		return plan.JoinOuter
	case "cross_join":
		return plan.JoinCross
	case "anti_join":
		return plan.JoinAnti
	default:
		return plan.JoinInner
	}
}

func (c *Context) printShow(frame *plan.Frame) error {
	schema, err := frame.Schema()
	if err != nil {
		return err
	}
	rows, err := frame.Materialize()
	if err != nil {
		return err
	}
	c.LastSchema = schema
	display.Show(c.output(), c.Config, schema, rows)
	return nil
}

func (c *Context) printHead(call *ast.Call, frame *plan.Frame) error {
	n := 6
	if len(call.Args) == 1 {
		v, err := intLit(call.Args[0])
		if err != nil {
			return err
		}
		n = v
	}
	schema, err := frame.Schema()
	if err != nil {
		return err
	}
	rows, err := frame.Materialize()
	if err != nil {
		return err
	}
	c.LastSchema = schema
	display.Head(c.output(), c.Config, schema, rows, n)
	return nil
}

func (c *Context) printGlimpse(frame *plan.Frame) error {
	schema, err := frame.Schema()
	if err != nil {
		return err
	}
	rows, err := frame.Materialize()
	if err != nil {
		return err
	}
	c.LastSchema = schema
	display.Glimpse(c.output(), schema, rows)
	return nil
}

func (c *Context) output() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

// VariableNames returns the currently bound pipeline variable names,
// for the REPL's completion hooks.
func (c *Context) VariableNames() []string {
	names := make([]string, 0, len(c.Vars))
	for name := range c.Vars {
		names = append(names, name)
	}
	return names
}
