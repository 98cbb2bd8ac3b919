// Package signature statically validates a parsed script against the
// pipeline vocabulary's fixed per-function schema: positional
// discipline (source-only-as-step-1, terminal-must-be-last,
// group_by-must-be-followed-by-summarize), arity and argument shapes, and the
// named-argument whitelist — all before any evaluation is attempted.
package signature

import (
	"strconv"

	"github.com/vincev/dply/ast"
	"github.com/vincev/dply/dplyerr"
)

// Position classifies where in a pipeline a function may legally
// appear.
type Position int

const (
	// PosSource: source or sink — only step 1 is a source; any later
	// occurrence is a sink.
	PosSource Position = iota
	// PosMiddle: neither source nor terminal.
	PosMiddle
	// PosTerminal: must be the pipeline's last step.
	PosTerminal
	// PosStandalone: config() — has no dataframe effect. The checker
	// accepts it at any position; at evaluation, config() as step 1 is
	// accepted only when it is the pipeline's only step.
	PosStandalone
)

// Signature is one function's fixed schema entry.
type Signature struct {
	Name     string
	Position Position
	MinArgs  int
	MaxArgs  int // -1 means unbounded
	Named    map[string]bool
}

// Table is the fixed vocabulary of pipeline functions, keyed by
// lower-cased name (the parser already lower-cases call names).
var Table = map[string]Signature{
	"csv":     {Name: "csv", Position: PosSource, MinArgs: 1, MaxArgs: 1, Named: named("overwrite")},
	"json":    {Name: "json", Position: PosSource, MinArgs: 1, MaxArgs: 1, Named: named("overwrite")},
	"parquet": {Name: "parquet", Position: PosSource, MinArgs: 1, MaxArgs: 1, Named: named("overwrite")},

	"config": {Name: "config", Position: PosStandalone, MinArgs: 0, MaxArgs: 0,
		Named: named("max_columns", "max_column_width", "max_table_width")},

	"select":   {Name: "select", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"rename":   {Name: "rename", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"relocate": {Name: "relocate", Position: PosMiddle, MinArgs: 1, MaxArgs: -1, Named: named("before", "after")},
	"filter":   {Name: "filter", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"mutate":   {Name: "mutate", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"group_by": {Name: "group_by", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"summarize": {Name: "summarize", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"arrange":  {Name: "arrange", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"count":    {Name: "count", Position: PosMiddle, MinArgs: 0, MaxArgs: -1, Named: named("sort")},
	"distinct": {Name: "distinct", Position: PosMiddle, MinArgs: 0, MaxArgs: -1},
	"unnest":   {Name: "unnest", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},

	"inner_join": {Name: "inner_join", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"left_join":  {Name: "left_join", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"outer_join": {Name: "outer_join", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"cross_join": {Name: "cross_join", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},
	"anti_join":  {Name: "anti_join", Position: PosMiddle, MinArgs: 1, MaxArgs: -1},

	"head":    {Name: "head", Position: PosTerminal, MinArgs: 0, MaxArgs: 1},
	"show":    {Name: "show", Position: PosTerminal, MinArgs: 0, MaxArgs: 0},
	"glimpse": {Name: "glimpse", Position: PosTerminal, MinArgs: 0, MaxArgs: 0},
}

func named(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Check validates every pipeline in script against the vocabulary's
// positional, arity, and named-argument rules. It does not resolve
// columns or compile expressions — that is compiler/eval's job — but
// it does enforce the group_by/summarize adjacency rule, since it is
// purely positional. Variable steps are accepted at any position; a
// first-step variable is resolved at evaluation time.
func Check(script *ast.Script) error {
	for _, p := range script.Pipelines {
		if err := checkPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

func checkPipeline(p *ast.Pipeline) error {
	if len(p.Steps) == 0 {
		return dplyerr.Signaturef(p.Span(), "pipeline has no steps")
	}

	for i, step := range p.Steps {
		switch s := step.(type) {
		case *ast.VarStep:
			if i == 0 {
				// A variable as the first step is a dereference; its
				// existence is checked at evaluation time, once the
				// variable table is available.
				continue
			}
			// A variable step elsewhere in the pipeline is a bind, legal
			// at any later position including the last; it passes the
			// frame through unchanged. No further syntactic check
			// applies here.
			continue

		case *ast.CallStep:
			if err := checkCall(s.Call, i, len(p.Steps)); err != nil {
				return err
			}
			if s.Call.Name == "group_by" {
				if i+1 >= len(p.Steps) {
					return dplyerr.Signaturef(s.Call.Span(), "group_by() must be immediately followed by summarize()")
				}
				next, ok := p.Steps[i+1].(*ast.CallStep)
				if !ok || next.Call.Name != "summarize" {
					return dplyerr.Signaturef(s.Call.Span(), "group_by() must be immediately followed by summarize()")
				}
			}

		default:
			return dplyerr.Signaturef(step.Span(), "unrecognized pipeline step")
		}
	}
	return nil
}

func checkCall(c *ast.Call, index, total int) error {
	sig, ok := Table[c.Name]
	if !ok {
		return dplyerr.Signaturef(c.Span(), "unknown function %q", c.Name)
	}

	switch sig.Position {
	case PosSource:
		// OK as source (index 0) or as a mid/late sink (index > 0);
		// never as the final terminal-only slot by itself — sinks are
		// always followed by at least nothing required, so no check
		// needed beyond position != terminal, which is implicit since
		// sig.Position != PosTerminal.
	case PosTerminal:
		if index != total-1 {
			return dplyerr.Signaturef(c.Span(), "%s() must be the last step in its pipeline", c.Name)
		}
	case PosMiddle:
		if index == 0 {
			// A middle function as step 1 has no input dataframe; this
			// is a signature violation except we don't have a "source
			// required" kind distinct from general misplacement.
			return dplyerr.Signaturef(c.Span(), "%s() cannot be the first step of a pipeline", c.Name)
		}
	case PosStandalone:
		// config() carries no positional restriction in the checker.
	}

	positional, namedArgs, err := splitArgs(c)
	if err != nil {
		return err
	}

	if len(positional) < sig.MinArgs || (sig.MaxArgs >= 0 && len(positional) > sig.MaxArgs) {
		return dplyerr.Signaturef(c.Span(), "%s() expects %s positional argument(s), got %d",
			c.Name, arityDesc(sig.MinArgs, sig.MaxArgs), len(positional))
	}

	for _, na := range namedArgs {
		if !sig.Named[na.Target] {
			return dplyerr.Signaturef(na.Span(), "%s() does not accept named argument %q", c.Name, na.Target)
		}
	}

	if c.Name == "relocate" {
		hasBefore, hasAfter := false, false
		for _, na := range namedArgs {
			if na.Target == "before" {
				hasBefore = true
			}
			if na.Target == "after" {
				hasAfter = true
			}
		}
		if hasBefore && hasAfter {
			return dplyerr.Signaturef(c.Span(), "relocate() accepts at most one of before= or after=")
		}
	}

	return nil
}

// splitArgs partitions a call's arguments into positional expressions
// and named assignments. For functions whose own vocabulary uses
// Assign as a positional form (rename, select, mutate, summarize),
// every Assign is positional. For every other function, every Assign
// is a named argument, whitelisted or not; checkCall then rejects
// names missing from the Signature's Named whitelist. The relative
// order of positional and named arguments is not checked.
func splitArgs(c *ast.Call) (positional []ast.Expr, namedArgs []*ast.Assign, err error) {
	sig := Table[c.Name]
	assignmentSemantics := assignIsColumnFunc(c.Name)

	for _, arg := range c.Args {
		asn, ok := arg.(*ast.Assign)
		if !ok {
			positional = append(positional, arg)
			continue
		}
		if assignmentSemantics {
			positional = append(positional, arg)
			continue
		}
		if sig.Named[asn.Target] {
			namedArgs = append(namedArgs, asn)
			continue
		}
		// Not a whitelisted option and not an assignment-semantics
		// function: still a named-argument attempt, just an unknown
		// one — surfaced by the whitelist check in checkCall.
		namedArgs = append(namedArgs, asn)
	}
	return positional, namedArgs, nil
}

// assignIsColumnFunc reports whether c.Name treats "x = e" arguments
// as column definitions (mutate/summarize/rename/select) rather than
// as named options (csv/json/parquet/config/relocate/count).
func assignIsColumnFunc(name string) bool {
	switch name {
	case "mutate", "summarize", "rename", "select":
		return true
	default:
		return false
	}
}

func arityDesc(min, max int) string {
	if max < 0 {
		if min == 0 {
			return "any number of"
		}
		return "at least " + strconv.Itoa(min)
	}
	if min == max {
		return "exactly " + strconv.Itoa(min)
	}
	return "between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)
}
