package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Source loads the rows of a frame's leaf plan node: a source file
// read (csv/json/parquet/avro) or a variable dereference.
type Source interface {
	Load() (Schema, []Row, error)
}

// Frame is dply's lazy dataframe: an opaque handle to a logical plan
// plus its advertised schema. Materialize() is the
// only way to obtain rows; it runs the plan exactly once and caches
// the result, so cloning a Frame handle (as a pipeline variable bind
// does) is cheap and safe. A Frame wraps a compute closure over its
// parent(s) and defers running it until a sink or terminal asks for
// rows, rather than holding fully materialized rows up front.
type Frame struct {
	schema  Schema
	compute func() ([]Row, error)
	rows    []Row
	done    bool
}

// FromSource builds a leaf Frame over a Source.
func FromSource(src Source) *Frame {
	f := &Frame{}
	f.compute = func() ([]Row, error) {
		schema, rows, err := src.Load()
		if err != nil {
			return nil, err
		}
		f.schema = schema
		return rows, nil
	}
	return f
}

// fromRows builds an already-resolved Frame (used once Materialize has
// computed a schema it needs to know ahead of calling compute, and by
// tests).
func fromRows(schema Schema, rows []Row) *Frame {
	return &Frame{schema: schema, rows: rows, done: true}
}

// derive builds a new Frame whose compute closure materializes parent
// first, then transforms its rows. newSchema is computed eagerly since
// every builder method already knows it without needing the rows.
func (f *Frame) derive(newSchema Schema, transform func([]Row) ([]Row, error)) *Frame {
	out := &Frame{schema: newSchema}
	out.compute = func() ([]Row, error) {
		rows, err := f.Materialize()
		if err != nil {
			return nil, err
		}
		return transform(rows)
	}
	return out
}

// Schema returns the frame's advertised schema. For a leaf frame whose
// source hasn't been loaded yet, this forces materialization, since
// source schemas (CSV header, JSON field union, Parquet schema) are
// only known once the file is read.
func (f *Frame) Schema() (Schema, error) {
	if f.schema != nil {
		return f.schema, nil
	}
	if _, err := f.Materialize(); err != nil {
		return nil, err
	}
	return f.schema, nil
}

// Materialize runs the frame's logical plan to completion, caching the
// result so repeated calls (a sink followed by a terminal, or the same
// variable dereferenced twice) do not recompute.
func (f *Frame) Materialize() ([]Row, error) {
	if f.done {
		return f.rows, nil
	}
	rows, err := f.compute()
	if err != nil {
		return nil, err
	}
	f.rows = rows
	f.done = true
	return rows, nil
}

// Clone returns an independent handle sharing the same plan: used when
// a pipeline variable is bound or dereferenced, since each binding
// needs its own cloneable lazy-plan handle.
func (f *Frame) Clone() *Frame {
	if f.done {
		return fromRows(f.schema, f.rows)
	}
	out := &Frame{schema: f.schema}
	out.compute = func() ([]Row, error) {
		rows, err := f.Materialize()
		if err != nil {
			return nil, err
		}
		if out.schema == nil {
			out.schema = f.schema
		}
		return rows, nil
	}
	return out
}

// --- Builder operations ---

// Project projects and/or renames columns per refs, in ref order.
func (f *Frame) Project(refs []ColumnRef) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(refs))
	newSchema := make(Schema, len(refs))
	for i, r := range refs {
		idx := schema.IndexOf(r.Name)
		if idx < 0 {
			return nil, fmt.Errorf("unknown column %q", r.Name)
		}
		indices[i] = idx
		field := schema[idx]
		field.Name = r.As
		newSchema[i] = field
	}
	return f.derive(newSchema, func(rows []Row) ([]Row, error) {
		out := make([]Row, len(rows))
		for i, row := range rows {
			nr := make(Row, len(indices))
			for j, idx := range indices {
				nr[j] = row[idx]
			}
			out[i] = nr
		}
		return out, nil
	}), nil
}

// Rename renames columns in place, preserving position and all other
// columns.
func (f *Frame) Rename(pairs []ColumnRef) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	newSchema := schema.Clone()
	for _, p := range pairs {
		idx := newSchema.IndexOf(p.Name)
		if idx < 0 {
			return nil, fmt.Errorf("unknown column %q", p.Name)
		}
		newSchema[idx].Name = p.As
	}
	return f.derive(newSchema, func(rows []Row) ([]Row, error) { return rows, nil }), nil
}

// Remove drops the named columns.
func (f *Frame) Remove(names []string) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !schema.Has(n) {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		drop[n] = true
	}
	var keep []int
	var newSchema Schema
	for i, field := range schema {
		if !drop[field.Name] {
			keep = append(keep, i)
			newSchema = append(newSchema, field)
		}
	}
	return f.derive(newSchema, func(rows []Row) ([]Row, error) {
		out := make([]Row, len(rows))
		for i, row := range rows {
			nr := make(Row, len(keep))
			for j, idx := range keep {
				nr[j] = row[idx]
			}
			out[i] = nr
		}
		return out, nil
	}), nil
}

// Relocate moves the named columns to before/after a pivot column, or
// to the front if neither is given.
func (f *Frame) Relocate(names []string, before, after string) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	moveSet := make(map[string]bool, len(names))
	for _, n := range names {
		if !schema.Has(n) {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		moveSet[n] = true
	}

	var rest []int
	for i, field := range schema {
		if !moveSet[field.Name] {
			rest = append(rest, i)
		}
	}
	moved := make([]int, len(names))
	for i, n := range names {
		moved[i] = schema.IndexOf(n)
	}

	var order []int
	switch {
	case before != "":
		pivot := schema.IndexOf(before)
		if pivot < 0 {
			return nil, fmt.Errorf("unknown column %q", before)
		}
		order = insertAround(rest, moved, pivot, true)
	case after != "":
		pivot := schema.IndexOf(after)
		if pivot < 0 {
			return nil, fmt.Errorf("unknown column %q", after)
		}
		order = insertAround(rest, moved, pivot, false)
	default:
		order = append(append([]int{}, moved...), rest...)
	}

	newSchema := make(Schema, len(order))
	for i, idx := range order {
		newSchema[i] = schema[idx]
	}
	return f.derive(newSchema, func(rows []Row) ([]Row, error) {
		out := make([]Row, len(rows))
		for i, row := range rows {
			nr := make(Row, len(order))
			for j, idx := range order {
				nr[j] = row[idx]
			}
			out[i] = nr
		}
		return out, nil
	}), nil
}

func insertAround(rest, moved []int, pivot int, before bool) []int {
	var out []int
	for _, idx := range rest {
		if idx == pivot && before {
			out = append(out, moved...)
		}
		out = append(out, idx)
		if idx == pivot && !before {
			out = append(out, moved...)
		}
	}
	return out
}

// Filter keeps rows for which pred evaluates true.
func (f *Frame) Filter(pred Expr) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	return f.derive(schema, func(rows []Row) ([]Row, error) {
		var out []Row
		for _, row := range rows {
			v, err := pred.Eval(schema, row)
			if err != nil {
				return nil, err
			}
			b, ok := v.AsBool()
			if !ok {
				return nil, fmt.Errorf("filter expression did not evaluate to a boolean")
			}
			if b {
				out = append(out, row)
			}
		}
		return out, nil
	}), nil
}

// MutateAssignment is one compiled "name = expr" to evaluate. Expr
// holds a plan.Expr for Mutate (evaluated once per row) or a plan.Agg
// for GroupAggregate (evaluated once per group) — the two builder
// methods that consume it assert the interface they expect.
type MutateAssignment struct {
	Name string
	Type Type
	Expr any
}

// Mutate adds or overwrites columns from compiled row expressions.
// RowExpr sub-expressions are rewritten per row to carry that row's
// index, matching row()'s "row-index column" semantics.
func (f *Frame) Mutate(assigns []MutateAssignment) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	newSchema := schema.Clone()
	targets := make([]int, len(assigns))
	for i, a := range assigns {
		idx := newSchema.IndexOf(a.Name)
		if idx < 0 {
			idx = len(newSchema)
			newSchema = append(newSchema, Field{Name: a.Name, Type: a.Type})
		} else {
			newSchema[idx].Type = a.Type
		}
		targets[i] = idx
	}
	return f.derive(newSchema, func(rows []Row) ([]Row, error) {
		out := make([]Row, len(rows))
		for i, row := range rows {
			nr := make(Row, len(newSchema))
			copy(nr, row)
			for j := len(row); j < len(newSchema); j++ {
				nr[j] = Null()
			}
			for k, a := range assigns {
				e, ok := a.Expr.(Expr)
				if !ok {
					return nil, fmt.Errorf("mutate %q: not a row expression", a.Name)
				}
				v, err := evalWithRowIndex(e, schema, row, i)
				if err != nil {
					return nil, fmt.Errorf("mutate %q: %w", a.Name, err)
				}
				nr[targets[k]] = v
			}
			out[i] = nr
		}
		return out, nil
	}), nil
}

// evalWithRowIndex substitutes the current row index into any RowExpr
// nodes before evaluating. row() has no sub-expressions to recurse
// into, so a pre-pass isn't needed; the compiler always produces a
// fresh RowExpr{Index: -1} placeholder that Mutate patches here.
func evalWithRowIndex(e Expr, schema Schema, row Row, idx int) (Value, error) {
	if re, ok := e.(RowExpr); ok {
		re.Index = idx
		return re.Eval(schema, row)
	}
	return e.Eval(schema, row)
}

// SortKey is one arrange() key: a column and whether it sorts
// descending.
type SortKey struct {
	Index int
	Desc  bool
}

// Sort performs a stable, multi-key sort. Nulls sort last regardless
// of direction (see DESIGN.md's Open Question resolutions).
func (f *Frame) Sort(keys []SortKey) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	return f.derive(schema, func(rows []Row) ([]Row, error) {
		out := append([]Row{}, rows...)
		sort.SliceStable(out, func(i, j int) bool {
			for _, k := range keys {
				a, b := out[i][k.Index], out[j][k.Index]
				if a.IsNull() && b.IsNull() {
					continue
				}
				if a.IsNull() {
					return false
				}
				if b.IsNull() {
					return true
				}
				cmp := Compare(a, b)
				if cmp == 0 {
					continue
				}
				if k.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
		return out, nil
	}), nil
}

// Limit keeps the first n rows.
func (f *Frame) Limit(n int) *Frame {
	schema, _ := f.Schema()
	return f.derive(schema, func(rows []Row) ([]Row, error) {
		if n > len(rows) {
			n = len(rows)
		}
		return rows[:n], nil
	})
}

// Distinct deduplicates rows, optionally by a subset of columns.
func (f *Frame) Distinct(names []string) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	var indices []int
	if len(names) > 0 {
		for _, n := range names {
			idx := schema.IndexOf(n)
			if idx < 0 {
				return nil, fmt.Errorf("unknown column %q", n)
			}
			indices = append(indices, idx)
		}
	}
	return f.derive(schema, func(rows []Row) ([]Row, error) {
		seen := make(map[string]bool)
		var out []Row
		for _, row := range rows {
			key := rowKey(row, indices)
			if !seen[key] {
				seen[key] = true
				out = append(out, row)
			}
		}
		return out, nil
	}), nil
}

func rowKey(row Row, indices []int) string {
	var sb strings.Builder
	if len(indices) == 0 {
		for _, v := range row {
			sb.WriteString(v.String())
			sb.WriteByte(0)
		}
		return sb.String()
	}
	for _, idx := range indices {
		sb.WriteString(row[idx].String())
		sb.WriteByte(0)
	}
	return sb.String()
}

// GroupAggregate groups rows by keyIndices and evaluates aggs over
// each group, in first-seen key order.
func (f *Frame) GroupAggregate(keyIndices []int, keyNames []string, aggs []MutateAssignment) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	newSchema := make(Schema, 0, len(keyIndices)+len(aggs))
	for i, idx := range keyIndices {
		field := schema[idx]
		field.Name = keyNames[i]
		newSchema = append(newSchema, field)
	}
	for _, a := range aggs {
		newSchema = append(newSchema, Field{Name: a.Name, Type: a.Type})
	}

	return f.derive(newSchema, func(rows []Row) ([]Row, error) {
		type group struct {
			key  Row
			rows []Row
		}
		var groups []*group
		index := make(map[string]*group)
		for _, row := range rows {
			key := make(Row, len(keyIndices))
			for i, idx := range keyIndices {
				key[i] = row[idx]
			}
			k := rowKey(row, nil)
			if len(keyIndices) > 0 {
				k = rowKey(key, nil)
			}
			g, ok := index[k]
			if !ok {
				g = &group{key: key}
				index[k] = g
				groups = append(groups, g)
			}
			g.rows = append(g.rows, row)
		}
		// Ungrouped summarize: one group over the whole frame.
		if len(keyIndices) == 0 {
			groups = []*group{{rows: rows}}
		}

		out := make([]Row, len(groups))
		for gi, g := range groups {
			nr := make(Row, len(newSchema))
			copy(nr, g.key)
			for i, a := range aggs {
				agg, ok := a.Expr.(Agg)
				if !ok {
					return nil, fmt.Errorf("summarize %q: not an aggregate expression", a.Name)
				}
				v, err := agg.Eval(schema, g.rows)
				if err != nil {
					return nil, fmt.Errorf("summarize %q: %w", a.Name, err)
				}
				nr[len(keyIndices)+i] = v
			}
			out[gi] = nr
		}
		return out, nil
	}), nil
}

// JoinKind identifies a join's semantics.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinOuter
	JoinCross
	JoinAnti
)

// JoinPredicate is one "left.col OP right.col" equality test; dply
// only compiles '==' join predicates, the common case for the
// vocabulary's join functions.
type JoinPredicate struct {
	LeftIndex, RightIndex int
}

// Join combines f with other per kind, using preds, or (if preds is
// empty) the set of columns common to both schemas by name.
func (f *Frame) Join(other *Frame, kind JoinKind, preds []JoinPredicate) (*Frame, error) {
	leftSchema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	rightSchema, err := other.Schema()
	if err != nil {
		return nil, err
	}

	if len(preds) == 0 && kind != JoinCross {
		var common []string
		for _, lf := range leftSchema {
			if rightSchema.Has(lf.Name) {
				common = append(common, lf.Name)
			}
		}
		if len(common) == 0 {
			return nil, fmt.Errorf("no common columns to join on")
		}
		for _, name := range common {
			preds = append(preds, JoinPredicate{LeftIndex: leftSchema.IndexOf(name), RightIndex: rightSchema.IndexOf(name)})
		}
	}

	rightDropped := make(map[int]bool)
	if kind != JoinCross {
		for _, p := range preds {
			if leftSchema[p.LeftIndex].Name == rightSchema[p.RightIndex].Name {
				rightDropped[p.RightIndex] = true
			}
		}
	}

	newSchema := append(Schema{}, leftSchema...)
	var rightKeep []int
	if kind != JoinAnti {
		for i, f := range rightSchema {
			if rightDropped[i] {
				continue
			}
			rightKeep = append(rightKeep, i)
			newSchema = append(newSchema, f)
		}
	}

	return f.derive(newSchema, func(leftRows []Row) ([]Row, error) {
		rightRows, err := other.Materialize()
		if err != nil {
			return nil, err
		}
		return doJoin(leftRows, rightRows, kind, preds, rightKeep, len(newSchema))
	}), nil
}

func doJoin(left, right []Row, kind JoinKind, preds []JoinPredicate, rightKeep []int, width int) ([]Row, error) {
	matches := func(l, r Row) bool {
		for _, p := range preds {
			if Compare(l[p.LeftIndex], r[p.RightIndex]) != 0 {
				return false
			}
		}
		return true
	}

	var out []Row
	switch kind {
	case JoinCross:
		for _, l := range left {
			for _, r := range right {
				out = append(out, combineRows(l, r, rightKeep, width))
			}
		}
	case JoinInner:
		for _, l := range left {
			for _, r := range right {
				if matches(l, r) {
					out = append(out, combineRows(l, r, rightKeep, width))
				}
			}
		}
	case JoinLeft:
		for _, l := range left {
			any := false
			for _, r := range right {
				if matches(l, r) {
					out = append(out, combineRows(l, r, rightKeep, width))
					any = true
				}
			}
			if !any {
				out = append(out, combineRows(l, nil, rightKeep, width))
			}
		}
	case JoinOuter:
		usedRight := make([]bool, len(right))
		for _, l := range left {
			any := false
			for ri, r := range right {
				if matches(l, r) {
					out = append(out, combineRows(l, r, rightKeep, width))
					usedRight[ri] = true
					any = true
				}
			}
			if !any {
				out = append(out, combineRows(l, nil, rightKeep, width))
			}
		}
		for ri, r := range right {
			if !usedRight[ri] {
				out = append(out, combineRows(nil, r, rightKeep, width))
			}
		}
	case JoinAnti:
		for _, l := range left {
			any := false
			for _, r := range right {
				if matches(l, r) {
					any = true
					break
				}
			}
			if !any {
				out = append(out, combineRows(l, nil, nil, len(l)))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported join kind")
	}
	return out, nil
}

func combineRows(l, r Row, rightKeep []int, width int) Row {
	nr := make(Row, width)
	for i, v := range l {
		nr[i] = v
	}
	if l == nil {
		// Leave the left side null-filled; width covers full row.
	}
	leftWidth := width - len(rightKeep)
	for i := len(l); i < leftWidth; i++ {
		nr[i] = Null()
	}
	for j, idx := range rightKeep {
		if r != nil {
			nr[leftWidth+j] = r[idx]
		} else {
			nr[leftWidth+j] = Null()
		}
	}
	return nr
}

// Unnest explodes list-of or struct columns into rows/columns.
func (f *Frame) Unnest(names []string) (*Frame, error) {
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(names))
	for i, n := range names {
		idx := schema.IndexOf(n)
		if idx < 0 {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		indices[i] = idx
	}

	// Struct columns unnest into sibling columns in place; list
	// columns unnest into additional rows. The two modes cannot be
	// mixed in a single call because their row-count effects differ.
	allStruct := true
	for _, idx := range indices {
		if schema[idx].Type != StructType {
			allStruct = false
		}
	}

	if allStruct {
		return f.unnestStruct(schema, indices)
	}
	return f.unnestList(schema, indices)
}

func (f *Frame) unnestStruct(schema Schema, indices []int) (*Frame, error) {
	drop := make(map[int]bool, len(indices))
	for _, idx := range indices {
		drop[idx] = true
	}
	var newSchema Schema
	var keep []int
	for i, field := range schema {
		if drop[i] {
			continue
		}
		keep = append(keep, i)
		newSchema = append(newSchema, field)
	}
	structFields := make([][]string, len(indices))
	return f.derive(newSchema, func(rows []Row) ([]Row, error) {
		out := make([]Row, 0, len(rows))
		for _, row := range rows {
			nr := make(Row, len(keep))
			for j, idx := range keep {
				nr[j] = row[idx]
			}
			for si, idx := range indices {
				v := row[idx]
				if v.Type != StructType {
					return nil, fmt.Errorf("unnest: column is not a struct")
				}
				if structFields[si] == nil {
					for name := range v.Struct {
						structFields[si] = append(structFields[si], name)
					}
					sort.Strings(structFields[si])
				}
				for _, name := range structFields[si] {
					nr = append(nr, v.Struct[name])
				}
			}
			out = append(out, nr)
		}
		return out, nil
	}), nil
}

func (f *Frame) unnestList(schema Schema, indices []int) (*Frame, error) {
	newSchema := schema.Clone()
	for _, idx := range indices {
		newSchema[idx].Type = newSchema[idx].Elem
	}
	return f.derive(newSchema, func(rows []Row) ([]Row, error) {
		var out []Row
		for _, row := range rows {
			n := -1
			for _, idx := range indices {
				v := row[idx]
				if v.Type != ListType {
					return nil, fmt.Errorf("unnest: column is not a list")
				}
				if n < 0 {
					n = len(v.List)
				} else if n != len(v.List) {
					return nil, fmt.Errorf("unnest: list columns have mismatched lengths")
				}
			}
			if n <= 0 {
				continue
			}
			for i := 0; i < n; i++ {
				nr := row.Clone()
				for _, idx := range indices {
					nr[idx] = row[idx].List[i]
				}
				out = append(out, nr)
			}
		}
		return out, nil
	}), nil
}
