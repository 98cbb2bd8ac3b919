package plan

import (
	"fmt"
	"regexp"
	"time"
)

// Expr is a compiled logical column expression: given a schema and a
// single row, it evaluates to a Value. The compiler package produces
// Exprs (eval also joins filter predicates with LogicalExpr); Frame
// operations (Filter, Mutate), aggregates and eval's mutate type
// inference evaluate them.
type Expr interface {
	Eval(schema Schema, row Row) (Value, error)
}

// ColExpr references a column by its schema index.
type ColExpr struct{ Index int }

func (e ColExpr) Eval(_ Schema, row Row) (Value, error) { return row[e.Index], nil }

// LitExpr is a constant value.
type LitExpr struct{ Value Value }

func (e LitExpr) Eval(Schema, Row) (Value, error) { return e.Value, nil }

// RowExpr produces the 0-based row index, filled in by Frame.Mutate.
type RowExpr struct{ Index int }

func (e RowExpr) Eval(Schema, Row) (Value, error) { return IntVal(int64(e.Index)), nil }

// CmpOp mirrors ast.CmpOp in the plan's own vocabulary.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// CmpExpr is a comparison of two sub-expressions.
type CmpExpr struct {
	Op       CmpOp
	Lhs, Rhs Expr
}

func (e CmpExpr) Eval(schema Schema, row Row) (Value, error) {
	l, err := e.Lhs.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	r, err := e.Rhs.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	return compareOp(e.Op, l, r), nil
}

func compareOp(op CmpOp, l, r Value) Value {
	if l.IsNilVal && r.IsNilVal {
		return BoolVal(op == CmpEq)
	}
	if l.IsNilVal || r.IsNilVal {
		return BoolVal(op == CmpNe)
	}
	cmp := Compare(l, r)
	switch op {
	case CmpEq:
		return BoolVal(cmp == 0)
	case CmpNe:
		return BoolVal(cmp != 0)
	case CmpLt:
		return BoolVal(cmp < 0)
	case CmpLe:
		return BoolVal(cmp <= 0)
	case CmpGt:
		return BoolVal(cmp > 0)
	case CmpGe:
		return BoolVal(cmp >= 0)
	}
	return BoolVal(false)
}

// LogicalOp is & or |.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// LogicalExpr combines two boolean sub-expressions.
type LogicalExpr struct {
	Op       LogicalOp
	Lhs, Rhs Expr
}

func (e LogicalExpr) Eval(schema Schema, row Row) (Value, error) {
	l, err := e.Lhs.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	lb, ok := l.AsBool()
	if !ok {
		return Null(), fmt.Errorf("logical operand did not evaluate to a boolean")
	}
	// Short circuit like the row-level boolean it represents.
	if e.Op == LogicalAnd && !lb {
		return BoolVal(false), nil
	}
	if e.Op == LogicalOr && lb {
		return BoolVal(true), nil
	}
	r, err := e.Rhs.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	rb, ok := r.AsBool()
	if !ok {
		return Null(), fmt.Errorf("logical operand did not evaluate to a boolean")
	}
	return BoolVal(rb), nil
}

// ArithOp is + - * /.
type ArithOp int

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithDiv
)

// ArithExpr is an arithmetic expression over numeric, duration, or
// timestamp sub-expressions.
type ArithExpr struct {
	Op       ArithOp
	Lhs, Rhs Expr
}

func (e ArithExpr) Eval(schema Schema, row Row) (Value, error) {
	l, err := e.Lhs.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	r, err := e.Rhs.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	if l.IsNilVal || r.IsNilVal {
		return Null(), nil
	}
	return evalArith(e.Op, l, r)
}

func evalArith(op ArithOp, l, r Value) (Value, error) {
	// timestamp - timestamp = duration
	if lt, lok := l.AsTime(); lok && op == ArithSub {
		if rt, rok := r.AsTime(); rok {
			return DurationVal(lt.Sub(rt)), nil
		}
	}
	// timestamp +/- duration = timestamp
	if lt, lok := l.AsTime(); lok {
		if rd, rok := r.AsDuration(); rok {
			switch op {
			case ArithAdd:
				return DatetimeVal(lt.Add(rd)), nil
			case ArithSub:
				return DatetimeVal(lt.Add(-rd)), nil
			}
		}
	}
	// duration +/- duration = duration
	if ld, lok := l.AsDuration(); lok {
		if rd, rok := r.AsDuration(); rok {
			switch op {
			case ArithAdd:
				return DurationVal(ld + rd), nil
			case ArithSub:
				return DurationVal(ld - rd), nil
			}
		}
	}
	// string + string = concatenation
	if op == ArithAdd && l.Type == Utf8 && r.Type == Utf8 {
		return StrVal(l.Str + r.Str), nil
	}

	lf, lok := l.AsFloat()
	rf, rok := r.AsFloat()
	if !lok || !rok {
		return Null(), fmt.Errorf("cannot apply arithmetic to %s and %s", l.Type, r.Type)
	}

	var out float64
	switch op {
	case ArithAdd:
		out = lf + rf
	case ArithSub:
		out = lf - rf
	case ArithMul:
		out = lf * rf
	case ArithDiv:
		if rf == 0 {
			return Null(), nil
		}
		out = lf / rf
	}
	if l.Type == Int64 && r.Type == Int64 && op != ArithDiv {
		return IntVal(int64(out)), nil
	}
	if l.Type == Int64 && r.Type == Int64 && op == ArithDiv && r.Int != 0 && l.Int%r.Int == 0 {
		return IntVal(l.Int / r.Int), nil
	}
	return FloatVal(out), nil
}

// NotExpr negates a boolean sub-expression.
type NotExpr struct{ Inner Expr }

func (e NotExpr) Eval(schema Schema, row Row) (Value, error) {
	v, err := e.Inner.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	b, ok := v.AsBool()
	if !ok {
		return Null(), fmt.Errorf("'!' requires a boolean operand")
	}
	return BoolVal(!b), nil
}

// NegExpr negates a numeric sub-expression.
type NegExpr struct{ Inner Expr }

func (e NegExpr) Eval(schema Schema, row Row) (Value, error) {
	v, err := e.Inner.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	if v.IsNilVal {
		return Null(), nil
	}
	switch v.Type {
	case Int64:
		return IntVal(-v.Int), nil
	case Float64:
		return FloatVal(-v.Float), nil
	default:
		return Null(), fmt.Errorf("cannot negate a %s value", v.Type)
	}
}

// IsNullExpr tests (or negates) nullness.
type IsNullExpr struct {
	Inner   Expr
	Negated bool
}

func (e IsNullExpr) Eval(schema Schema, row Row) (Value, error) {
	v, err := e.Inner.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	isNull := v.IsNilVal
	if e.Negated {
		isNull = !isNull
	}
	return BoolVal(isNull), nil
}

// ContainsExpr implements contains(col, pattern): substring/regex match
// for strings, element match for lists.
type ContainsExpr struct {
	Inner   Expr
	Pattern string
	re      *regexp.Regexp
}

// NewContainsExpr precompiles the pattern's regex matcher once.
func NewContainsExpr(inner Expr, pattern string) (*ContainsExpr, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid contains() pattern %q: %w", pattern, err)
	}
	return &ContainsExpr{Inner: inner, Pattern: pattern, re: re}, nil
}

func (e *ContainsExpr) Eval(schema Schema, row Row) (Value, error) {
	v, err := e.Inner.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	if v.IsNilVal {
		return BoolVal(false), nil
	}
	switch v.Type {
	case Utf8:
		return BoolVal(e.re.MatchString(v.Str)), nil
	case ListType:
		for _, elem := range v.List {
			if elem.Type == Utf8 && e.re.MatchString(elem.Str) {
				return BoolVal(true), nil
			}
			if elem.Type != Utf8 && elem.String() == e.Pattern {
				return BoolVal(true), nil
			}
		}
		return BoolVal(false), nil
	default:
		return Null(), fmt.Errorf("contains() is not supported on %s columns", v.Type)
	}
}

// LenExpr implements len(col): element count for lists, rune count for
// strings.
type LenExpr struct{ Inner Expr }

func (e LenExpr) Eval(schema Schema, row Row) (Value, error) {
	v, err := e.Inner.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	if v.IsNilVal {
		return Null(), nil
	}
	switch v.Type {
	case Utf8:
		return IntVal(int64(len([]rune(v.Str)))), nil
	case ListType:
		return IntVal(int64(len(v.List))), nil
	default:
		return Null(), fmt.Errorf("len() is not supported on %s columns", v.Type)
	}
}

// FieldExpr implements field(struct_col, name): struct sub-projection.
type FieldExpr struct {
	Inner Expr
	Name  string
}

func (e FieldExpr) Eval(schema Schema, row Row) (Value, error) {
	v, err := e.Inner.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	if v.IsNilVal {
		return Null(), nil
	}
	if v.Type != StructType {
		return Null(), fmt.Errorf("field() requires a struct column")
	}
	sub, ok := v.Struct[e.Name]
	if !ok {
		return Null(), fmt.Errorf("struct has no field %q", e.Name)
	}
	return sub, nil
}

// DurationConvExpr implements dnanos/dmicros/dmillis/dsecs (number ->
// duration) and nanos/micros/millis/secs (duration -> number).
type DurationConvExpr struct {
	Inner   Expr
	Unit    time.Duration
	ToDur   bool // true: number->duration, false: duration->number
}

func (e DurationConvExpr) Eval(schema Schema, row Row) (Value, error) {
	v, err := e.Inner.Eval(schema, row)
	if err != nil {
		return Null(), err
	}
	if v.IsNilVal {
		return Null(), nil
	}
	if e.ToDur {
		f, ok := v.AsFloat()
		if !ok {
			return Null(), fmt.Errorf("expected a number")
		}
		return DurationVal(time.Duration(f * float64(e.Unit))), nil
	}
	d, ok := v.AsDuration()
	if !ok {
		return Null(), fmt.Errorf("expected a duration")
	}
	return FloatVal(float64(d) / float64(e.Unit)), nil
}

// ConstTimeExpr implements dt(str)/ymd_hms(str): a constant timestamp
// parsed at compile time (by the compiler package), carried through
// execution as a literal.
type ConstTimeExpr = LitExpr
