package plan

import (
	"fmt"
	"strconv"
	"time"
)

// Value is a dynamically-typed cell carrying dates, durations, lists,
// and structs alongside the usual scalar types.
type Value struct {
	Type     Type
	Int      int64
	Float    float64
	Str      string
	Bool     bool
	Time     time.Time     // Date / Datetime
	Dur      time.Duration // Duration
	List     []Value       // ListType
	Struct   map[string]Value
	IsNilVal bool
}

// Null returns the null value.
func Null() Value { return Value{IsNilVal: true} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.IsNilVal }

func IntVal(v int64) Value      { return Value{Type: Int64, Int: v} }
func FloatVal(v float64) Value  { return Value{Type: Float64, Float: v} }
func StrVal(v string) Value     { return Value{Type: Utf8, Str: v} }
func BoolVal(v bool) Value      { return Value{Type: Bool, Bool: v} }
func DateVal(t time.Time) Value { return Value{Type: Date, Time: t} }
func DatetimeVal(t time.Time) Value {
	return Value{Type: Datetime, Time: t}
}
func DurationVal(d time.Duration) Value { return Value{Type: Duration, Dur: d} }
func ListVal(elems []Value) Value       { return Value{Type: ListType, List: elems} }
func StructVal(fields map[string]Value) Value {
	return Value{Type: StructType, Struct: fields}
}

// AsFloat coerces numeric types to float64.
func (v Value) AsFloat() (float64, bool) {
	if v.IsNilVal {
		return 0, false
	}
	switch v.Type {
	case Int64:
		return float64(v.Int), true
	case Float64:
		return v.Float, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean value, if v is of Bool type.
func (v Value) AsBool() (bool, bool) {
	if v.IsNilVal || v.Type != Bool {
		return false, false
	}
	return v.Bool, true
}

// AsTime returns the Date/Datetime value as a time.Time.
func (v Value) AsTime() (time.Time, bool) {
	if v.IsNilVal || (v.Type != Date && v.Type != Datetime) {
		return time.Time{}, false
	}
	return v.Time, true
}

// AsDuration returns the Duration value.
func (v Value) AsDuration() (time.Duration, bool) {
	if v.IsNilVal || v.Type != Duration {
		return 0, false
	}
	return v.Dur, true
}

// String renders the value the way it is displayed in a table cell.
func (v Value) String() string {
	if v.IsNilVal {
		return ""
	}
	switch v.Type {
	case Int64:
		return strconv.FormatInt(v.Int, 10)
	case Float64:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case Utf8:
		return v.Str
	case Bool:
		if v.Bool {
			return "true"
		}
		return "false"
	case Date:
		return v.Time.Format("2006-01-02")
	case Datetime:
		return v.Time.Format("2006-01-02 15:04:05")
	case Duration:
		return formatDuration(v.Dur)
	case ListType:
		out := "["
		for i, e := range v.List {
			if i > 0 {
				out += ", "
			}
			out += e.String()
		}
		return out + "]"
	case StructType:
		return fmt.Sprintf("%v", v.Struct)
	default:
		return "?"
	}
}

// formatDuration renders a duration as its largest two non-zero units,
// space joined (e.g. "1h 6m").
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	neg := d < 0
	if neg {
		d = -d
	}
	units := []struct {
		name string
		dur  time.Duration
	}{
		{"h", time.Hour}, {"m", time.Minute}, {"s", time.Second},
		{"ms", time.Millisecond}, {"us", time.Microsecond}, {"ns", time.Nanosecond},
	}
	var parts []string
	for _, u := range units {
		if d >= u.dur {
			n := d / u.dur
			d -= n * u.dur
			parts = append(parts, fmt.Sprintf("%d%s", n, u.name))
			if len(parts) == 2 {
				break
			}
		}
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Compare orders two values for arrange/sort: nulls last (consistently
// for both ascending and descending order — see DESIGN.md's Open
// Question resolutions), then numeric, then time, then string.
func Compare(a, b Value) int {
	if a.IsNilVal && b.IsNilVal {
		return 0
	}
	if a.IsNilVal {
		return 1
	}
	if b.IsNilVal {
		return -1
	}
	if af, aok := a.AsFloat(); aok {
		if bf, bok := b.AsFloat(); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.AsTime(); aok {
		if bt, bok := b.AsTime(); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if ad, aok := a.AsDuration(); aok {
		if bd, bok := b.AsDuration(); bok {
			switch {
			case ad < bd:
				return -1
			case ad > bd:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two values represent the same scalar: both
// null, or the same type with the same rendered text.
func Equal(a, b Value) bool {
	if a.IsNilVal != b.IsNilVal {
		return false
	}
	if a.IsNilVal {
		return true
	}
	return a.String() == b.String() && a.Type == b.Type
}
