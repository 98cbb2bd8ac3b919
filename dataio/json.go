package dataio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
)

// JSONSource reads a newline-delimited JSON file: one object per line.
// The schema is the union of every record's fields, in order of the
// record each field first appears in; fields that first appear in the
// same record have no defined order among themselves.
type JSONSource struct{ Path string }

func (s JSONSource) Load() (plan.Schema, []plan.Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot open %s", s.Path)
	}
	defer f.Close()

	var records []map[string]any
	var order []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, nil, dplyerr.RuntimeWrap(err, "invalid JSON on line %d of %s", line, s.Path)
		}
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "error reading %s", s.Path)
	}

	types := make([]plan.Type, len(order))
	for i, col := range order {
		types[i] = inferJSONColumnType(records, col)
	}

	schema := make(plan.Schema, len(order))
	for i, col := range order {
		schema[i] = plan.Field{Name: col, Type: types[i]}
	}

	rows := make([]plan.Row, len(records))
	for ri, rec := range records {
		row := make(plan.Row, len(order))
		for ci, col := range order {
			v, ok := rec[col]
			if !ok || v == nil {
				row[ci] = plan.Null()
				continue
			}
			row[ci] = jsonValue(v, types[ci])
		}
		rows[ri] = row
	}

	return schema, rows, nil
}

func inferJSONColumnType(records []map[string]any, col string) plan.Type {
	sawInt, sawFloat, sawBool, sawString := false, false, false, false
	for _, rec := range records {
		v, ok := rec[col]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n == float64(int64(n)) {
				sawInt = true
			} else {
				sawFloat = true
			}
		case bool:
			sawBool = true
		case string:
			sawString = true
		default:
			sawString = true
		}
	}
	switch {
	case sawString:
		return plan.Utf8
	case sawBool && (sawInt || sawFloat):
		return plan.Utf8
	case sawBool:
		return plan.Bool
	case sawFloat:
		return plan.Float64
	case sawInt:
		return plan.Int64
	default:
		return plan.Utf8
	}
}

// jsonValue converts a decoded JSON scalar to a typed plan.Value.
// Nested objects/arrays are stringified, since struct/list types are
// only produced by Parquet reads and unnest, not by json().
func jsonValue(v any, typ plan.Type) plan.Value {
	switch val := v.(type) {
	case float64:
		if typ == plan.Int64 {
			return plan.IntVal(int64(val))
		}
		return plan.FloatVal(val)
	case string:
		return plan.StrVal(val)
	case bool:
		return plan.BoolVal(val)
	default:
		b, _ := json.Marshal(val)
		return plan.StrVal(string(b))
	}
}

// WriteJSON writes schema/rows to path as newline-delimited JSON
// objects, refusing to clobber an existing file unless overwrite.
func WriteJSON(path string, overwrite bool, schema plan.Schema, rows []plan.Row) error {
	f, err := openSink(path, overwrite)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	names := schema.Names()
	enc := json.NewEncoder(w)
	for _, row := range rows {
		rec := make(map[string]any, len(names))
		for i, name := range names {
			rec[name] = jsonEncodeValue(row[i])
		}
		if err := enc.Encode(rec); err != nil {
			return dplyerr.RuntimeWrap(err, "error writing JSON row to %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		return dplyerr.RuntimeWrap(err, "error flushing %s", path)
	}
	return nil
}

func jsonEncodeValue(v plan.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Type {
	case plan.Int64:
		return v.Int
	case plan.Float64:
		return v.Float
	case plan.Bool:
		return v.Bool
	case plan.Utf8:
		return v.Str
	case plan.Date, plan.Datetime, plan.Duration:
		return v.String()
	case plan.ListType:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = jsonEncodeValue(e)
		}
		return out
	case plan.StructType:
		out := make(map[string]any, len(v.Struct))
		for k, e := range v.Struct {
			out[k] = jsonEncodeValue(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}
