package dataio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
)

// CSVSource reads a CSV file with a header row: column names are
// taken from the first row, cell types are inferred per-column.
type CSVSource struct{ Path string }

func (s CSVSource) Load() (plan.Schema, []plan.Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot open %s", s.Path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot read CSV header from %s", s.Path)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, dplyerr.RuntimeWrap(err, "error reading CSV row in %s", s.Path)
		}
		records = append(records, rec)
	}

	cols := make([][]string, len(names))
	for _, rec := range records {
		for i := range names {
			if i < len(rec) {
				cols[i] = append(cols[i], strings.TrimSpace(rec[i]))
			} else {
				cols[i] = append(cols[i], "")
			}
		}
	}

	schema := make(plan.Schema, len(names))
	for i, name := range names {
		schema[i] = plan.Field{Name: name, Type: inferColumnType(cols[i])}
	}

	rows := make([]plan.Row, len(records))
	for ri := range records {
		row := make(plan.Row, len(names))
		for ci, field := range schema {
			row[ci] = parseTyped(cols[ci][ri], field.Type)
		}
		rows[ri] = row
	}

	return schema, rows, nil
}

// inferColumnType scans a column's raw string cells and picks the
// narrowest type every non-empty cell parses as, widening int->float
// on the first non-integer numeric cell, and falling back to Utf8
// when no cell fits a narrower type.
func inferColumnType(cells []string) plan.Type {
	sawInt, sawFloat, sawBool, sawString := false, false, false, false
	for _, c := range cells {
		if c == "" || strings.EqualFold(c, "null") {
			continue
		}
		switch {
		case isInt(c):
			sawInt = true
		case isFloat(c):
			sawFloat = true
		case isBool(c):
			sawBool = true
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

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isBool(s string) bool {
	lower := strings.ToLower(s)
	return lower == "true" || lower == "false"
}

func parseTyped(s string, typ plan.Type) plan.Value {
	if s == "" || strings.EqualFold(s, "null") {
		return plan.Null()
	}
	switch typ {
	case plan.Int64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return plan.Null()
		}
		return plan.IntVal(v)
	case plan.Float64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return plan.Null()
		}
		return plan.FloatVal(v)
	case plan.Bool:
		return plan.BoolVal(strings.EqualFold(s, "true"))
	default:
		return plan.StrVal(s)
	}
}

// WriteCSV writes schema/rows to path as a header-plus-rows CSV file,
// refusing to overwrite an existing file unless overwrite is set.
func WriteCSV(path string, overwrite bool, schema plan.Schema, rows []plan.Row) error {
	f, err := openSink(path, overwrite)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(schema.Names()); err != nil {
		return dplyerr.RuntimeWrap(err, "error writing CSV header to %s", path)
	}
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = v.String()
		}
		if err := w.Write(rec); err != nil {
			return dplyerr.RuntimeWrap(err, "error writing CSV row to %s", path)
		}
	}
	w.Flush()
	return w.Error()
}
