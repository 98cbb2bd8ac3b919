package dataio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
)

// ParquetSource reads a Parquet file, or, given a directory, every
// .parquet file inside it, concatenating their rows and requiring a
// common column set. It uses parquet-go's dynamic map[string]any
// generic reader/writer, since the schema isn't known until the file
// is opened.
type ParquetSource struct{ Path string }

func (s ParquetSource) Load() (plan.Schema, []plan.Row, error) {
	paths, err := parquetFilePaths(s.Path)
	if err != nil {
		return nil, nil, err
	}

	var schema plan.Schema
	var rows []plan.Row
	for _, p := range paths {
		sch, rs, err := readParquetFile(p)
		if err != nil {
			return nil, nil, err
		}
		if schema == nil {
			schema = sch
		} else if !sameColumns(schema, sch) {
			return nil, nil, dplyerr.Runtimef("parquet files in %s have mismatched schemas", s.Path)
		}
		rows = append(rows, rs...)
	}
	if schema == nil {
		return nil, nil, dplyerr.Runtimef("%s contains no parquet files", s.Path)
	}
	return schema, rows, nil
}

func parquetFilePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, dplyerr.RuntimeWrap(err, "cannot open %s", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, dplyerr.RuntimeWrap(err, "cannot read directory %s", path)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".parquet" {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, dplyerr.Runtimef("%s contains no .parquet files", path)
	}
	return out, nil
}

func sameColumns(a, b plan.Schema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

func readParquetFile(path string) (plan.Schema, []plan.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot open %s", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot stat %s", path)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot read parquet file %s", path)
	}

	names, types := parquetColumns(pf.Schema())

	reader := parquet.NewGenericReader[map[string]any](f, pf.Schema())
	defer reader.Close()

	var records []map[string]any
	buf := make([]map[string]any, 128)
	for i := range buf {
		buf[i] = make(map[string]any, len(names))
	}
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			rec := make(map[string]any, len(names))
			for k, v := range buf[i] {
				rec[k] = v
			}
			records = append(records, rec)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, dplyerr.RuntimeWrap(err, "error reading %s", path)
		}
		if n == 0 {
			break
		}
	}

	schema := make(plan.Schema, len(names))
	for i, name := range names {
		schema[i] = plan.Field{Name: name, Type: types[i]}
	}

	rows := make([]plan.Row, len(records))
	for ri, rec := range records {
		row := make(plan.Row, len(names))
		for ci, name := range names {
			v, ok := rec[name]
			if !ok || v == nil {
				row[ci] = plan.Null()
				continue
			}
			row[ci] = parquetDecodeValue(v, types[ci])
		}
		rows[ri] = row
	}

	return schema, rows, nil
}

// parquetColumns reads the top-level field names and picks a plan.Type
// for each from the Parquet physical kind, the way inferJSONColumnType
// picks a dply type from decoded JSON values.
func parquetColumns(schema *parquet.Schema) ([]string, []plan.Type) {
	fields := schema.Fields()
	names := make([]string, len(fields))
	types := make([]plan.Type, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
		types[i] = parquetKindToType(f.Type().Kind())
	}
	return names, types
}

func parquetKindToType(k parquet.Kind) plan.Type {
	switch k {
	case parquet.Boolean:
		return plan.Bool
	case parquet.Int32, parquet.Int64, parquet.Int96:
		return plan.Int64
	case parquet.Float, parquet.Double:
		return plan.Float64
	default:
		return plan.Utf8
	}
}

func parquetDecodeValue(v any, typ plan.Type) plan.Value {
	switch val := v.(type) {
	case bool:
		return plan.BoolVal(val)
	case int32:
		return plan.IntVal(int64(val))
	case int64:
		return plan.IntVal(val)
	case float32:
		return plan.FloatVal(float64(val))
	case float64:
		return plan.FloatVal(val)
	case string:
		return plan.StrVal(val)
	case []byte:
		return plan.StrVal(string(val))
	default:
		return plan.StrVal(fmt.Sprintf("%v", val))
	}
}

// WriteParquet writes schema/rows to path as a single Parquet file,
// refusing to clobber an existing file unless overwrite.
func WriteParquet(path string, overwrite bool, schema plan.Schema, rows []plan.Row) error {
	f, err := openSink(path, overwrite)
	if err != nil {
		return err
	}
	defer f.Close()

	pschema := buildParquetSchema(schema)
	writer := parquet.NewGenericWriter[map[string]any](f, pschema)

	names := schema.Names()
	for _, row := range rows {
		rec := make(map[string]any, len(names))
		for i, name := range names {
			rec[name] = parquetEncodeValue(row[i])
		}
		if _, err := writer.Write([]map[string]any{rec}); err != nil {
			return dplyerr.RuntimeWrap(err, "error writing parquet row to %s", path)
		}
	}
	if err := writer.Close(); err != nil {
		return dplyerr.RuntimeWrap(err, "error closing %s", path)
	}
	return nil
}

func buildParquetSchema(schema plan.Schema) *parquet.Schema {
	group := parquet.Group{}
	for _, f := range schema {
		group[f.Name] = parquet.Optional(parquetLeaf(f.Type))
	}
	return parquet.NewSchema("dply_row", group)
}

func parquetLeaf(t plan.Type) parquet.Node {
	switch t {
	case plan.Int64, plan.Duration:
		return parquet.Int(64)
	case plan.Float64:
		return parquet.Leaf(parquet.DoubleType)
	case plan.Bool:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

func parquetEncodeValue(v plan.Value) any {
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
	case plan.Duration:
		return int64(v.Dur)
	default:
		return v.String()
	}
}
