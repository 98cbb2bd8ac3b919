package dataio

import (
	"encoding/json"
	"fmt"
	"os"

	goavro "github.com/linkedin/goavro/v2"

	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
)

// AvroSource reads an Avro object-container file. Avro has no pipeline
// function of its own — only csv/json/parquet are named source
// formats — so AvroSource is a read path a future source function (or
// a direct dataio caller, e.g. a conversion script) can use without
// re-deriving the OCF-reading logic.
type AvroSource struct{ Path string }

func (s AvroSource) Load() (plan.Schema, []plan.Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot open %s", s.Path)
	}
	defer f.Close()

	ocfr, err := goavro.NewOCFReader(f)
	if err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot read avro OCF from %s", s.Path)
	}

	var schemaDef struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(ocfr.Codec().Schema()), &schemaDef); err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "cannot parse avro schema in %s", s.Path)
	}

	names := make([]string, len(schemaDef.Fields))
	for i, field := range schemaDef.Fields {
		names[i] = field.Name
	}

	var records []map[string]any
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, nil, dplyerr.RuntimeWrap(err, "error reading avro record in %s", s.Path)
		}
		rec, ok := datum.(map[string]any)
		if !ok {
			return nil, nil, dplyerr.Runtimef("unexpected avro record type %T in %s", datum, s.Path)
		}
		records = append(records, rec)
	}
	if err := ocfr.Err(); err != nil {
		return nil, nil, dplyerr.RuntimeWrap(err, "error reading %s", s.Path)
	}

	types := make([]plan.Type, len(names))
	for i, name := range names {
		types[i] = inferAvroColumnType(records, name)
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
			row[ci] = avroValue(v)
		}
		rows[ri] = row
	}

	return schema, rows, nil
}

func inferAvroColumnType(records []map[string]any, name string) plan.Type {
	for _, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		return avroValue(unwrapAvroUnion(v)).Type
	}
	return plan.Utf8
}

func unwrapAvroUnion(v any) any {
	if m, ok := v.(map[string]any); ok {
		for _, inner := range m {
			return inner
		}
		return nil
	}
	return v
}

func avroValue(v any) plan.Value {
	if v == nil {
		return plan.Null()
	}
	switch val := v.(type) {
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
	case bool:
		return plan.BoolVal(val)
	case []byte:
		return plan.StrVal(string(val))
	case map[string]any:
		for _, inner := range val {
			return avroValue(inner)
		}
		return plan.Null()
	default:
		return plan.StrVal(fmt.Sprintf("%v", val))
	}
}
