package dataio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincev/dply/plan"
)

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	schema := plan.Schema{
		{Name: "id", Type: plan.Int64},
		{Name: "name", Type: plan.Utf8},
		{Name: "total", Type: plan.Float64},
	}
	rows := []plan.Row{
		{plan.IntVal(1), plan.StrVal("a"), plan.FloatVal(1.5)},
		{plan.IntVal(2), plan.StrVal("b"), plan.Null()},
	}

	require.NoError(t, WriteParquet(path, false, schema, rows))

	gotSchema, gotRows, err := ParquetSource{Path: path}.Load()
	require.NoError(t, err)
	require.Len(t, gotSchema, 3)
	require.Len(t, gotRows, 2)
	assert.Equal(t, int64(1), gotRows[0][0].Int)
	assert.Equal(t, "a", gotRows[0][1].Str)
	assert.True(t, gotRows[1][2].IsNull(), "a null total should round-trip through parquet")
}

func TestParquetSourceDirectoryRequiresCommonSchema(t *testing.T) {
	dir := t.TempDir()
	schemaA := plan.Schema{{Name: "id", Type: plan.Int64}}
	schemaB := plan.Schema{{Name: "other", Type: plan.Int64}}

	require.NoError(t, WriteParquet(filepath.Join(dir, "a.parquet"), false, schemaA, []plan.Row{{plan.IntVal(1)}}))
	require.NoError(t, WriteParquet(filepath.Join(dir, "b.parquet"), false, schemaB, []plan.Row{{plan.IntVal(2)}}))

	_, _, err := (ParquetSource{Path: dir}).Load()
	assert.Error(t, err, "expected an error loading a directory of mismatched parquet schemas")
}
