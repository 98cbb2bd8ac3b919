package dataio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincev/dply/plan"
)

func testSchema() plan.Schema {
	return plan.Schema{
		{Name: "id", Type: plan.Int64},
		{Name: "name", Type: plan.Utf8},
		{Name: "total", Type: plan.Float64},
	}
}

func testRows() []plan.Row {
	return []plan.Row{
		{plan.IntVal(1), plan.StrVal("a"), plan.FloatVal(1.5)},
		{plan.IntVal(2), plan.StrVal("b"), plan.Null()},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, false, testSchema(), testRows()))

	schema, rows, err := CSVSource{Path: path}.Load()
	require.NoError(t, err)
	require.Len(t, schema, 3)
	assert.Equal(t, "name", schema.Names()[1])
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0][0].Int)
	assert.Equal(t, "a", rows[0][1].Str)
	assert.True(t, rows[1][2].IsNull(), "a null total should round-trip through CSV")
}

func TestCSVWriteRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, false, testSchema(), testRows()))
	assert.Error(t, WriteCSV(path, false, testSchema(), testRows()))
	assert.NoError(t, WriteCSV(path, true, testSchema(), testRows()))
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	require.NoError(t, WriteJSON(path, false, testSchema(), testRows()))

	schema, rows, err := JSONSource{Path: path}.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.GreaterOrEqual(t, schema.IndexOf("id"), 0)
	assert.GreaterOrEqual(t, schema.IndexOf("name"), 0)
	assert.GreaterOrEqual(t, schema.IndexOf("total"), 0)
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	require.NoError(t, WriteCSV(csvPath, false, testSchema(), testRows()))

	schema, rows, err := Load(csvPath)
	require.NoError(t, err)
	assert.Len(t, schema, 3)
	assert.Len(t, rows, 2)
}

func TestLoadUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bogus")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, _, err := Load(path)
	assert.Error(t, err)
}
