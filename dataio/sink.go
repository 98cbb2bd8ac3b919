// Package dataio implements the CSV/NDJSON/Parquet/Avro readers and
// writers that back the pipeline language's source and sink
// functions, implementing plan.Source so a Frame can be built
// directly from a file.
package dataio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/plan"
)

// openSink opens path for writing, refusing to clobber an existing
// file unless overwrite is set.
func openSink(path string, overwrite bool) (*os.File, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, dplyerr.Runtimef("%s already exists; pass overwrite=true to replace it", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, dplyerr.RuntimeWrap(err, "cannot create %s", path)
	}
	return f, nil
}

// Load dispatches on path's extension to the matching Source and reads
// it. The pipeline language itself only names csv/json/parquet (each
// dispatches directly to its own Source type in eval); Load is the
// package's one extension-keyed entry point, and the only one that
// also accepts the bonus .avro format.
func Load(path string) (plan.Schema, []plan.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSVSource{Path: path}.Load()
	case ".json", ".ndjson", ".jsonl":
		return JSONSource{Path: path}.Load()
	case ".parquet":
		return ParquetSource{Path: path}.Load()
	case ".avro":
		return AvroSource{Path: path}.Load()
	default:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return ParquetSource{Path: path}.Load()
		}
		return nil, nil, dplyerr.Runtimef("cannot determine file format for %s", path)
	}
}
