// Package schema implements C3, the Schema Extractor: for each recognized
// data format it produces a small structural summary without the payload.
// One dispatcher keyed on extension; each extractor captures its own
// errors into model.Schema.Error rather than propagating them. Grounded on
// original_source/src/mapper/schema_extractor.py.
package schema

import (
	"path/filepath"
	"strings"

	"deepclean/internal/model"
)

// Extract dispatches to the extractor matching path's extension. Unknown
// extensions return nil, matching the original's "unknown extensions
// return null".
func Extract(path string, maxDepth int, csvSampleRows int) *model.Schema {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json", ".jsonl":
		return extractJSON(path, maxDepth)
	case ".yaml", ".yml":
		return extractYAML(path, maxDepth)
	case ".csv":
		return extractCSV(path, csvSampleRows)
	case ".sqlite", ".sqlite3", ".db":
		return extractSQLite(path)
	case ".py":
		return extractPythonDict(path)
	}
	return nil
}

func errSchema(err error) *model.Schema {
	return &model.Schema{Error: err.Error()}
}
