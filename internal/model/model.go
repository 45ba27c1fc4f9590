// Package model holds the data types shared across the deep-clean pipeline
// stages, mirrored from the shared fact/result types the teacher keeps in
// internal/world (ScanResult, code_elements.go) rather than scattering
// near-duplicate structs across packages.
package model

import "time"

// FileCategory tags a file by the kind of content it holds.
type FileCategory string

const (
	CategoryData     FileCategory = "data" // json, csv, jsonl, yaml, xml
	CategoryDatabase FileCategory = "database"
	CategoryCode     FileCategory = "code" // py and other source extensions
	CategoryLog      FileCategory = "log"
	CategoryBinary   FileCategory = "binary" // images, archives, compiled artifacts
	CategoryConfig   FileCategory = "config"
	CategoryUnknown  FileCategory = "unknown"
)

// HeavyFile describes one file the scanner flagged as token-heavy.
type HeavyFile struct {
	AbsolutePath        string       `json:"absolute_path"`
	ProjectRelativePath  string       `json:"project_relative_path"` // forward-slashed
	SizeBytes            int64        `json:"size_bytes"`
	EstimatedTokens       int64        `json:"estimated_tokens"`
	Category              FileCategory `json:"category"`
	CanExtractSchema      bool         `json:"can_extract_schema"`
	Schema                *Schema      `json:"schema,omitempty"`
}

// Schema is a tagged union over the extractable schema shapes. Only the
// fields relevant to Kind are populated, per spec.md Design Note: "do not
// use a shared dictionary with optional fields".
type Schema struct {
	Kind SchemaKind `json:"kind"`

	// JSON/YAML
	Node *SchemaNode `json:"node,omitempty"`

	// CSV
	Columns      []string `json:"columns,omitempty"`
	ColumnTypes  map[string]string `json:"column_types,omitempty"`
	RowCount     int64    `json:"row_count,omitempty"`
	SampleRows   []map[string]string `json:"sample_rows,omitempty"`

	// SQLite
	Tables map[string]SQLiteTable `json:"tables,omitempty"`

	// Python dict/list literal digest (schema extension)
	Variables []PythonVariableDigest `json:"variables,omitempty"`

	// Any extractor error, captured rather than propagated.
	Error string `json:"error,omitempty"`
}

// SchemaKind discriminates the Schema union.
type SchemaKind string

const (
	SchemaKindJSON       SchemaKind = "json"
	SchemaKindYAML       SchemaKind = "yaml"
	SchemaKindCSV        SchemaKind = "csv"
	SchemaKindSQLite     SchemaKind = "sqlite"
	SchemaKindPythonDict SchemaKind = "python_dict"
)

// SchemaNode is the recursive structural summary for JSON/YAML documents.
type SchemaNode struct {
	Type      string                 `json:"type"`
	Keys      map[string]*SchemaNode `json:"keys,omitempty"`
	Items     *SchemaNode            `json:"items,omitempty"`
	Length    *int                   `json:"length,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
}

// SQLiteColumn describes one column from PRAGMA table_info.
type SQLiteColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	PK       bool   `json:"pk"`
}

// SQLiteTable describes one table's columns and row count.
type SQLiteTable struct {
	Columns  []SQLiteColumn `json:"columns"`
	RowCount int64          `json:"row_count"`
}

// PythonVariableDigest summarizes a module-level dict/list literal found by
// the Python-dict schema extractor (SPEC_FULL.md 4.3 expansion).
type PythonVariableDigest struct {
	Name  string      `json:"name"`
	Node  *SchemaNode `json:"node"`
}

// MovedFile is one manifest entry describing a relocated file.
type MovedFile struct {
	ProjectRelativePath  string  `json:"project_relative_path"`
	ExternalRelativePath string  `json:"external_relative_path"`
	SizeBytes            int64   `json:"size_bytes"`
	EstimatedTokens      int64   `json:"tokens"`
	Category             FileCategory `json:"category"`
	Schema               *Schema `json:"schema,omitempty"`
	MovedAt              time.Time `json:"moved_at"`
}

// Manifest is the JSON record of every relocation, the source of truth for
// restore.
type Manifest struct {
	Version         string               `json:"version"`
	ProjectName     string               `json:"project_name"`
	ProjectPath     string               `json:"project_path"`
	ExternalDir     string               `json:"external_dir"`
	Created         time.Time            `json:"created"`
	UpdatedAt       *time.Time           `json:"updated_at,omitempty"`
	ToolkitVersion  string               `json:"toolkit_version"`
	TotalFiles      int                  `json:"total_files"`
	TotalTokens     int64                `json:"total_tokens"`
	OriginalTokens  *int64               `json:"original_tokens,omitempty"`
	Files           []MovedFile          `json:"files"`
}

// PatchLocation records one text edit the AST path patcher wants to apply.
type PatchLocation struct {
	File             string      `json:"file"`
	Line             int         `json:"line"`
	Column           int         `json:"column"`
	OriginalFragment string      `json:"original_fragment"`
	PatchedFragment  string      `json:"patched_fragment"`
	PatternKind      PatternKind `json:"pattern_kind"`
}

// PatternKind discriminates the recognized I/O call forms the patcher
// rewrites.
type PatternKind string

const (
	PatternOpen            PatternKind = "open"
	PatternPathCtor        PatternKind = "path_ctor"
	PatternDataFrameReader PatternKind = "dataframe_reader"
	PatternDBConnect       PatternKind = "db_connect"
)

// DynamicPathWarning is a purely diagnostic finding: a path expression that
// could not be reduced to a literal and so was never rewritten.
type DynamicPathWarning struct {
	File   string              `json:"file"`
	Line   int                 `json:"line"`
	Snippet string             `json:"snippet"`
	Prefix string              `json:"prefix"`
	Kind   DynamicPathKind     `json:"kind"`
}

// DynamicPathKind discriminates the recognized dynamic-path constructions.
type DynamicPathKind string

const (
	DynamicInterpString DynamicPathKind = "interp_string"
	DynamicConcat       DynamicPathKind = "concat"
	DynamicJoinCall     DynamicPathKind = "join_call"
	DynamicPathConcat   DynamicPathKind = "path_concat"
	DynamicFormatCall   DynamicPathKind = "format_call"
)
