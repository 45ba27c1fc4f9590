package tracemap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deepclean/internal/model"
)

func TestGenerateWritesTraceMapWithUsages(t *testing.T) {
	project := t.TempDir()
	srcPath := filepath.Join(project, "handlers", "buy.py")
	if err := os.MkdirAll(filepath.Dir(srcPath), 0755); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}
	src := "import json\n\ndef load():\n    with open(\"data/products.json\") as f:\n        return json.load(f)\n"
	if err := os.WriteFile(srcPath, []byte(src), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	files := []model.MovedFile{{
		ProjectRelativePath:  "data/products.json",
		ExternalRelativePath: "data/products.json",
		EstimatedTokens:      50000,
		Category:             model.CategoryData,
		Schema: &model.Schema{
			Kind: model.SchemaKindJSON,
			Node: &model.SchemaNode{Type: "object", Keys: map[string]*model.SchemaNode{
				"id": {Type: "integer"},
			}},
		},
	}}

	outPath, err := Generate(project, files, "config_paths")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if filepath.Base(outPath) != "AST_FOX_TRACE.md" {
		t.Fatalf("expected AST_FOX_TRACE.md, got %s", outPath)
	}

	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read trace map: %v", err)
	}
	text := string(content)

	if !strings.Contains(text, "data/products.json") {
		t.Errorf("expected moved file path in trace map")
	}
	if !strings.Contains(text, "buy.py:4") {
		t.Errorf("expected usage reference with line number, got:\n%s", text)
	}
	if !strings.Contains(text, "get_path") {
		t.Errorf("expected access snippet present")
	}
}

func TestDetectUsageTypeClassifiesForms(t *testing.T) {
	cases := map[string]string{
		`df = pd.read_csv("data/x.csv")`: "read (pandas)",
		`data = json.load(f)`:            "read (json)",
		`open("x", "w")`:                 "write",
		`open("x", "r")`:                 "read",
		`conn = sqlite3.connect("x")`:    "connect (database)",
	}
	for line, want := range cases {
		if got := detectUsageType(line); got != want {
			t.Errorf("detectUsageType(%q) = %q, want %q", line, got, want)
		}
	}
}

func TestDescribeFallsBackToFileWhenCategoryUnknown(t *testing.T) {
	tf := TracedFile{Original: "notes.bin", Category: model.CategoryUnknown}
	desc := describe(tf)
	if !strings.HasPrefix(desc, "File") {
		t.Errorf("expected fallback description, got %q", desc)
	}
}
