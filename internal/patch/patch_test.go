package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProjectFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return full
}

func TestPatchRewritesOpenCall(t *testing.T) {
	root := t.TempDir()
	src := writeProjectFile(t, root, "main.py", "import os\n\ndef load():\n    with open(\"data/big.json\") as f:\n        return f.read()\n")

	report, err := Patch(root, []string{"data/big.json"}, nil, "config_paths", false)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if report.FilesPatched != 1 || report.TotalPatches != 1 {
		t.Fatalf("expected 1 file / 1 patch, got %+v", report)
	}

	patched, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read patched file: %v", err)
	}
	if !strings.Contains(string(patched), `open(get_path("data/big.json"))`) {
		t.Errorf("expected open() call rewritten, got:\n%s", patched)
	}
	if !strings.Contains(string(patched), "from config_paths import get_path") {
		t.Errorf("expected import inserted, got:\n%s", patched)
	}

	if _, err := os.Stat(src + ".bak"); err != nil {
		t.Errorf("expected .bak backup to exist: %v", err)
	}
}

func TestPatchRewritesPathConstructorWholeCall(t *testing.T) {
	root := t.TempDir()
	src := writeProjectFile(t, root, "loader.py", "from pathlib import Path\n\np = Path(\"data/big.json\")\n")

	report, err := Patch(root, []string{"data/big.json"}, nil, "config_paths", false)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if report.TotalPatches != 1 {
		t.Fatalf("expected 1 patch, got %d", report.TotalPatches)
	}

	patched, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read patched file: %v", err)
	}
	if !strings.Contains(string(patched), `p = get_path("data/big.json")`) {
		t.Errorf("expected Path() call fully replaced, got:\n%s", patched)
	}
	if strings.Contains(string(patched), "Path(\"data/big.json\")") {
		t.Errorf("expected original Path() call to be gone, got:\n%s", patched)
	}
}

func TestPatchRewritesPandasAndSqlite(t *testing.T) {
	root := t.TempDir()
	src := writeProjectFile(t, root, "analysis.py",
		"import pandas as pd\nimport sqlite3\n\ndf = pd.read_csv(\"data/users.csv\")\nconn = sqlite3.connect(\"data/app.db\")\n")

	report, err := Patch(root, []string{"data/users.csv", "data/app.db"}, nil, "config_paths", false)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if report.TotalPatches != 2 {
		t.Fatalf("expected 2 patches, got %d: %+v", report.TotalPatches, report.Patches)
	}

	patched, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read patched file: %v", err)
	}
	if !strings.Contains(string(patched), `pd.read_csv(get_path("data/users.csv"))`) {
		t.Errorf("expected read_csv rewritten, got:\n%s", patched)
	}
	if !strings.Contains(string(patched), `sqlite3.connect(get_path("data/app.db"))`) {
		t.Errorf("expected connect rewritten, got:\n%s", patched)
	}
}

func TestPatchSkipsUnrelatedLiterals(t *testing.T) {
	root := t.TempDir()
	src := writeProjectFile(t, root, "other.py", "with open(\"notes.txt\") as f:\n    pass\n")

	report, err := Patch(root, []string{"data/big.json"}, nil, "config_paths", false)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if report.TotalPatches != 0 {
		t.Fatalf("expected no patches for unrelated file, got %d", report.TotalPatches)
	}

	patched, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if !strings.Contains(string(patched), `open("notes.txt")`) {
		t.Errorf("expected unrelated open() call untouched, got:\n%s", patched)
	}
}

func TestPatchDryRunDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	src := writeProjectFile(t, root, "main.py", "with open(\"data/big.json\") as f:\n    pass\n")

	report, err := Patch(root, []string{"data/big.json"}, nil, "config_paths", true)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if report.TotalPatches != 1 {
		t.Fatalf("expected 1 patch computed in dry run, got %d", report.TotalPatches)
	}

	content, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if !strings.Contains(string(content), `open("data/big.json")`) {
		t.Errorf("expected dry-run to leave file untouched, got:\n%s", content)
	}
	if _, err := os.Stat(src + ".bak"); !os.IsNotExist(err) {
		t.Errorf("expected no .bak written in dry run")
	}
}

func TestPatchExcludesTestFiles(t *testing.T) {
	root := t.TempDir()
	src := writeProjectFile(t, root, "test_main.py", "with open(\"data/big.json\") as f:\n    pass\n")

	report, err := Patch(root, []string{"data/big.json"}, []string{"test_*.py"}, "config_paths", false)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if report.FilesScanned != 0 {
		t.Fatalf("expected test file to be excluded from scan, got scanned=%d", report.FilesScanned)
	}

	content, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if !strings.Contains(string(content), `open("data/big.json")`) {
		t.Errorf("expected excluded test file untouched, got:\n%s", content)
	}
}

func TestRevertRestoresBackup(t *testing.T) {
	root := t.TempDir()
	src := writeProjectFile(t, root, "main.py", "with open(\"data/big.json\") as f:\n    pass\n")

	if _, err := Patch(root, []string{"data/big.json"}, nil, "config_paths", false); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	n, err := Revert(root)
	if err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 file reverted, got %d", n)
	}

	content, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read reverted file: %v", err)
	}
	if !strings.Contains(string(content), `open("data/big.json")`) {
		t.Errorf("expected original content restored, got:\n%s", content)
	}
	if _, err := os.Stat(src + ".bak"); !os.IsNotExist(err) {
		t.Errorf("expected .bak removed after revert")
	}
}

func TestDetectDynamicPathsFlagsJoinAndFString(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "dyn.py",
		"import os\n\ndef f(user_id):\n    p1 = f\"data/{user_id}.json\"\n    p2 = os.path.join(\"data\", user_id)\n")

	warnings := DetectDynamicPaths(root, []string{"data/big.json"}, "config_paths")
	if len(warnings) != 2 {
		t.Fatalf("expected 2 dynamic path warnings, got %d: %+v", len(warnings), warnings)
	}
}

func TestIsMovedFileMatchesSuffix(t *testing.T) {
	moved := map[string]bool{"data/big.json": true}
	if _, ok := isMovedFile("./data/big.json", moved); !ok {
		t.Errorf("expected leading ./ to be stripped and match")
	}
	if _, ok := isMovedFile("data\\big.json", moved); !ok {
		t.Errorf("expected backslash form to match")
	}
	if _, ok := isMovedFile("/srv/app/data/big.json", moved); !ok {
		t.Errorf("expected literal ending with the moved path to match")
	}
	if _, ok := isMovedFile("other.json", moved); ok {
		t.Errorf("expected unrelated literal not to match")
	}
}
