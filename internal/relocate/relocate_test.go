package relocate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deepclean/internal/model"
	"deepclean/internal/paths"
)

func testCfg() bridgeConfig {
	return NewBridgeConfig("config_paths", ".cursorignore")
}

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	project := filepath.Join(root, "myproj")
	if err := os.MkdirAll(filepath.Join(project, "data"), 0755); err != nil {
		t.Fatalf("failed to create project dir: %v", err)
	}
	return project
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestMoveRelocatesFileAndWritesManifest(t *testing.T) {
	project := setupProject(t)
	abs := filepath.Join(project, "data", "big.json")
	writeFile(t, abs, 4096)

	heavy := []model.HeavyFile{{
		AbsolutePath:        abs,
		ProjectRelativePath: "data/big.json",
		SizeBytes:           4096,
		EstimatedTokens:     1024,
		Category:            model.CategoryData,
	}}

	result, err := Move(project, heavy, testCfg(), false)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(result.MovedFiles) != 1 {
		t.Fatalf("expected 1 moved file, got %d", len(result.MovedFiles))
	}
	// Moving big.json empties data/, so CreateSymlinks may replace data/ with
	// a symlink into external storage; while data/ is still a real
	// directory, the file must no longer be in it.
	if info, err := os.Lstat(filepath.Join(project, "data")); err == nil && info.IsDir() {
		if _, err := os.Lstat(abs); !os.IsNotExist(err) {
			t.Errorf("expected original file to be gone, got err=%v", err)
		}
	}

	externalDataDir := filepath.Join(paths.ExternalRoot(project), "data")
	if _, err := os.Stat(filepath.Join(externalDataDir, "data", "big.json")); err != nil {
		t.Errorf("expected file at external location: %v", err)
	}

	manifest, err := paths.LoadManifest(project)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}
	if len(manifest.Files) != 1 {
		t.Fatalf("expected 1 manifest entry, got %d", len(manifest.Files))
	}

	if result.BridgePath == "" {
		t.Fatalf("expected bridge to be generated")
	}
	bridgeContent, err := os.ReadFile(result.BridgePath)
	if err != nil {
		t.Fatalf("failed to read bridge: %v", err)
	}
	if !strings.Contains(string(bridgeContent), "data/big.json") {
		t.Errorf("expected bridge to reference moved file, got:\n%s", bridgeContent)
	}
	if !strings.Contains(string(bridgeContent), "raise KeyError") {
		t.Errorf("expected strict-mode get_path, got:\n%s", bridgeContent)
	}
}

func TestMoveDryRunDoesNotTouchDisk(t *testing.T) {
	project := setupProject(t)
	abs := filepath.Join(project, "data", "big.json")
	writeFile(t, abs, 4096)

	heavy := []model.HeavyFile{{
		AbsolutePath:        abs,
		ProjectRelativePath: "data/big.json",
		SizeBytes:           4096,
		EstimatedTokens:     1024,
		Category:            model.CategoryData,
	}}

	result, err := Move(project, heavy, testCfg(), true)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(result.MovedFiles) != 1 {
		t.Fatalf("expected 1 simulated move, got %d", len(result.MovedFiles))
	}
	if _, err := os.Stat(abs); err != nil {
		t.Errorf("expected original file untouched in dry run, got err=%v", err)
	}
	if paths.ExternalExists(project) {
		t.Errorf("expected no external directory created in dry run")
	}
}

func TestRestoreMovesFilesBack(t *testing.T) {
	project := setupProject(t)
	abs := filepath.Join(project, "data", "big.json")
	writeFile(t, abs, 4096)

	heavy := []model.HeavyFile{{
		AbsolutePath:        abs,
		ProjectRelativePath: "data/big.json",
		SizeBytes:           4096,
		EstimatedTokens:     1024,
		Category:            model.CategoryData,
	}}

	if _, err := Move(project, heavy, testCfg(), false); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	restoreResult, err := Restore(project, testCfg())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(restoreResult.RestoredFiles) != 1 {
		t.Fatalf("expected 1 restored file, got %d", len(restoreResult.RestoredFiles))
	}
	if _, err := os.Stat(abs); err != nil {
		t.Errorf("expected file restored to original location: %v", err)
	}

	bridgePath := filepath.Join(project, "config_paths.py")
	if _, err := os.Stat(bridgePath); !os.IsNotExist(err) {
		t.Errorf("expected bridge removed after restore")
	}

	manifest, err := paths.LoadManifest(project)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}
	if len(manifest.Files) != 0 {
		t.Errorf("expected manifest cleared after restore, got %d files", len(manifest.Files))
	}
}

func TestUpdateIgnoreFileIsIdempotentAndPreservesUserLines(t *testing.T) {
	project := setupProject(t)
	ignorePath := filepath.Join(project, ".cursorignore")
	if err := os.WriteFile(ignorePath, []byte("node_modules/\n*.pyc\n"), 0644); err != nil {
		t.Fatalf("failed to seed ignore file: %v", err)
	}

	files := []model.MovedFile{
		{ProjectRelativePath: "data/big.json", ExternalRelativePath: "data/big.json"},
	}

	if err := UpdateIgnoreFile(project, files, ".cursorignore"); err != nil {
		t.Fatalf("UpdateIgnoreFile failed: %v", err)
	}
	first, err := os.ReadFile(ignorePath)
	if err != nil {
		t.Fatalf("failed to read ignore file: %v", err)
	}
	if !strings.Contains(string(first), "node_modules/") {
		t.Errorf("expected user line preserved, got:\n%s", first)
	}
	// data/ has no files left in the project, so it is folded into a glob.
	if !strings.Contains(string(first), "data/*") {
		t.Errorf("expected relocated directory glob present, got:\n%s", first)
	}

	if err := UpdateIgnoreFile(project, files, ".cursorignore"); err != nil {
		t.Fatalf("second UpdateIgnoreFile failed: %v", err)
	}
	second, err := os.ReadFile(ignorePath)
	if err != nil {
		t.Fatalf("failed to read ignore file: %v", err)
	}
	if strings.Count(string(second), sectionBegin) != 1 {
		t.Errorf("expected exactly one tool-owned section after rerun, got:\n%s", second)
	}
	if !strings.Contains(string(second), "node_modules/") {
		t.Errorf("expected user line still preserved on rerun, got:\n%s", second)
	}
}

func TestCreateSymlinksSkipsNonEmptyDirectories(t *testing.T) {
	project := setupProject(t)
	remainingFile := filepath.Join(project, "data", "still-here.txt")
	writeFile(t, remainingFile, 10)

	externalDataDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(externalDataDir, "data"), 0755); err != nil {
		t.Fatalf("failed to create external dir: %v", err)
	}

	moved := []model.MovedFile{{ProjectRelativePath: "data/big.json", ExternalRelativePath: "data/big.json"}}
	results := CreateSymlinks(project, moved, externalDataDir)
	if len(results) != 1 {
		t.Fatalf("expected 1 symlink result, got %d", len(results))
	}
	if results[0].Created {
		t.Errorf("expected symlink creation to be skipped when directory still has files")
	}
}
