package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	loggersMu.Lock()
	for cat, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
		delete(loggers, cat)
	}
	loggersMu.Unlock()
}

func TestInitializeDisabledIsNoop(t *testing.T) {
	resetState()
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	if err := Initialize(tempDir, false, false); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	logsDir := filepath.Join(tempDir, ".deepclean", "logs")
	if _, err := os.Stat(logsDir); !os.IsNotExist(err) {
		t.Fatalf("logs dir should not be created when debug mode disabled, got err=%v", err)
	}

	l := Get(CategoryScan)
	l.Info("should not be written anywhere")
	if l.logger != nil {
		t.Fatalf("expected no-op logger when debug mode disabled")
	}
}

func TestAllCategoriesLog(t *testing.T) {
	resetState()
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	if err := Initialize(tempDir, true, false); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	cats := []Category{CategoryPipeline, CategoryScan, CategoryRelocate, CategoryPatch, CategoryTraceMap, CategoryGarbage}
	for _, cat := range cats {
		l := Get(cat)
		l.Info("hello from %s", cat)
		l.Debug("debugging %s", cat)
		l.Warn("warning in %s", cat)
		l.Error("error in %s", cat)
	}

	entries, err := os.ReadDir(filepath.Join(tempDir, ".deepclean", "logs"))
	if err != nil {
		t.Fatalf("failed to read logs dir: %v", err)
	}
	// pipeline logged once during Initialize plus once per loop iteration above,
	// so at minimum every category must have produced its own file.
	seen := map[string]bool{}
	for _, e := range entries {
		for _, cat := range cats {
			if strings.Contains(e.Name(), string(cat)) {
				seen[string(cat)] = true
			}
		}
	}
	for _, cat := range cats {
		if !seen[string(cat)] {
			t.Errorf("expected a log file for category %s, files: %v", cat, entries)
		}
	}
}

func TestGetReturnsSameLoggerPerCategory(t *testing.T) {
	resetState()
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	if err := Initialize(tempDir, true, false); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	a := Get(CategoryPatch)
	b := Get(CategoryPatch)
	if a != b {
		t.Fatalf("expected Get to return the cached logger instance for the same category")
	}
}

func TestCloseAllClearsLoggers(t *testing.T) {
	resetState()
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	if err := Initialize(tempDir, true, false); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	Get(CategoryRelocate).Info("test")
	CloseAll()

	loggersMu.RLock()
	n := len(loggers)
	loggersMu.RUnlock()
	if n != 0 {
		t.Fatalf("expected CloseAll to clear cached loggers, got %d remaining", n)
	}
}
