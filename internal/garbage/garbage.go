// Package garbage implements C8, the Garbage Sweep: a collaborator
// invoked by the pipeline orchestrator (C7, step 7) that finds trivial
// temp/cache artifacts and relocates them into the quarantine sibling.
// Grounded on original_source/src/optimizer/heavy_mover.py's
// find_garbage_files/move_garbage_files; failures here never fail the
// deep-clean run (spec.md §1, §4.7).
package garbage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"deepclean/internal/logging"
	"deepclean/internal/paths"
)

// filePatterns are doublestar basename globs for trivial per-file
// artifacts, matching find_garbage_files's patterns list.
var filePatterns = []string{
	"*.tmp", "*.temp", "*.bak", "*.old", "*.backup", "*.cache",
	"*.log.old", "*.log.*",
	".DS_Store", "Thumbs.db", "desktop.ini",
	"*_backup.*", "*_old.*",
	"*~", "*.swp", "*.swo",
}

// dirNames are directory basenames moved wholesale when encountered as a
// direct match, matching find_garbage_files's dir_patterns.
var dirNames = map[string]bool{
	"tmp": true, "temp": true, ".tmp": true, ".temp": true,
}

// staleLogAge is the cutoff find_garbage_files applies to bare *.log
// files before considering them garbage (30 days in the original).
const staleLogAge = 30 * 24 * time.Hour

var skipSubstrings = []string{"venv", ".git", "node_modules", "garbage", "__pycache__"}

// patchBackupSuffix is the AST patcher's own backup suffix
// (patch.patchFile writes "<file>.py.bak" before rewriting a source file).
// patch.Revert is the only thing allowed to consume these: it walks
// projectRoot for "*.py.bak" and restores+removes each one. The sweep runs
// after patching in the pipeline's step ordering, and filePatterns' generic
// "*.bak" entry would otherwise match these and relocate them outside the
// project tree into GarbageRoot, where Revert can never find them again —
// stranding a subsequent Restore with a patched source file it can no
// longer undo. Excluded here rather than from filePatterns so unrelated
// ".bak" files (editor backups, user-made copies) are still swept.
const patchBackupSuffix = ".py.bak"

// Result summarizes one sweep.
type Result struct {
	GarbageDir string
	Moved      []string
	Errors     []string
}

// Sweep is the function behind the pipeline's relocate.GarbageSweeper
// implementation: it walks projectRoot for
// garbage candidates and moves each into the garbage sibling directory,
// preserving its project-relative path. A per-file move failure is
// recorded and does not abort the sweep, matching the pipeline's
// "garbage sweep failures never fail the pipeline" contract.
func Sweep(projectRoot string) error {
	_, err := sweep(projectRoot)
	return err
}

// SweepWithResult runs the sweep and returns the detailed Result, used by
// the orchestrator to report counts in its summary.
func SweepWithResult(projectRoot string) (*Result, error) {
	return sweep(projectRoot)
}

func sweep(projectRoot string) (*Result, error) {
	log := logging.Get(logging.CategoryGarbage)
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	garbageDir := paths.GarbageRoot(absRoot)
	result := &Result{GarbageDir: garbageDir}

	candidates, err := findGarbage(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for garbage: %w", err)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	if err := os.MkdirAll(garbageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create garbage dir: %w", err)
	}

	for _, abs := range candidates {
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", abs, err))
			continue
		}
		dest := filepath.Join(garbageDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		if err := os.Rename(abs, dest); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rel, err))
			log.Warn("failed to quarantine %s: %v", rel, err)
			continue
		}
		result.Moved = append(result.Moved, filepath.ToSlash(rel))
		log.Info("quarantined %s -> %s", rel, dest)
	}

	return result, nil
}

// findGarbage walks projectRoot once, collecting every file/directory that
// matches a garbage pattern, a garbage directory name, or is a stale bare
// *.log file, deduplicated by absolute path.
func findGarbage(projectRoot string) ([]string, error) {
	seen := map[string]bool{}
	var found []string
	cutoff := time.Now().Add(-staleLogAge)

	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if path == projectRoot {
			return nil
		}
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if shouldSkip(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := info.Name()
		if info.IsDir() {
			if dirNames[name] {
				addOnce(&found, seen, path)
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(name, patchBackupSuffix) {
			return nil
		}

		for _, pattern := range filePatterns {
			if ok, _ := doublestar.Match(pattern, name); ok {
				addOnce(&found, seen, path)
				return nil
			}
		}

		if strings.HasSuffix(name, ".log") && info.ModTime().Before(cutoff) {
			addOnce(&found, seen, path)
		}

		return nil
	})
	return found, err
}

func addOnce(found *[]string, seen map[string]bool, path string) {
	if seen[path] {
		return
	}
	seen[path] = true
	*found = append(*found, path)
}

func shouldSkip(rel string) bool {
	for _, skip := range skipSubstrings {
		if strings.Contains(rel, skip) {
			return true
		}
	}
	return false
}
