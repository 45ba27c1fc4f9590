// Package patch implements C5, the AST Path Patcher: it rewrites literal
// path arguments to recognized I/O constructors into indirection-module
// calls, inserts the necessary import, and separately flags path
// constructions it cannot safely rewrite. Grounded on
// original_source/src/optimizer/ast_patcher.py's PathPatcher/patch_file/
// patch_project, reimplemented over github.com/smacker/go-tree-sitter's
// python grammar instead of Python's own ast module, following the parse
// shape of the teacher's internal/world/python_parser.go.
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"deepclean/internal/logging"
	"deepclean/internal/model"
)

// FileError pairs a file with the reason it could not be patched.
type FileError struct {
	File   string
	Reason string
}

// Report summarizes one patch_project run over a project tree.
type Report struct {
	FilesScanned       int
	FilesPatched       int
	TotalPatches       int
	Patches            []model.PatchLocation
	Errors             []FileError
	ImportAddedTo      []string
	DynamicPathWarnings []model.DynamicPathWarning
}

var defaultSkipDirParts = []string{
	"venv", ".venv", "env", "node_modules", "__pycache__",
	".git", ".idea", ".vscode", "dist", "build",
}

// Patch walks every *.py file under projectRoot (skipping venvs, the
// indirection module, and excludeGlobs-matched basenames), rewrites
// literal path arguments that refer to a moved file, and returns a report.
// movedRelPaths are project-relative paths (forward-slashed) per
// spec.md §4.5; bridgeModuleName names the generated module
// (e.g. "config_paths") the inserted import refers to.
func Patch(projectRoot string, movedRelPaths []string, excludeGlobs []string, bridgeModuleName string, dryRun bool) (*Report, error) {
	log := logging.Get(logging.CategoryPatch)

	moved := make(map[string]bool, len(movedRelPaths))
	for _, p := range movedRelPaths {
		moved[normalizePath(p)] = true
	}

	excludes := append([]string{bridgeModuleName + ".py"}, excludeGlobs...)

	report := &Report{}

	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if shouldSkipDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".py" {
			return nil
		}
		if matchesAny(filepath.Base(path), excludes) {
			return nil
		}

		report.FilesScanned++

		result, err := patchFile(path, moved, bridgeModuleName, dryRun)
		if err != nil {
			report.Errors = append(report.Errors, FileError{path, err.Error()})
			log.Warn("failed to patch %s: %v", path, err)
			return nil
		}
		if len(result.patches) > 0 {
			report.FilesPatched++
			report.TotalPatches += len(result.patches)
			report.Patches = append(report.Patches, result.patches...)
			if result.importAdded {
				report.ImportAddedTo = append(report.ImportAddedTo, path)
			}
			log.Info("patched %s (%d locations)", path, len(result.patches))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project: %w", err)
	}

	report.DynamicPathWarnings = DetectDynamicPaths(projectRoot, movedRelPaths, bridgeModuleName)

	return report, nil
}

func shouldSkipDir(name string) bool {
	for _, skip := range defaultSkipDirParts {
		if name == skip {
			return true
		}
	}
	return false
}

func matchesAny(name string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

type fileResult struct {
	patches     []model.PatchLocation
	importAdded bool
}

// patchFile runs the full patch_file sequence: parse, collect splice
// operations, apply them bottom-up, re-parse to validate, and only then
// write (.bak sibling first, unless dryRun).
func patchFile(path string, moved map[string]bool, bridgeModuleName string, dryRun bool) (*fileResult, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	if _, err := parsePython(original); err != nil {
		return nil, fmt.Errorf("syntax error in original: %w", err)
	}

	ops, locations, err := collectPatchOps(original, moved)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if len(ops) == 0 {
		return &fileResult{}, nil
	}

	patched := applyOps(original, ops)

	importAdded := false
	if hasImportTarget(ops) {
		importLine := fmt.Sprintf("from %s import get_path", bridgeModuleName)
		if !strings.Contains(string(patched), importLine) && !strings.Contains(string(patched), "from "+bridgeModuleName+" import") {
			patched = insertImport(patched, importLine)
			importAdded = true
		}
	}

	if _, err := parsePython(patched); err != nil {
		return nil, fmt.Errorf("syntax error after patching: %w", err)
	}

	if !dryRun {
		backupPath := path + ".bak"
		if err := os.WriteFile(backupPath, original, 0644); err != nil {
			return nil, fmt.Errorf("failed to write backup: %w", err)
		}
		if err := os.WriteFile(path, patched, 0644); err != nil {
			return nil, fmt.Errorf("failed to write patched file: %w", err)
		}
	}

	for i := range locations {
		locations[i].File = path
	}
	return &fileResult{patches: locations, importAdded: importAdded}, nil
}

func hasImportTarget(ops []spliceOp) bool {
	return len(ops) > 0
}

// insertImport inserts importLine after the contiguous leading import
// block, honoring a leading module docstring, matching
// ast_patcher.py::add_import_statement.
func insertImport(source []byte, importLine string) []byte {
	lines := strings.Split(string(source), "\n")

	insertIdx := 0
	inDocstring := false
	var docstringQuote string

	for i, line := range lines {
		stripped := strings.TrimSpace(line)

		if i == 0 && (strings.HasPrefix(stripped, `"""`) || strings.HasPrefix(stripped, "'''")) {
			docstringQuote = stripped[:3]
			inDocstring = true
			if strings.Count(stripped, docstringQuote) >= 2 {
				inDocstring = false
			}
			continue
		}
		if inDocstring {
			if strings.Contains(stripped, docstringQuote) {
				inDocstring = false
			}
			continue
		}
		if strings.HasPrefix(stripped, "import ") || strings.HasPrefix(stripped, "from ") {
			insertIdx = i + 1
			continue
		}
		if stripped != "" && !strings.HasPrefix(stripped, "#") {
			break
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertIdx]...)
	out = append(out, importLine)
	out = append(out, lines[insertIdx:]...)
	return []byte(strings.Join(out, "\n"))
}

// normalizePath folds backslashes to forward slashes and strips a leading
// "./", matching ast_patcher.py's PathPatcher._normalize_path.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return p
}

// isMovedFile matches a literal against the moved-file set: exact
// normalized equality, or the literal's normalized form ending with a
// moved file's normalized form (spec.md §4.5 item 3).
func isMovedFile(literal string, moved map[string]bool) (normalized string, ok bool) {
	normalized = normalizePath(literal)
	if moved[normalized] {
		return normalized, true
	}
	for m := range moved {
		if strings.HasSuffix(normalized, m) {
			return normalized, true
		}
	}
	return normalized, false
}

// Revert restores every <file>.py.bak sibling and removes the backup,
// matching ast_patcher.py::revert_patches.
func Revert(projectRoot string) (int, error) {
	reverted := 0
	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".py.bak") {
			return nil
		}
		original := strings.TrimSuffix(path, ".bak")
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read backup %s: %w", path, err)
		}
		if err := os.WriteFile(original, content, 0644); err != nil {
			return fmt.Errorf("failed to restore %s: %w", original, err)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove backup %s: %w", path, err)
		}
		reverted++
		return nil
	})
	return reverted, err
}

func sortOpsDescending(ops []spliceOp) {
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].startByte > ops[j].startByte
	})
}
