// Package scanner implements C2, the Token Scanner: it walks a project
// tree, categorizes files, estimates their token weight, and flags files
// whose estimate meets or exceeds a threshold as "heavy". Grounded on
// original_source/src/scanner/token_scanner.py (categorize_file,
// estimate_tokens, scan_project, get_moveable_files) and on the teacher's
// internal/world/fs.go for the walk/logging shape.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"deepclean/internal/config"
	"deepclean/internal/logging"
	"deepclean/internal/model"
	"deepclean/internal/paths"
)

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true, ".svg": true,
	".mp3": true, ".mp4": true, ".wav": true, ".avi": true, ".mov": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true, ".bz2": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".pyc": true, ".pyo": true, ".pyd": true,
}

var schemaExtensions = map[string]bool{
	".json": true, ".csv": true, ".sqlite": true, ".sqlite3": true, ".db": true, ".yaml": true, ".yml": true,
}

var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".go": true, ".rs": true, ".cpp": true, ".c": true, ".h": true,
}

var dataExtensions = map[string]bool{
	".json": true, ".csv": true, ".yaml": true, ".yml": true, ".xml": true, ".jsonl": true,
}

var databaseExtensions = map[string]bool{
	".sqlite": true, ".sqlite3": true, ".db": true,
}

var configExtensions = map[string]bool{
	".ini": true, ".toml": true, ".cfg": true, ".conf": true, ".env": true,
}

// Categorize determines a file's category from its extension with a
// name-based fallback (anything containing "log" routes to Log).
func Categorize(path string) model.FileCategory {
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.ToLower(filepath.Base(path))

	switch {
	case dataExtensions[ext]:
		return model.CategoryData
	case databaseExtensions[ext]:
		return model.CategoryDatabase
	case codeExtensions[ext]:
		return model.CategoryCode
	case ext == ".log" || strings.HasSuffix(name, ".log"):
		return model.CategoryLog
	case binaryExtensions[ext]:
		return model.CategoryBinary
	case configExtensions[ext]:
		return model.CategoryConfig
	}

	if strings.Contains(name, "log") {
		return model.CategoryLog
	}
	return model.CategoryUnknown
}

// EstimateTokens returns floor(size/4) for non-binary files, 0 for Binary.
func EstimateTokens(path string, size int64) int64 {
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] {
		return 0
	}
	return size / 4
}

// CanExtractSchema reports whether the extension is one of the schema
// extractors' recognized extensions.
func CanExtractSchema(path string) bool {
	return schemaExtensions[strings.ToLower(filepath.Ext(path))]
}

func shouldSkipDir(name string, skipPatterns []string) bool {
	if name != ".github" && strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range skipPatterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
		if name == pattern {
			return true
		}
	}
	return false
}

// Result is the outcome of scanning a project tree.
type Result struct {
	ProjectPath       string
	ProjectName       string
	TotalFilesScanned int
	TotalTokens       int64
	HeavyFiles        []model.HeavyFile
	SkippedDirs       []string
	Errors            []string
}

// HeavyTokens sums estimated tokens across HeavyFiles.
func (r *Result) HeavyTokens() int64 {
	var total int64
	for _, f := range r.HeavyFiles {
		total += f.EstimatedTokens
	}
	return total
}

// Scan walks projectRoot applying cfg's threshold/include-code/skip-dir
// rules, returning a Result with heavy files sorted by estimated tokens
// descending.
func Scan(projectRoot string, cfg *config.Config) (*Result, error) {
	log := logging.Get(logging.CategoryScan)
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	externalRoot := paths.ExternalRoot(absRoot)
	garbageRoot := paths.GarbageRoot(absRoot)

	result := &Result{
		ProjectPath: absRoot,
		ProjectName: filepath.Base(absRoot),
	}

	log.Info("scanning %s (threshold=%d include_code=%v)", absRoot, cfg.Threshold, cfg.IncludeCode)

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, walkErr))
			return nil
		}

		if path == externalRoot || path == garbageRoot ||
			strings.HasPrefix(path, externalRoot+string(filepath.Separator)) ||
			strings.HasPrefix(path, garbageRoot+string(filepath.Separator)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path == absRoot {
				return nil
			}
			if shouldSkipDir(info.Name(), cfg.SkipDirs) {
				rel, _ := filepath.Rel(absRoot, path)
				result.SkippedDirs = append(result.SkippedDirs, filepath.ToSlash(rel))
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if binaryExtensions[ext] {
			return nil
		}

		result.TotalFilesScanned++
		tokens := EstimateTokens(path, info.Size())
		result.TotalTokens += tokens

		if tokens < int64(cfg.Threshold) {
			return nil
		}

		category := Categorize(path)
		if category == model.CategoryCode && !cfg.IncludeCode {
			return nil
		}
		if category == model.CategoryBinary {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}

		result.HeavyFiles = append(result.HeavyFiles, model.HeavyFile{
			AbsolutePath:        path,
			ProjectRelativePath: filepath.ToSlash(rel),
			SizeBytes:           info.Size(),
			EstimatedTokens:     tokens,
			Category:            category,
			CanExtractSchema:    CanExtractSchema(path),
		})
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("scan error: %v", err))
	}

	sort.SliceStable(result.HeavyFiles, func(i, j int) bool {
		return result.HeavyFiles[i].EstimatedTokens > result.HeavyFiles[j].EstimatedTokens
	})

	log.Info("scanned %d files, %d heavy, %d tokens total", result.TotalFilesScanned, len(result.HeavyFiles), result.TotalTokens)
	return result, nil
}

// GetMoveable applies the safety filter: drops protected names, files
// already under an external sibling, and Code-category files without an
// extractable schema. alreadyMoved holds project-relative paths already in
// the manifest, supporting idempotent re-scans.
func GetMoveable(result *Result, cfg *config.Config, alreadyMoved map[string]bool) []model.HeavyFile {
	protected := make(map[string]bool, len(cfg.ProtectedNames))
	for _, n := range cfg.ProtectedNames {
		protected[strings.ToLower(n)] = true
	}

	var moveable []model.HeavyFile
	for _, hf := range result.HeavyFiles {
		if alreadyMoved[hf.ProjectRelativePath] {
			continue
		}
		if protected[strings.ToLower(filepath.Base(hf.ProjectRelativePath))] {
			continue
		}
		if hf.Category == model.CategoryCode && !hf.CanExtractSchema {
			continue
		}
		moveable = append(moveable, hf)
	}
	return moveable
}
