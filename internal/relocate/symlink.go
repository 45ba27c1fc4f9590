package relocate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deepclean/internal/logging"
	"deepclean/internal/model"
)

// SymlinkResult records one attempted project-root -> external-root
// directory symlink.
type SymlinkResult struct {
	ProjectPath  string
	ExternalPath string
	Created      bool
	Reason       string
}

// CreateSymlinks creates a relative symlink at the project-root location
// of each top-level directory that moving left completely empty,
// pointing at its counterpart under external storage. Grounded on
// heavy_mover.py::create_symlinks: best-effort, non-fatal on failure (a
// permissions-restricted environment just means no symlink, not an
// aborted run), skips directories that still contain files after the
// move, and only considers unique top-level path segments among the
// moved files.
func CreateSymlinks(projectRoot string, moved []model.MovedFile, externalDataDir string) []SymlinkResult {
	log := logging.Get(logging.CategoryRelocate)

	topLevel := map[string]bool{}
	for _, f := range moved {
		rel := toPosix(f.ProjectRelativePath)
		if idx := strings.IndexByte(rel, '/'); idx > 0 {
			topLevel[rel[:idx]] = true
		}
	}

	var segments []string
	for seg := range topLevel {
		segments = append(segments, seg)
	}
	sort.Strings(segments)

	var results []SymlinkResult
	for _, seg := range segments {
		projectDir := filepath.Join(projectRoot, seg)
		externalDir := filepath.Join(externalDataDir, seg)

		res := SymlinkResult{ProjectPath: projectDir, ExternalPath: externalDir}

		if _, err := os.Stat(externalDir); err != nil {
			res.Reason = "external directory does not exist"
			results = append(results, res)
			continue
		}

		empty, err := dirIsEmpty(projectDir)
		if err != nil {
			res.Reason = err.Error()
			results = append(results, res)
			continue
		}
		if !empty {
			res.Reason = "project directory still contains files"
			results = append(results, res)
			continue
		}

		if err := os.Remove(projectDir); err != nil && !os.IsNotExist(err) {
			res.Reason = err.Error()
			results = append(results, res)
			continue
		}

		relTarget, err := filepath.Rel(filepath.Dir(projectDir), externalDir)
		if err != nil {
			res.Reason = err.Error()
			results = append(results, res)
			continue
		}

		if err := os.Symlink(relTarget, projectDir); err != nil {
			res.Reason = err.Error()
			log.Warn("failed to create symlink for %s: %v", seg, err)
			results = append(results, res)
			continue
		}

		res.Created = true
		results = append(results, res)
		log.Info("created symlink %s -> %s", projectDir, relTarget)
	}
	return results
}

func dirIsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
