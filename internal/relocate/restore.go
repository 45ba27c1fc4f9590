package relocate

import (
	"fmt"
	"os"
	"path/filepath"

	"deepclean/internal/logging"
	"deepclean/internal/paths"
)

// RestoreResult is the outcome of reversing a relocation.
type RestoreResult struct {
	RestoredFiles []string
	FailedFiles   []FailedMove
}

// Restore reverses C4 end to end: every manifested file is moved back to
// its original project-relative location, the generated bridge module and
// the ignore file's tool-owned section are removed, and the manifest
// itself is deleted. Grounded on heavy_mover.py::restore_files, widened to
// also undo the symlinks create_symlinks may have left behind (a
// directory symlink at the destination is replaced with a real directory
// before files are moved back into it).
func Restore(projectRoot string, cfg bridgeConfig) (*RestoreResult, error) {
	log := logging.Get(logging.CategoryRelocate)
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	manifest, err := paths.LoadManifest(absRoot)
	if err != nil {
		return nil, err
	}

	externalDataDir := filepath.Join(paths.ExternalRoot(absRoot), "data")
	result := &RestoreResult{}

	for _, f := range manifest.Files {
		src := filepath.Join(externalDataDir, filepath.FromSlash(f.ExternalRelativePath))
		dst := filepath.Join(absRoot, filepath.FromSlash(f.ProjectRelativePath))

		if err := ensureRealDir(filepath.Dir(dst)); err != nil {
			result.FailedFiles = append(result.FailedFiles, FailedMove{f.ProjectRelativePath, err.Error()})
			log.Warn("failed to prepare destination dir for %s: %v", f.ProjectRelativePath, err)
			continue
		}

		if err := atomicMove(src, dst); err != nil {
			result.FailedFiles = append(result.FailedFiles, FailedMove{f.ProjectRelativePath, err.Error()})
			log.Warn("failed to restore %s: %v", f.ProjectRelativePath, err)
			continue
		}

		result.RestoredFiles = append(result.RestoredFiles, f.ProjectRelativePath)
		log.Info("restored %s", f.ProjectRelativePath)
	}

	if err := RemoveBridge(absRoot, cfg); err != nil {
		log.Warn("failed to remove bridge module: %v", err)
	}
	if err := RemoveIgnoreSection(absRoot, cfg.IgnoreFileName); err != nil {
		log.Warn("failed to strip ignore file section: %v", err)
	}
	if err := os.Remove(paths.ManifestPath(absRoot)); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove manifest: %v", err)
	}

	return result, nil
}

// ensureRealDir removes a symlink left behind by CreateSymlinks (if any)
// and makes sure a real directory exists in its place.
func ensureRealDir(dir string) error {
	info, err := os.Lstat(dir)
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove stale symlink: %w", err)
		}
	}
	return os.MkdirAll(dir, 0755)
}
