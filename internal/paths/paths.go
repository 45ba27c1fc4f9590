// Package paths implements C1, Paths & Manifest: pure functions deriving
// the external-storage and garbage sibling directories from a project root,
// plus manifest load/save/merge. Grounded on
// original_source/src/core/paths.go (paths.py)'s get_external_root /
// ensure_external_structure / load_manifest / save_manifest / add_to_manifest
// family, adapted to the sibling-naming spec.md itself specifies
// (<parent>/<name>_data, <parent>/<name>_garbage) rather than the original's
// "_fox" naming.
package paths

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"deepclean/internal/model"
)

const (
	toolkitVersion  = "1.0.0"
	manifestVersion = "1"
)

// ExternalLayout discriminates which on-disk layout a project's external
// storage was found in. Spec.md Design Note: "implement with a union
// variant ExternalLayout = {New, Legacy}; all downstream paths must be
// parameterized by it".
type ExternalLayout int

const (
	LayoutNew ExternalLayout = iota
	LayoutLegacy
)

// ExternalRoot returns <parent>/<name>_data for the given project root.
func ExternalRoot(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	abs = filepath.Clean(abs)
	name := filepath.Base(abs)
	return filepath.Join(filepath.Dir(abs), name+"_data")
}

// ExternalSubdir returns <external_root>/<kind> for kind in
// {data, venvs, logs, garbage}, matching spec.md §4.1's
// external_subdir(root, kind) operation. "garbage" resolves to the
// quarantine sibling itself rather than a subdirectory of it, since the
// quarantine tree lives alongside external storage, not inside it.
func ExternalSubdir(projectRoot, kind string) string {
	if kind == "garbage" {
		return GarbageRoot(projectRoot)
	}
	return filepath.Join(ExternalRoot(projectRoot), kind)
}

// GarbageRoot returns <parent>/<name>_garbage for the given project root.
func GarbageRoot(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	abs = filepath.Clean(abs)
	name := filepath.Base(abs)
	return filepath.Join(filepath.Dir(abs), name+"_garbage")
}

// legacyRoot is spec.md's normatively named legacy layout:
// <parent>/_data/<name>/LARGE_TOKENS/.
func legacyRoot(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	abs = filepath.Clean(abs)
	name := filepath.Base(abs)
	return filepath.Join(filepath.Dir(abs), "_data", name, "LARGE_TOKENS")
}

// legacyCandidates widens the single named legacy path into the original's
// multi-candidate probe order (SPEC_FULL.md 3, additive widening grounded
// on paths.py's detect_legacy_external / heavy_mover.py's get_external_dir).
// It never changes the normative legacy path spec.md names; it only
// recognizes more layouts that are also treated as legacy on read.
func legacyCandidates(projectRoot string) []string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	abs = filepath.Clean(abs)
	parent := filepath.Dir(abs)
	name := filepath.Base(abs)

	return []string{
		legacyRoot(projectRoot),
		filepath.Join(parent, name+"_fox", "data"),
		filepath.Join(parent, "_data", name),
		filepath.Join(parent, "_data"),
	}
}

// ResolveExternalDataDir picks the directory that holds relocated files for
// reads: the new layout if present, else the first populated legacy
// candidate, else the new layout path (not yet created).
func ResolveExternalDataDir(projectRoot string) (dir string, layout ExternalLayout) {
	newDir := filepath.Join(ExternalRoot(projectRoot), "data")
	if dirExists(newDir) {
		return newDir, LayoutNew
	}
	for _, candidate := range legacyCandidates(projectRoot) {
		if dirPopulated(candidate) {
			return candidate, LayoutLegacy
		}
	}
	return newDir, LayoutNew
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func dirPopulated(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// ManifestPath returns the manifest file path for the new layout.
func ManifestPath(projectRoot string) string {
	return filepath.Join(ExternalRoot(projectRoot), "manifest.json")
}

// EnsureStructure creates data/venvs/logs subdirectories under the external
// root, the sibling garbage directory (GarbageRoot), and an empty manifest
// if one is not already present.
func EnsureStructure(projectRoot string) error {
	root := ExternalRoot(projectRoot)
	for _, sub := range []string{"data", "venvs", "logs"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}
	if err := os.MkdirAll(GarbageRoot(projectRoot), 0755); err != nil {
		return fmt.Errorf("failed to create garbage dir: %w", err)
	}

	manifestPath := ManifestPath(projectRoot)
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		m := &model.Manifest{
			Version:        manifestVersion,
			ProjectName:    filepath.Base(filepath.Clean(projectRoot)),
			ProjectPath:    projectRoot,
			ExternalDir:    root,
			Created:        time.Now(),
			ToolkitVersion: toolkitVersion,
			Files:          []model.MovedFile{},
		}
		if err := SaveManifest(projectRoot, m); err != nil {
			return err
		}
	}
	return nil
}

// LoadManifest reads the manifest for the given project root. A missing
// manifest returns an empty one rather than an error, matching
// load_manifest's fallback behavior in paths.py.
func LoadManifest(projectRoot string) (*model.Manifest, error) {
	data, err := os.ReadFile(ManifestPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return &model.Manifest{Version: manifestVersion, Files: []model.MovedFile{}}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version != "" && m.Version != manifestVersion {
		return nil, fmt.Errorf("manifest version %q is not supported by this build (expected %q); run the migration for this project before continuing", m.Version, manifestVersion)
	}
	return &m, nil
}

// SaveManifest writes the manifest, always refreshing UpdatedAt, and
// recomputing TotalFiles/TotalTokens from the Files slice.
func SaveManifest(projectRoot string, m *model.Manifest) error {
	now := time.Now()
	m.UpdatedAt = &now

	m.TotalFiles = len(m.Files)
	var total int64
	for _, f := range m.Files {
		total += f.EstimatedTokens
	}
	m.TotalTokens = total

	if err := os.MkdirAll(filepath.Dir(ManifestPath(projectRoot)), 0755); err != nil {
		return fmt.Errorf("failed to create external root: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := ManifestPath(projectRoot) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, ManifestPath(projectRoot)); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}

// AddOrReplace inserts or replaces a manifest entry by project-relative
// path, preserving the spec.md invariant that project_relative_path values
// are unique.
func AddOrReplace(m *model.Manifest, entry model.MovedFile) {
	for i, f := range m.Files {
		if f.ProjectRelativePath == entry.ProjectRelativePath {
			m.Files[i] = entry
			return
		}
	}
	m.Files = append(m.Files, entry)
}

// SortedByTokensDescending returns the manifest's files sorted by estimated
// tokens descending, stabilizing the relocator's processing order.
func SortedByTokensDescending(files []model.MovedFile) []model.MovedFile {
	out := make([]model.MovedFile, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EstimatedTokens > out[j].EstimatedTokens
	})
	return out
}

// IsExternalPath reports whether path lies under the project's external
// root. Grounded on paths.py's is_external_path.
func IsExternalPath(path, projectRoot string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	root := ExternalRoot(projectRoot)
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// RelativeExternalPath returns path relative to the external root, or ""
// with ok=false if path is not under it. Grounded on paths.py's
// get_relative_external_path.
func RelativeExternalPath(path, projectRoot string) (rel string, ok bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	root := ExternalRoot(projectRoot)
	r, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(r, "..") {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// ExternalExists reports whether external storage already exists for the
// project. Grounded on paths.py's external_exists.
func ExternalExists(projectRoot string) bool {
	return dirExists(ExternalRoot(projectRoot))
}
