// Package relocate implements C4, the Relocator: moves heavy files into
// external storage, maintains the manifest, emits the generated Python
// indirection module ("bridge"), optionally creates directory symlinks,
// and keeps the indexer-ignore file's tool-owned section current.
// Grounded on original_source/src/optimizer/heavy_mover.py
// (move_heavy_files/MoveResult) and
// _examples/other_examples/aaca4d4d_desertwitch-mirrorshuttle__main.go.go's
// copyAndRemove for the atomic-move-with-fallback primitive.
package relocate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"deepclean/internal/logging"
	"deepclean/internal/model"
	"deepclean/internal/paths"
)

// FailedMove records one relocation that could not complete.
type FailedMove struct {
	ProjectRelativePath string
	Reason              string
}

// Result is the outcome of one relocation batch.
type Result struct {
	ExternalDir     string
	MovedFiles      []model.MovedFile
	FailedFiles     []FailedMove
	SymlinksCreated []SymlinkResult
	BridgePath      string
	ManifestPath    string
}

// GarbageSweeper is the interface C8 implements; the relocator invokes it
// as an external collaborator so a no-op can be substituted in tests
// (spec.md §1: "used only through their interfaces").
type GarbageSweeper interface {
	Sweep(projectRoot string) error
}

// Move relocates each heavy file in order, updating the manifest's union
// of already-moved and newly-moved entries, then regenerates the bridge,
// the ignore-file section, and attempts directory symlinks. Partial
// progress is first-class: a per-file failure is recorded and processing
// continues (spec.md §4.4 failure semantics).
func Move(projectRoot string, heavyFiles []model.HeavyFile, cfg bridgeConfig, dryRun bool) (*Result, error) {
	log := logging.Get(logging.CategoryRelocate)
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	if !dryRun {
		if err := paths.EnsureStructure(absRoot); err != nil {
			return nil, fmt.Errorf("failed to ensure external structure: %w", err)
		}
	}
	externalDataDir := filepath.Join(paths.ExternalRoot(absRoot), "data")

	result := &Result{ExternalDir: paths.ExternalRoot(absRoot)}

	manifest, err := paths.LoadManifest(absRoot)
	if err != nil {
		return nil, err
	}

	for _, hf := range heavyFiles {
		dest := filepath.Join(externalDataDir, filepath.FromSlash(hf.ProjectRelativePath))

		if dryRun {
			result.MovedFiles = append(result.MovedFiles, toMovedFile(hf, hf.ProjectRelativePath))
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			result.FailedFiles = append(result.FailedFiles, FailedMove{hf.ProjectRelativePath, err.Error()})
			log.Warn("failed to create parent dir for %s: %v", hf.ProjectRelativePath, err)
			continue
		}

		if err := atomicMove(hf.AbsolutePath, dest); err != nil {
			result.FailedFiles = append(result.FailedFiles, FailedMove{hf.ProjectRelativePath, err.Error()})
			log.Warn("failed to move %s: %v", hf.ProjectRelativePath, err)
			continue
		}

		moved := toMovedFile(hf, hf.ProjectRelativePath)
		paths.AddOrReplace(manifest, moved)
		result.MovedFiles = append(result.MovedFiles, moved)
		log.Info("moved %s -> %s", hf.ProjectRelativePath, dest)
	}

	if dryRun {
		return result, nil
	}

	if err := paths.SaveManifest(absRoot, manifest); err != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", err)
	}
	result.ManifestPath = paths.ManifestPath(absRoot)

	if len(manifest.Files) > 0 {
		bridgePath, err := WriteBridge(absRoot, manifest.Files, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to write bridge: %w", err)
		}
		result.BridgePath = bridgePath

		if err := UpdateIgnoreFile(absRoot, manifest.Files, cfg.IgnoreFileName); err != nil {
			log.Warn("failed to update ignore file: %v", err)
		}

		result.SymlinksCreated = CreateSymlinks(absRoot, result.MovedFiles, externalDataDir)
	}

	return result, nil
}

func toMovedFile(hf model.HeavyFile, rel string) model.MovedFile {
	return model.MovedFile{
		ProjectRelativePath:  rel,
		ExternalRelativePath: rel,
		SizeBytes:            hf.SizeBytes,
		EstimatedTokens:      hf.EstimatedTokens,
		Category:             hf.Category,
		Schema:               hf.Schema,
		MovedAt:              time.Now(),
	}
}

// atomicMove tries os.Rename first (atomic, same filesystem); on
// cross-device failure it falls back to stream-copy-then-remove, matching
// mirrorshuttle's copyAndRemove.
func atomicMove(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return err
	}
	return copyAndRemove(src, dst)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func copyAndRemove(src, dst string) (retErr error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open src: %w", err)
	}
	defer in.Close()

	tmp := dst + ".deepclean-tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create tmp: %w", err)
	}
	defer func() {
		if retErr != nil {
			os.Remove(tmp)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close tmp: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to rename tmp into place: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove src after copy: %w", err)
	}
	return nil
}
