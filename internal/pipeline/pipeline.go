// Package pipeline implements C7, the Pipeline Orchestrator: it sequences
// C2 -> C3 -> C4 -> C5 -> C6 -> C8, handles idempotence across runs,
// summarizes results, and supports dry-run and restore modes. Grounded on
// original_source/src/main.py's deep_clean/restore_project entry points
// and heavy_mover.py's ordering of scan -> move -> patch -> trace.
package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"deepclean/internal/config"
	"deepclean/internal/garbage"
	"deepclean/internal/lock"
	"deepclean/internal/logging"
	"deepclean/internal/model"
	"deepclean/internal/patch"
	"deepclean/internal/paths"
	"deepclean/internal/relocate"
	"deepclean/internal/scanner"
	"deepclean/internal/schema"
	"deepclean/internal/tracemap"
)

// Summary is the end-of-run report spec.md §4.7 step 8 requires: before/
// after estimated tokens, files moved, files patched, symlinks created,
// dynamic warnings count.
type Summary struct {
	// RunID identifies this invocation in log lines, matching the
	// teacher's session_manager.go pattern of stamping each run/session
	// with a fresh uuid.New() identifier rather than a sequential counter.
	RunID               string
	DryRun              bool
	ProjectRoot         string
	ExternalDir         string
	TotalTokensBefore   int64
	TotalTokensAfter    int64
	FilesScanned        int
	FilesMoved          int
	FilesAlreadyMoved   int
	FilesFailedToMove   int
	FilesPatched        int
	TotalPatches        int
	SymlinksCreated     int
	DynamicWarnings     int
	GarbageMoved        int
	GarbageErrors       int
	BridgePath          string
	ManifestPath        string
	TraceMapPath        string
	ScanResult          *scanner.Result
	RelocateResult      *relocate.Result
	PatchReport         *patch.Report
}

// defaultSweeper is the production C8 collaborator: it runs garbage.Sweep
// and reports counts into the pipeline Summary. A distinct named type
// (rather than a bare func value) lets DeepCleanWithSweeper recognize it
// with a type assertion and pull richer stats, without relying on
// comparing interface-wrapped func values (which is unsound in Go).
type defaultSweeper struct{}

func (defaultSweeper) Sweep(projectRoot string) error { return garbage.Sweep(projectRoot) }

// DefaultGarbageSweeper is the production C8 collaborator, passed to
// DeepCleanWithSweeper by DeepClean. Tests substitute their own
// relocate.GarbageSweeper (e.g. a no-op) to exercise the pipeline without
// touching real temp-file quarantine (spec.md §1: "used only through
// their interfaces").
var DefaultGarbageSweeper relocate.GarbageSweeper = defaultSweeper{}

// DeepClean runs the full sequence described in spec.md §4.7 with the
// production garbage sweeper.
func DeepClean(projectRoot string, cfg *config.Config, dryRun bool) (*Summary, error) {
	return DeepCleanWithSweeper(projectRoot, cfg, dryRun, DefaultGarbageSweeper)
}

// DeepCleanWithSweeper runs the full sequence described in spec.md §4.7:
// load the manifest, scan, compute moveable files, relocate, patch, emit
// the trace map, and sweep garbage through the given collaborator. A dry
// run stops after computing moveable files. An advisory lock on the
// external root serializes concurrent invocations against the same project
// (spec.md §5).
func DeepCleanWithSweeper(projectRoot string, cfg *config.Config, dryRun bool, sweeper relocate.GarbageSweeper) (*Summary, error) {
	log := logging.Get(logging.CategoryPipeline)
	runID := uuid.New().String()
	log.Info("run %s starting (dry_run=%v)", runID, dryRun)

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	var heldLock *lock.Lock
	if !dryRun {
		heldLock, err = lock.Acquire(paths.ExternalRoot(absRoot))
		if err != nil {
			return nil, err
		}
		defer heldLock.Release()
	}

	bridgeCfg := relocate.NewBridgeConfig(cfg.BridgeModuleName, cfg.IgnoreFileName)

	// Step 1: load manifest, collect already-moved set.
	manifest, err := paths.LoadManifest(absRoot)
	if err != nil {
		return nil, err
	}
	alreadyMoved := make(map[string]bool, len(manifest.Files))
	for _, f := range manifest.Files {
		alreadyMoved[f.ProjectRelativePath] = true
	}

	// Step 2: scan, then augment with schemas (C3) before filtering.
	log.Info("scanning %s", absRoot)
	scanResult, err := scanner.Scan(absRoot, cfg)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	augmentSchemas(scanResult.HeavyFiles, cfg)

	moveable := scanner.GetMoveable(scanResult, cfg, alreadyMoved)

	summary := &Summary{
		RunID:             runID,
		DryRun:            dryRun,
		ProjectRoot:       absRoot,
		ExternalDir:       paths.ExternalRoot(absRoot),
		TotalTokensBefore: scanResult.TotalTokens,
		FilesScanned:      scanResult.TotalFilesScanned,
		FilesAlreadyMoved: len(alreadyMoved),
		ScanResult:        scanResult,
		ManifestPath:      paths.ManifestPath(absRoot),
	}

	// Step 3: dry-run stops here with an intended-moves summary.
	if dryRun {
		summary.FilesMoved = len(moveable)
		for _, f := range moveable {
			log.Info("would move %s (%d tokens)", f.ProjectRelativePath, f.EstimatedTokens)
		}
		summary.TotalTokensAfter = summary.TotalTokensBefore
		return summary, nil
	}

	// Step 4: relocate, merging newly-moved with already-moved.
	relResult, err := relocate.Move(absRoot, moveable, bridgeCfg, false)
	if err != nil {
		return nil, fmt.Errorf("relocate failed: %w", err)
	}
	summary.RelocateResult = relResult
	// relResult.MovedFiles covers only the heavyFiles batch relocate.Move
	// was handed (moveable, already filtered against alreadyMoved by
	// scanner.GetMoveable above), so it is already the newly-relocated
	// count and needs no further adjustment against alreadyMoved.
	summary.FilesMoved = len(relResult.MovedFiles)
	summary.FilesFailedToMove = len(relResult.FailedFiles)
	summary.SymlinksCreated = countCreated(relResult.SymlinksCreated)
	summary.BridgePath = relResult.BridgePath
	summary.ManifestPath = relResult.ManifestPath
	summary.ExternalDir = relResult.ExternalDir

	finalManifest, err := paths.LoadManifest(absRoot)
	if err != nil {
		return nil, err
	}

	var tokensMoved int64
	for _, f := range relResult.MovedFiles {
		tokensMoved += f.EstimatedTokens
	}
	summary.TotalTokensAfter = summary.TotalTokensBefore - tokensMoved

	unionRelPaths := make([]string, 0, len(finalManifest.Files))
	for _, f := range finalManifest.Files {
		unionRelPaths = append(unionRelPaths, f.ProjectRelativePath)
	}

	// Step 5: patch sources over the union of moved files.
	patchReport, err := patch.Patch(absRoot, unionRelPaths, cfg.PatchExcludeGlobs, cfg.BridgeModuleName, false)
	if err != nil {
		return nil, fmt.Errorf("patch failed: %w", err)
	}
	summary.PatchReport = patchReport
	summary.FilesPatched = patchReport.FilesPatched
	summary.TotalPatches = patchReport.TotalPatches
	summary.DynamicWarnings = len(patchReport.DynamicPathWarnings)

	// Step 6: emit trace map over the union.
	tracePath, err := tracemap.Generate(absRoot, finalManifest.Files, cfg.BridgeModuleName)
	if err != nil {
		log.Warn("trace map generation failed: %v", err)
	}
	summary.TraceMapPath = tracePath

	// Step 7: garbage sweep, never fatal. Invoked through the
	// GarbageSweeper interface rather than a direct call so tests can
	// substitute a no-op (spec.md §1). The production sweeper additionally
	// reports counts for the summary; an injected test collaborator is
	// only asked to run, not to report.
	if sweeper == nil {
		sweeper = DefaultGarbageSweeper
	}
	if _, isDefault := sweeper.(defaultSweeper); isDefault {
		gResult, gErr := garbage.SweepWithResult(absRoot)
		if gErr != nil {
			log.Warn("garbage sweep failed: %v", gErr)
		} else {
			summary.GarbageMoved = len(gResult.Moved)
			summary.GarbageErrors = len(gResult.Errors)
		}
	} else if err := sweeper.Sweep(absRoot); err != nil {
		log.Warn("garbage sweep failed: %v", err)
	}

	log.Info("deep clean complete: %d moved, %d patched, %d tokens saved",
		summary.FilesMoved, summary.FilesPatched, tokensMoved)

	return summary, nil
}

// Restore inverts a prior Deep-Clean: relocate.Restore moves every
// manifested file back and removes the bridge/manifest/ignore section,
// then patch.Revert restores every .bak sibling. A project with no
// external storage at all has nothing to restore and is a fatal error to
// this subcommand, per spec.md §7 ("missing manifest -> fatal to the
// restore subcommand, does not touch files").
func Restore(projectRoot string, cfg *config.Config) (*relocate.RestoreResult, int, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve project root: %w", err)
	}

	if !paths.ExternalExists(absRoot) {
		return nil, 0, fmt.Errorf("no deep-clean state found for %s; nothing to restore", absRoot)
	}

	heldLock, err := lock.Acquire(paths.ExternalRoot(absRoot))
	if err != nil {
		return nil, 0, err
	}
	defer heldLock.Release()

	bridgeCfg := relocate.NewBridgeConfig(cfg.BridgeModuleName, cfg.IgnoreFileName)

	result, err := relocate.Restore(absRoot, bridgeCfg)
	if err != nil {
		return nil, 0, fmt.Errorf("restore failed: %w", err)
	}

	reverted, err := patch.Revert(absRoot)
	if err != nil {
		return result, reverted, fmt.Errorf("patch revert failed: %w", err)
	}

	return result, reverted, nil
}

// augmentSchemas runs C3 over every heavy file, attaching a Schema and,
// for Code-category files, flipping CanExtractSchema when a module-level
// dict/list literal digest was actually recovered (spec.md §4.2's "unless
// they have an extractable schema" carve-out for code).
func augmentSchemas(files []model.HeavyFile, cfg *config.Config) {
	for i := range files {
		hf := &files[i]
		s := schema.Extract(hf.AbsolutePath, cfg.MaxSchemaDepth, cfg.CSVSampleRows)
		if s == nil {
			continue
		}
		hf.Schema = s
		if hf.Category == model.CategoryCode {
			hf.CanExtractSchema = s.Error == "" && s.Kind == model.SchemaKindPythonDict && len(s.Variables) > 0
		}
	}
}

func countCreated(results []relocate.SymlinkResult) int {
	n := 0
	for _, r := range results {
		if r.Created {
			n++
		}
	}
	return n
}
