// doctor.go implements the `doctor` subcommand family: --report (diagnose
// only), --fix (safe local fixes), --full (the complete Deep-Clean
// pipeline), --restore (invert a prior Deep-Clean), and --dry-run
// (compatible with --full). Behavior is normative per spec.md §6; the
// interactive menu and colored progress printing these subcommands would
// have in a full CLI product are explicitly out of scope (spec.md §1).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deepclean/internal/config"
	"deepclean/internal/logging"
	"deepclean/internal/paths"
	"deepclean/internal/pipeline"
	"deepclean/internal/scanner"
)

var (
	flagReport  bool
	flagFix     bool
	flagFull    bool
	flagRestore bool
	flagDryRun  bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor <path>",
	Short: "Diagnose and clean up a project's on-disk token footprint",
	Args:  cobra.ExactArgs(1),
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&flagReport, "report", false, "Diagnose only: scan and list issues")
	doctorCmd.Flags().BoolVar(&flagFix, "fix", false, "Apply safe local fixes (ignore file, cache dirs, vendored envs)")
	doctorCmd.Flags().BoolVar(&flagFull, "full", false, "Run the full Deep-Clean pipeline")
	doctorCmd.Flags().BoolVar(&flagRestore, "restore", false, "Invert a prior Deep-Clean")
	doctorCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "With --full: print how many files would move (not which), write nothing")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	projectPath := args[0]

	selected := 0
	for _, b := range []bool{flagReport, flagFix, flagFull, flagRestore} {
		if b {
			selected++
		}
	}
	if selected == 0 {
		return fmt.Errorf("one of --report, --fix, --full, or --restore is required")
	}
	if selected > 1 {
		return fmt.Errorf("--report, --fix, --full, and --restore are mutually exclusive")
	}
	if flagDryRun && !flagFull {
		return fmt.Errorf("--dry-run is only valid with --full")
	}

	cfg, err := loadProjectConfig(projectPath)
	if err != nil {
		return err
	}
	absRoot, err := filepath.Abs(projectPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch {
	case flagReport:
		return runReport(absRoot, cfg)
	case flagFix:
		return runFix(absRoot, cfg)
	case flagFull:
		return runFull(ctx, absRoot, cfg, flagDryRun)
	case flagRestore:
		return runRestore(absRoot, cfg)
	}
	return nil
}

// signalContext returns a channel that receives SIGINT/SIGTERM. runFull
// runs the orchestrator in a goroutine and returns cancelErr as soon as a
// signal arrives, whatever stage is in progress; no cleanup of
// partially-moved files is performed (spec.md §5).
func signalContext() (chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

func runReport(projectRoot string, cfg *config.Config) error {
	result, err := scanner.Scan(projectRoot, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d files (%s estimated tokens) under %s\n",
		result.TotalFilesScanned, humanize.Comma(result.TotalTokens), projectRoot)
	fmt.Printf("%d heavy file(s) at or above the %d-token threshold:\n", len(result.HeavyFiles), cfg.Threshold)
	for _, hf := range result.HeavyFiles {
		fmt.Printf("  %-50s %10s tokens  (%s, %s)\n",
			hf.ProjectRelativePath, humanize.Comma(hf.EstimatedTokens), hf.Category, humanize.Bytes(uint64(hf.SizeBytes)))
	}
	if len(result.Errors) > 0 {
		fmt.Printf("%d scan error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

// runFix applies the "safe local fixes" doctor --fix promises without
// running the full relocation pipeline: it ensures the ignore file
// exists, removes trivial cache directories, and moves vendored virtual
// environments into external storage's venvs/ subdirectory. Grounded on
// original_source/src/optimizer/heavy_mover.py's cache-cleanup helpers;
// kept separate from C4's Move because spec.md §1 scopes the
// "create new project"/scaffold generators and the trivial-temp sweep out
// of the Deep-Clean pipeline's core, as collaborators invoked through
// their own interfaces rather than folded into relocation.
func runFix(projectRoot string, cfg *config.Config) error {
	log := logging.Get(logging.CategoryPipeline)
	fixed := 0

	ignorePath := filepath.Join(projectRoot, cfg.IgnoreFileName)
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte{}, 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", cfg.IgnoreFileName, err)
		}
		fmt.Printf("created %s\n", cfg.IgnoreFileName)
		fixed++
	}

	cacheDirs := []string{"__pycache__", ".pytest_cache", ".mypy_cache", ".ruff_cache"}
	removed, err := removeCacheDirs(projectRoot, cacheDirs)
	if err != nil {
		log.Warn("cache cleanup encountered errors: %v", err)
	}
	fixed += removed
	fmt.Printf("removed %d cache director%s\n", removed, plural(removed))

	venvDirs := []string{"venv", ".venv", "env"}
	moved, err := moveVendoredEnvs(projectRoot, venvDirs)
	if err != nil {
		log.Warn("venv relocation encountered errors: %v", err)
	}
	fixed += moved
	fmt.Printf("moved %d vendored environment director%s to external storage\n", moved, plural(moved))

	fmt.Printf("doctor --fix applied %d change(s)\n", fixed)
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func removeCacheDirs(projectRoot string, names []string) (int, error) {
	removed := 0
	var firstErr error
	for _, name := range names {
		err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if info.IsDir() && info.Name() == name {
				if err := os.RemoveAll(path); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return filepath.SkipDir
				}
				removed++
				return filepath.SkipDir
			}
			return nil
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return removed, firstErr
}

func moveVendoredEnvs(projectRoot string, names []string) (int, error) {
	venvRoot := paths.ExternalSubdir(projectRoot, "venvs")
	moved := 0
	var firstErr error
	for _, name := range names {
		src := filepath.Join(projectRoot, name)
		info, err := os.Stat(src)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := os.MkdirAll(venvRoot, 0755); err != nil {
			firstErr = err
			continue
		}
		dst := filepath.Join(venvRoot, name)
		if err := os.Rename(src, dst); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		moved++
	}
	return moved, firstErr
}

func runFull(cancelCh chan os.Signal, projectRoot string, cfg *config.Config, dryRun bool) error {
	done := make(chan struct{})
	var summary *pipeline.Summary
	var runErr error

	go func() {
		defer close(done)
		summary, runErr = pipeline.DeepClean(projectRoot, cfg, dryRun)
	}()

	select {
	case <-cancelCh:
		return cancelErr
	case <-done:
	}

	if runErr != nil {
		return runErr
	}

	printSummary(summary)
	return nil
}

func printSummary(s *pipeline.Summary) {
	if s.DryRun {
		fmt.Printf("dry run: would move %d file(s) under %s\n", s.FilesMoved, s.ProjectRoot)
		return
	}
	fmt.Printf("Deep-Clean summary for %s\n", s.ProjectRoot)
	fmt.Printf("  tokens before:     %s\n", humanize.Comma(s.TotalTokensBefore))
	fmt.Printf("  tokens after:      %s\n", humanize.Comma(s.TotalTokensAfter))
	fmt.Printf("  files moved:       %d (%d already moved, %d failed)\n", s.FilesMoved, s.FilesAlreadyMoved, s.FilesFailedToMove)
	fmt.Printf("  files patched:     %d (%d total substitutions)\n", s.FilesPatched, s.TotalPatches)
	fmt.Printf("  symlinks created:  %d\n", s.SymlinksCreated)
	fmt.Printf("  dynamic warnings:  %d\n", s.DynamicWarnings)
	fmt.Printf("  garbage quarantined: %d\n", s.GarbageMoved)
	if s.ManifestPath != "" {
		fmt.Printf("  manifest:          %s\n", s.ManifestPath)
	}
	if s.TraceMapPath != "" {
		fmt.Printf("  trace map:         %s\n", s.TraceMapPath)
	}

	if s.PatchReport != nil {
		for _, w := range s.PatchReport.DynamicPathWarnings {
			fmt.Printf("  warning: %s:%d dynamic path off %q (%s) — define a local binding via get_path(%q) or rely on a symlink\n",
				w.File, w.Line, w.Prefix, w.Kind, w.Prefix)
		}
	}
}

func runRestore(projectRoot string, cfg *config.Config) error {
	result, reverted, err := pipeline.Restore(projectRoot, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d file(s), reverted %d patched source file(s)\n", len(result.RestoredFiles), reverted)
	if len(result.FailedFiles) > 0 {
		var reasons []string
		for _, f := range result.FailedFiles {
			reasons = append(reasons, fmt.Sprintf("%s: %s", f.ProjectRelativePath, f.Reason))
		}
		return fmt.Errorf("%d file(s) failed to restore: %s", len(result.FailedFiles), strings.Join(reasons, "; "))
	}
	return nil
}
