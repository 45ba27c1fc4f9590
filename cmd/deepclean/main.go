// Package main implements the deepclean CLI: the command dispatcher that
// drives the Deep-Clean pipeline (C1-C8) from a terminal. Modeled on the
// teacher's cmd/nerd/main.go: a cobra.Command root with persistent global
// flags, a PersistentPreRunE that wires up structured logging, and one
// RunE per subcommand. The interactive menu, colored output, and progress
// printing the teacher's own root command also carries are explicitly
// out of scope here (spec.md §1); this shell only drives doctor.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"deepclean/internal/config"
	"deepclean/internal/logging"
)

const version = "1.0.0"

var (
	verbose     bool
	showVersion bool
	logger      *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "deepclean",
	Short:        "Keeps a project's on-disk token footprint small for AI coding assistants",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("deepclean version %s\n", version)
			os.Exit(0)
		}

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			zapCfg.Encoding = "console"
			zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&showVersion, "version", "V", false, "Print the deepclean version and exit")
	rootCmd.SetVersionTemplate("deepclean version {{.Version}}\n")

	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an orchestrator error to the spec.md §6 exit code
// contract: 0 success (handled by Execute returning nil), 1 unrecoverable
// error, 130 user cancel.
func exitCodeFor(err error) int {
	if err == cancelErr {
		return 130
	}
	return 1
}

// cancelErr is the sentinel RunE functions return on SIGINT/SIGTERM.
var cancelErr = fmt.Errorf("operation canceled")

// loadProjectConfig loads .deepclean/config.yaml under projectPath,
// falling back to defaults, and initializes category logging under
// <projectPath>/.deepclean/logs (spec.md §6 persisted-state layout;
// logging enablement follows cfg.Logging.DebugMode unless --verbose was
// passed, which forces it on so a single run can be inspected after the
// fact).
func loadProjectConfig(projectPath string) (*config.Config, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %q: %w", projectPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project path %q is not accessible: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %q is not a directory", abs)
	}

	cfgPath := filepath.Join(abs, ".deepclean", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	debug := cfg.Logging.DebugMode || verbose
	if err := logging.Initialize(abs, debug, cfg.Logging.JSONFormat); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
	}

	return cfg, nil
}
