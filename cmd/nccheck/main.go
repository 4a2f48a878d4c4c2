// nccheck analyzes a G-code program from the command line: geometry
// summary, cycle-time estimate, and manufacturability diagnostics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose bool

	// Logger
	logger *zap.Logger

	// exitStatus is set by subcommands that finished their work but want a
	// non-zero process status, e.g. when error-severity diagnostics fired.
	exitStatus int
)

var rootCmd = &cobra.Command{
	Use:   "nccheck",
	Short: "G-code program analyzer and linter",
	Long: `nccheck runs a single-pass analysis over a G-code program and reports
geometry (segments, bounding envelope), an estimated cycle time, and a
set of manufacturability diagnostics. Machine context (traverse rates,
safe rapid height, stock envelope) sharpens the checks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(analyzeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
	os.Exit(exitStatus)
}
