// Package cli implements the assetpatch command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pipeline"
	"github.com/albertocavalcante/assetpatch/internal/log"
	"github.com/albertocavalcante/assetpatch/pkg/config"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalFlags holds persistent flags that apply to all commands
var globalFlags struct {
	verbosity int
	logFormat string
	dir       string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assetpatch",
	Short: "Versioned asset manifests and patch archives",
	Long: `assetpatch hashes every file under a game project's source roots,
records the hashes in a versioned manifest (VERSION.json), bumps the minor
version whenever content changes, and packages the assets, with Lua scripts
compiled by cocos luacompile, into PATCH-<major>.<minor>.zip.

Use 'assetpatch init' to seed a project, then 'assetpatch hash' on each build.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "assetpatch %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Global flags (persistent across all commands)
	rootCmd.PersistentFlags().IntVarP(&globalFlags.verbosity, "verbosity", "v", 1,
		"Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "text",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.dir, "dir", "C", "",
		"Project directory (default: current directory)")

	// Hook to apply flags before command runs
	cobra.OnInitialize(initLogging)
}

// initLogging applies CLI flags to the logger.
// This runs after flags are parsed but before command execution.
func initLogging() {
	log.Init(globalFlags.verbosity, globalFlags.logFormat)
}

// Execute runs the root command and exits with the error's exit status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(pipeline.ExitCode(err))
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}

// projectDir resolves the --dir flag to an absolute directory.
func projectDir() (string, error) {
	return resolveDir(globalFlags.dir)
}

// resolveDir returns dir as an absolute existing directory; empty means
// the current directory.
func resolveDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return wd, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &pipeline.Error{Kind: pipeline.KindConfiguration, Path: abs, Err: err}
	}
	if !info.IsDir() {
		return "", &pipeline.Error{Kind: pipeline.KindConfiguration, Path: abs, Err: fmt.Errorf("not a directory")}
	}
	return abs, nil
}

// loadConfig resolves the project directory and loads the layered config.
func loadConfig() (string, *config.Config, error) {
	dir, err := projectDir()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return "", nil, &pipeline.Error{Kind: pipeline.KindConfiguration, Err: err}
	}
	return dir, cfg, nil
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
