package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/detect"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/manifest"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pipeline"
	"github.com/albertocavalcante/assetpatch/pkg/config"
)

var initFlags struct {
	cpp      int
	force    bool
	dryRun   bool
	noConfig bool
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a project with a config file and an empty manifest",
	Long: `Initializes a game project for assetpatch.

This command will:
1. Detect source roots (src, res, script)
2. Create assetpatch.toml listing them
3. Create the current-state manifest with version 0 and no files

'assetpatch hash' never creates the manifest itself; run init once first.
Use --dry-run to preview changes without applying them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().IntVarP(&initFlags.cpp, "cpp", "c", 0,
		"Initial major (cpp) version")
	initCmd.Flags().BoolVar(&initFlags.force, "force", false,
		"Overwrite an existing config and manifest")
	initCmd.Flags().BoolVar(&initFlags.dryRun, "dry-run", false,
		"Show what would change without applying")
	initCmd.Flags().BoolVar(&initFlags.noConfig, "no-config", false,
		"Only create the manifest")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	target := globalFlags.dir
	if len(args) > 0 {
		target = args[0]
	}
	dir, err := resolveDir(target)
	if err != nil {
		return err
	}

	layout, err := detect.Project(dir)
	if err != nil {
		return fmt.Errorf("failed to inspect project: %w", err)
	}
	if len(layout.Roots) == 0 {
		return &pipeline.Error{
			Kind: pipeline.KindConfiguration,
			Path: dir,
			Err:  fmt.Errorf("no source directories found (looked for %s)", strings.Join(detect.CandidateRoots, ", ")),
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Roots: %s (%d files, %d scripts)\n",
		strings.Join(layout.Roots, ", "), layout.Files, layout.Scripts)
	if layout.Scripts > 0 && !layout.Cocos {
		_, _ = fmt.Fprintln(out, "Note: no .cocos-project.json found; packing requires the cocos console")
	}

	projectCfg := &config.Config{
		Sources:  config.SourcesConfig{Roots: layout.Roots},
		Manifest: config.ManifestConfig{Path: layout.Manifest},
	}
	configPath := filepath.Join(dir, config.ConfigFileName)
	manifestPath := filepath.Join(dir, filepath.FromSlash(layout.Manifest))

	if initFlags.dryRun {
		return initDryRun(cmd, projectCfg, configPath, manifestPath)
	}

	if !initFlags.noConfig {
		err := config.WriteFile(configPath, projectCfg, initFlags.force)
		switch {
		case errors.Is(err, config.ErrConfigExists):
			_, _ = fmt.Fprintf(out, "%s exists (not modified)\n", configPath)
		case err != nil:
			return err
		default:
			_, _ = fmt.Fprintf(out, "Created %s\n", configPath)
		}
	}

	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return &pipeline.Error{Kind: pipeline.KindConfiguration, Err: err}
	}
	if initFlags.noConfig {
		cfg.Sources.Roots = layout.Roots
		cfg.Manifest.Path = layout.Manifest
	}

	path, err := pipeline.Seed(pipeline.Options{Dir: dir, Config: cfg}, initFlags.cpp, initFlags.force)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Created %s (version %d.0)\n", path, initFlags.cpp)
	return nil
}

func initDryRun(cmd *cobra.Command, cfg *config.Config, configPath, manifestPath string) error {
	out := cmd.OutOrStdout()

	if !initFlags.noConfig {
		if fileExists(configPath) && !initFlags.force {
			_, _ = fmt.Fprintf(out, "%s exists (would not modify)\n", configPath)
		} else {
			data, err := config.Encode(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Would create %s:\n%s\n", configPath, data)
		}
	}

	if fileExists(manifestPath) && !initFlags.force {
		_, _ = fmt.Fprintf(out, "%s exists (would not modify)\n", manifestPath)
		return nil
	}
	data, err := manifest.Encode(manifest.Build(nil, initFlags.cpp, 0))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Would create %s:\n%s", manifestPath, data)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
