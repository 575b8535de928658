package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pipeline"
	"github.com/albertocavalcante/assetpatch/internal/log"
	"github.com/albertocavalcante/assetpatch/pkg/config"
)

var hashFlags struct {
	sources []string
	cpp     int
	noPack  bool
	verbose bool
}

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash assets, bump the manifest version and build the patch archive",
	Long: `Scans every source root, hashes each file and compares the result with
the current manifest. When anything was added, modified or removed the minor
version is bumped and the manifest rewritten.

VERSION-<major>.<minor>.json and LATEST.json are written on every run. Unless
--no-pack is given, the assets are then staged, Lua scripts are compiled with
'cocos luacompile', and PATCH-<major>.<minor>.zip and LATEST.zip are written.

Exit status: 2 configuration, 3 manifest load, 4 file read, 5 compiler,
6 archive write, 7 manifest write, 1 other.`,
	Args: cobra.NoArgs,
	RunE: runHash,
}

func init() {
	hashCmd.Flags().StringArrayVarP(&hashFlags.sources, "src", "s", nil,
		"Additional source directory (repeatable, appended to configured roots)")
	hashCmd.Flags().IntVarP(&hashFlags.cpp, "cpp", "c", 0,
		"Major (cpp) version; defaults to the manifest's current value")
	hashCmd.Flags().BoolVar(&hashFlags.noPack, "no-pack", false,
		"Skip building the patch archive")
	hashCmd.Flags().BoolVar(&hashFlags.verbose, "verbose", false,
		"Log each added, modified and deleted file")

	rootCmd.AddCommand(hashCmd)
}

// applyHashFlags layers hash flags over the loaded config.
func applyHashFlags(cmd *cobra.Command, cfg *config.Config) {
	cfg.AddRoots(hashFlags.sources...)
	if cmd.Flags().Changed("cpp") {
		major := hashFlags.cpp
		cfg.Manifest.Major = &major
	}
	if hashFlags.noPack {
		disabled := false
		cfg.Pack.Enabled = &disabled
	}
}

func runHash(cmd *cobra.Command, _ []string) error {
	if hashFlags.verbose {
		log.RaiseVerbosity(log.VerbosityDebug)
	}

	dir, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyHashFlags(cmd, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := pipeline.Run(ctx, pipeline.Options{Dir: dir, Config: cfg})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Changed {
		_, _ = fmt.Fprintf(out, "manifest updated: %s (%d files, +%d ~%d -%d)\n",
			res.Manifest.VersionString(), res.Manifest.Len(),
			len(res.Changes.Added), len(res.Changes.Modified), len(res.Changes.Deleted))
	} else {
		_, _ = fmt.Fprintf(out, "nothing to update: %s (%d files)\n",
			res.Manifest.VersionString(), res.Manifest.Len())
	}
	if res.Archive != nil {
		_, _ = fmt.Fprintf(out, "wrote %s (%d entries)\n", filepath.Base(res.Archive.Archive), res.Archive.Entries)
	}
	return nil
}
