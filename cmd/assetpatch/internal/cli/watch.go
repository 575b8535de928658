package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pipeline"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/watch"
)

var watchFlags struct {
	debounce int
	verbose  bool
	json     bool
	noColor  bool
	noPack   bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch source roots and re-run hash on change",
	Long: `Watches every source root and runs 'assetpatch hash' whenever files
are added, modified or removed. Bursts of changes within the debounce window
are coalesced into a single run; runs never overlap.

Example output:

  $ assetpatch watch

  assetpatch: watching 1247 files
  assetpatch: root /path/to/game/src
  assetpatch: root /path/to/game/res
  assetpatch: ready

  [14:32:15] ~ ui/button.png
  [14:32:15] ui/button.png changed, hashing...
  [14:32:16] ✓ version 1.7, wrote PATCH-1.7.zip

Press Ctrl+C to stop watching.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 500,
		"Debounce window in milliseconds")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")
	watchCmd.Flags().BoolVar(&watchFlags.noPack, "no-pack", false,
		"Skip building the patch archive")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	dir, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchFlags.noPack {
		disabled := false
		cfg.Pack.Enabled = &disabled
	}

	opts := pipeline.Options{Dir: dir, Config: cfg}
	rc, err := pipeline.Prepare(opts)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	// Include SIGHUP to handle terminal hangup
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	w, err := watch.New(watch.Config{
		Roots:    rc.Roots,
		Filter:   rc.Filter,
		Ignore:   rc.IsOutput,
		Debounce: time.Duration(watchFlags.debounce) * time.Millisecond,
		Run: func(ctx context.Context) (*pipeline.Result, error) {
			return pipeline.Run(ctx, opts)
		},
		Writer:  cmd.OutOrStdout(),
		Verbose: watchFlags.verbose,
		NoColor: watchFlags.noColor,
		JSON:    watchFlags.json,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	return w.Run(ctx)
}
