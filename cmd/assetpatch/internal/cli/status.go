package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pipeline"
)

var statusFlags struct {
	verbose bool
	json    bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which assets changed since the current manifest",
	Long: `Hashes the source roots and compares them with the current manifest
without writing anything, compiling scripts, or building an archive.

The --verbose flag lists individual file changes (new, modified, deleted).
The --json flag outputs the result as JSON for scripting.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.verbose, "verbose", false,
		"Show individual file changes")
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for assetpatch status.
type StatusOutput struct {
	Changed       bool     `json:"changed"`
	Version       string   `json:"version"`
	NextVersion   string   `json:"next_version"`
	Files         int      `json:"files"`
	AffectedDirs  []string `json:"affected_dirs"`
	NewFiles      []string `json:"new_files,omitempty"`
	ModifiedFiles []string `json:"modified_files,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	dir, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := pipeline.Status(context.Background(), pipeline.Options{Dir: dir, Config: cfg})
	if err != nil {
		return err
	}
	cs := res.Changes
	out := cmd.OutOrStdout()

	if statusFlags.json {
		return outputJSON(out, StatusOutput{
			Changed:       res.Changed,
			Version:       res.Previous.VersionString(),
			NextVersion:   res.Manifest.VersionString(),
			Files:         res.Files,
			AffectedDirs:  cs.AffectedDirs(),
			NewFiles:      cs.Added,
			ModifiedFiles: cs.Modified,
			DeletedFiles:  cs.Deleted,
		})
	}

	if !res.Changed {
		_, _ = fmt.Fprintf(out, "Assets are up to date (version %s, %d files)\n",
			res.Previous.VersionString(), res.Files)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Version %s -> %s\n", res.Previous.VersionString(), res.Manifest.VersionString())
	if cs.IsEmpty() {
		_, _ = fmt.Fprintln(out, "Major version changed; file set is unchanged")
	} else {
		dirs := cs.AffectedDirs()
		_, _ = fmt.Fprintf(out, "Changed directories (%d):\n", len(dirs))
		for _, d := range dirs {
			_, _ = fmt.Fprintf(out, "  %s\n", d)
		}
	}

	if statusFlags.verbose {
		printFiles(cmd, "New files", "+", cs.Added)
		printFiles(cmd, "Modified files", "~", cs.Modified)
		printFiles(cmd, "Deleted files", "-", cs.Deleted)
	}

	_, _ = fmt.Fprintln(out, "\nRun 'assetpatch hash' to update the manifest")
	return nil
}

func printFiles(cmd *cobra.Command, title, mark string, files []string) {
	if len(files) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "\n%s (%d):\n", title, len(files))
	for _, f := range files {
		_, _ = fmt.Fprintf(out, "  %s %s\n", mark, f)
	}
}
