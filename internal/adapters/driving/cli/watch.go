package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep a folder indexed",
	Long: `Ingests every .txt and .md file under a folder into the tenant, then
watches the folder: new and edited files are (re)ingested, removed files
are deleted. Documents are named by their path relative to the folder.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

// Watch flags.
var (
	watchPrune    bool
	watchDebounce time.Duration
	watchOnce     bool
)

func init() {
	watchCmd.Flags().BoolVar(&watchPrune, "prune", false, "delete documents whose file no longer exists")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "wait for files to be quiet this long")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "sync the folder and exit without watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	w, err := watch.New(documentService, watch.Config{
		Tenant:   tenant,
		Root:     args[0],
		Debounce: watchDebounce,
		Prune:    watchPrune,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := w.Sync(ctx); err != nil {
		return err
	}
	st := w.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %s: %d ingested, %d deleted, %d skipped\n",
		args[0], st.Ingested, st.Deleted, st.Skipped)

	if watchOnce {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for tenant %s (Ctrl+C to stop)\n", args[0], tenant)
	return w.Run(ctx)
}
