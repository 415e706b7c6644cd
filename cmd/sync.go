package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/profiler-cli/internal/snapshot"
)

var syncStatusOnly bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the regulatory dataset snapshot into the local store",
	Long:  "Downloads the CMS Hospital General Information CSV, falling back to the configured mirror, and upserts every facility row into the snapshot store. The snapshot backs offline name validation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initSnapshotStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if syncStatusOnly {
			status, err := st.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Println(formatSyncStatus(status))
			return nil
		}

		if cfg.CMS.SnapshotURL == "" {
			return eris.New("cms snapshot URL is not configured")
		}

		status, err := snapshot.Sync(ctx, initDispatcher(), st, snapshot.SyncOptions{
			URL:       cfg.CMS.SnapshotURL,
			MirrorURL: cfg.CMS.MirrorURL,
		})
		if err != nil {
			return err
		}

		fmt.Printf("synced %d facilities (run %s)\n", status.RowCount, status.ID)
		return nil
	},
}

// formatSyncStatus renders one human-readable line for --status output.
func formatSyncStatus(status *snapshot.SyncStatus) string {
	if status == nil {
		return "no sync has run yet"
	}
	return fmt.Sprintf("last sync %s: %d rows in %s (run %s)",
		status.FinishedAt.Format(time.RFC3339),
		status.RowCount,
		status.FinishedAt.Sub(status.StartedAt).Round(time.Millisecond),
		status.ID,
	)
}

func init() {
	syncCmd.Flags().BoolVar(&syncStatusOnly, "status", false, "print the last sync run instead of syncing")
	rootCmd.AddCommand(syncCmd)
}
