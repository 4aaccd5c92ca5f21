package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutordesk/tutorsync/internal/api"
	"github.com/tutordesk/tutorsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued local changes to the server once",
	Long: `Run one push pass over every collection.

Tombstoned records are deleted from the server first, then waiting records
are created or updated. A record the server rejects stays queued and is
reported; it retries on the next pass.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		ctx := cmd.Context()
		app.monitor.Start(ctx)
		defer app.monitor.Stop()

		summary, err := app.syncer.SyncAll(ctx)
		if errors.Is(err, api.ErrOffline) {
			fmt.Println(ui.Connectivity(false))
			fmt.Println("Server unreachable; changes stay queued locally.")
			os.Exit(1)
		}

		if summary != nil {
			fmt.Println(ui.PassLine(summary.Succeeded(), summary.Failed(), summary.Skipped))
			for _, report := range summary.Reports {
				for _, res := range report.Results {
					if !res.OK() {
						fmt.Println(ui.RecordFailure(report.Entity, res.ID, string(res.Action), res.Err))
					}
				}
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
