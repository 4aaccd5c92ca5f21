package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and queued changes",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		ctx := cmd.Context()
		fmt.Println(ui.Connectivity(app.monitor.ProbeOnce(ctx)))

		last, err := app.store.LastSync(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.LastSync(last))
		fmt.Println()

		waiting := make(map[string]int)
		pending := make(map[string]int)
		for name, count := range app.store.StatusCounts() {
			w, err := count(ctx, model.StatusWaiting)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			p, err := count(ctx, model.StatusPendingDelete)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			waiting[name] = w
			pending[name] = p
		}
		fmt.Print(ui.StatusTable(waiting, pending))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
