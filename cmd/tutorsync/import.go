package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutordesk/tutorsync/internal/api"
	"github.com/tutordesk/tutorsync/internal/ui"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Refresh local data from the server",
	Long: `Replace every collection's synced records with a fresh pull.

Records still carrying unpushed local changes are preserved; run 'sync'
first to push them. Each collection replaces atomically, so a failed pull
leaves that collection untouched.`,
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

		n, err := app.syncer.ImportAll(ctx)
		if errors.Is(err, api.ErrOffline) {
			fmt.Println(ui.Connectivity(false))
			fmt.Println("Server unreachable; cannot import.")
			os.Exit(1)
		}
		fmt.Printf("Imported %d records\n", n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
