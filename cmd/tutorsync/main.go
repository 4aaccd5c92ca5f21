// tutorsync is the offline-first sync engine for the tutoring desk client.
//
// It keeps a local SQLite database of centers, teachers, students, subjects,
// receipts and schedules, queues every local change while the server is
// unreachable, and pushes the queue whenever connectivity returns.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDB     string
	flagServer string
)

var rootCmd = &cobra.Command{
	Use:   "tutorsync",
	Short: "Offline-first sync engine for the tutoring desk",
	Long: `tutorsync keeps the tutoring desk working without a connection.

Every local change is written to SQLite first and queued for the server.
'sync' pushes the queue once, 'daemon' keeps pushing on a timer and after
each reconnect, 'import' refreshes local data from the server, and 'status'
shows what is still waiting to go out.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Local database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server base URL (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
