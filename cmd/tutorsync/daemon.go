package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/config"
	"github.com/tutordesk/tutorsync/internal/dashboard"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync loop",
	Long: `Keep the local database and the server converging.

The daemon pushes queued changes on a timer and immediately after the
connection comes back, then refreshes local data from the server. With a
dashboard address configured it also serves a WebSocket feed of sync
activity for the desk UI.

Example usage:
  tutorsync daemon
  tutorsync daemon --dashboard 127.0.0.1:7630`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		dashAddr, _ := cmd.Flags().GetString("dashboard")
		if dashAddr == "" {
			dashAddr = app.cfg.DashboardAddr
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		app.monitor.Start(ctx)
		defer app.monitor.Stop()

		if flagConfig != "" {
			err := config.Watch(flagConfig, func(cfg *config.Config) {
				app.syncer.SetInterval(cfg.SyncInterval)
				app.logger.Info("config file reloaded",
					zap.Duration("sync_interval", cfg.SyncInterval))
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: config reload disabled: %v\n", err)
			}
		}

		if dashAddr != "" {
			srv := dashboard.NewServer(dashAddr, app.store, app.logger)
			if err := srv.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() {
				if err := srv.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Error during dashboard shutdown: %v\n", err)
				}
			}()

			app.syncer.OnSummary = srv.PublishSummary
			transitions := app.monitor.Transitions()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case online := <-transitions:
						srv.PublishConnectivity(online)
					}
				}
			}()

			fmt.Printf("Dashboard on http://%s (ws://%s/ws)\n", srv.Addr(), srv.Addr())
		}

		fmt.Println("Sync daemon running. Press Ctrl+C to stop.")
		if err := app.syncer.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	daemonCmd.Flags().String("dashboard", "", "Dashboard listen address (e.g. 127.0.0.1:7630)")
	rootCmd.AddCommand(daemonCmd)
}
