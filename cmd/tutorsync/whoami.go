package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutordesk/tutorsync/internal/identity"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the locally cached identity",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		u, err := app.who.CurrentUser(cmd.Context())
		if errors.Is(err, identity.ErrNoUser) {
			fmt.Println("No cached user. Run 'tutorsync import' while online.")
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s <%s> (%s)\n", u.Name, u.Email, u.Role)
		fmt.Printf("id: %s\n", u.ID)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
