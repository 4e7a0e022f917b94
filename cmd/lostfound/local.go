package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/lostfound/internal/itemstore"
)

func localCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Manage items kept by the local fallback backend",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every locally stored item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(database *sql.DB) error {
				if err := itemstore.NewLocal(database).Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, "Local items cleared.")
				return nil
			})
		},
	})
	return cmd
}
