package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/store"
)

var errAccountNotFound = errors.New("account not found")

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage sign-in accounts",
	}
	cmd.AddCommand(userAddCmd(), userListCmd(), userDeleteCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account with a generated password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(database *sql.DB) error {
				return addAccount(cmd.Context(), database, os.Stdout, email, name)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(database *sql.DB) error {
				return listAccounts(cmd.Context(), database, os.Stdout)
			})
		},
	}
}

func userDeleteCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account; items it reported stay on the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(database *sql.DB) error {
				return deleteAccount(cmd.Context(), database, os.Stdout, email)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func addAccount(ctx context.Context, database *sql.DB, w io.Writer, email, name string) error {
	password, err := auth.GeneratePassword()
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}

	accounts := auth.NewAccounts(database, log.Logger)
	account, err := accounts.Register(ctx, email, name, password)
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	fmt.Fprintln(w, "Account created:")
	fmt.Fprintf(w, "  Email:    %s\n", account.Email)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "It can be changed from the account page after signing in.")
	return nil
}

func listAccounts(ctx context.Context, database *sql.DB, w io.Writer) error {
	accounts, err := store.ListAccounts(ctx, database)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(w, "No accounts.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tCREATED")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Email, a.DisplayName, humanize.Time(a.CreatedAt))
	}
	return tw.Flush()
}

func deleteAccount(ctx context.Context, database *sql.DB, w io.Writer, email string) error {
	account, err := store.GetAccountByEmail(ctx, database, email)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: %s", errAccountNotFound, email)
	}
	if err := store.DeleteAccount(ctx, database, account.ID); err != nil {
		return err
	}
	fmt.Fprintf(w, "Account %s deleted.\n", account.Email)
	return nil
}
