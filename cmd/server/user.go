package main

import (
	"errors"
	"fmt"

	"github.com/goalpath/internal/config"
	"github.com/goalpath/internal/db"
	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account management commands",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var email, name, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account if the email is not registered yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}

			cfg := config.Load()
			if err := db.Init(cfg.DatabaseDriver, cfg.DatabasePath); err != nil {
				return fmt.Errorf("initialize database: %w", err)
			}

			created, err := db.EnsureUser(email, name, password)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s created\n", email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email local part)")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}
