package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkeye/Collab/internal/store/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := sqlite.Open(cmd.Context(), cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		v, err := store.Version(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
		return nil
	},
}

var (
	tokenName string
	tokenTTL  time.Duration
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <email>",
	Short: "Create the user if needed and print a new bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := sqlite.Open(cmd.Context(), cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}

		p, err := store.EnsureUser(cmd.Context(), args[0], tokenName)
		if err != nil {
			return err
		}
		ttl := tokenTTL
		if !cmd.Flags().Changed("ttl") {
			ttl = cfg.TokenTTL
		}
		token, err := store.IssueToken(cmd.Context(), p.ID, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user:  %s (%s)\ntoken: %s\n", p.Name, p.ID, token)
		return nil
	},
}

func init() {
	issueTokenCmd.Flags().StringVar(&tokenName, "name", "", "display name for a new user")
	issueTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, 0 for no expiry (default from config)")
}
