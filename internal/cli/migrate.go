package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"agentdocs/internal/service/assistant"
	"agentdocs/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", dbType)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the built-in agents that are not present yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		created, err := seedAgents(cmd.Context(), assistant.NewService(db))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d agent(s)\n", created)
		return nil
	},
}

func seedAgents(ctx context.Context, store *assistant.Service) (int, error) {
	agents, err := storage.DefaultAgents()
	if err != nil {
		return 0, err
	}
	created, err := store.SeedAgents(ctx, agents)
	if err != nil {
		return 0, fmt.Errorf("seed agents: %w", err)
	}
	return created, nil
}
