package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:       "migrate {up|down}",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrationsPath, args[0])
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "path", "migrations", "directory containing migration files")
	return cmd
}

func runMigrate(path, direction string) error {
	// Load .env for local development, same as the server does.
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	mig, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = mig.Close()
	}()

	switch direction {
	case "up":
		err = mig.Up()
	case "down":
		err = mig.Steps(-1)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}

	fmt.Printf("migration %s complete\n", direction)
	return nil
}
