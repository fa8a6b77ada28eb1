package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerloom/ledgerloom/internal/cli"
	"github.com/ledgerloom/ledgerloom/internal/service"
	"github.com/ledgerloom/ledgerloom/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd.Context(), func(service.Storage) error {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf(
					"Database schema is at version %d", storage.ExpectedSchemaVersion)))
				return nil
			})
		},
	}
}
