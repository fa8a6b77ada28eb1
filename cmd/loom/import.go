package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerloom/ledgerloom/internal/cli"
	"github.com/ledgerloom/ledgerloom/internal/importer"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import documents from a CSV file",
		Long: `Import documents and lines from a CSV file. Rows sharing a
document number become lines of one document; each document commits
independently, so a bad row skips only its own document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd.Context(), func(store service.Storage) error {
				summary, err := importer.New(store, os.Stderr).ImportFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf(
					"Imported %d documents (%d lines), skipped %d",
					summary.Documents, summary.Lines, summary.Skipped)))
				return nil
			})
		},
	}
}
