package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerloom/ledgerloom/internal/cli"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/report"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the budget dashboard",
		Long: `Build the budget dashboard: per-budget actuals and variance,
health scores, cash flow for the period, and alerts for overdue
documents and over-budget cost centers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			periodID, _ := cmd.Flags().GetInt64("period")
			kind, _ := cmd.Flags().GetString("kind")

			opts := report.Options{Now: time.Now()}
			if periodID > 0 {
				opts.PeriodID = &periodID
			}
			if kind != "" {
				k := model.BudgetKind(kind)
				opts.Kind = &k
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				rep, err := report.NewService(store).Build(cmd.Context(), opts)
				if err != nil {
					return err
				}
				fmt.Print(cli.RenderReport(rep))
				return nil
			})
		},
	}

	cmd.Flags().Int64("period", 0, "budget period ID (default: all periods)")
	cmd.Flags().String("kind", "", "filter budgets by kind (expense, revenue)")

	return cmd
}
