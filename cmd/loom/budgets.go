package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerloom/ledgerloom/internal/budget"
	"github.com/ledgerloom/ledgerloom/internal/cli"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Manage budgets and their revisions",
	}

	cmd.AddCommand(budgetsQuickEntryCmd())
	cmd.AddCommand(budgetsListCmd())
	cmd.AddCommand(budgetsSetCmd())
	cmd.AddCommand(budgetsRevisionsCmd())

	return cmd
}

func budgetsQuickEntryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quick-entry",
		Short: "Create or revise a budget in one step",
		Long: `Resolve or create a cost center, set its planned amount for the
period and kind, and optionally seed a posted demo document carrying
an actual amount. Everything commits as one unit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("cost-center")
			code, _ := cmd.Flags().GetString("code")
			kind, _ := cmd.Flags().GetString("kind")
			budgetStr, _ := cmd.Flags().GetString("budget")
			actualStr, _ := cmd.Flags().GetString("actual")
			periodID, _ := cmd.Flags().GetInt64("period")
			actor, _ := cmd.Flags().GetString("actor")

			amount, err := money.Parse(budgetStr)
			if err != nil {
				return err
			}

			entry := budget.QuickEntry{
				Kind:           model.BudgetKind(kind),
				CostCenterName: name,
				CostCenterCode: code,
				BudgetAmount:   amount,
				Actor:          actor,
			}
			if periodID > 0 {
				entry.PeriodID = &periodID
			}
			if actualStr != "" {
				actual, err := money.Parse(actualStr)
				if err != nil {
					return err
				}
				entry.ActualAmount = &actual
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				result, err := budget.NewService(store).ApplyQuickEntry(cmd.Context(), entry, time.Now())
				if err != nil {
					return err
				}

				switch {
				case result.CreatedBudget:
					fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created budget for %s: %s",
						result.Account.Label(), result.Budget.Amount.StringFixed(2))))
				case result.RevisedBudget:
					fmt.Println(cli.FormatSuccess(fmt.Sprintf("Revised budget for %s to %s",
						result.Account.Label(), result.Budget.Amount.StringFixed(2))))
				default:
					fmt.Println(cli.FormatInfo("Budget unchanged"))
				}
				if result.ActualDocument != nil {
					fmt.Println(cli.FormatInfo(fmt.Sprintf("Seeded posted document %s (%s)",
						result.ActualDocument.Number, result.ActualDocument.TotalAmount.StringFixed(2))))
				}
				return nil
			})
		},
	}

	cmd.Flags().String("cost-center", "", "cost center name")
	cmd.Flags().String("code", "", "cost center code")
	cmd.Flags().String("kind", "expense", "budget kind (expense, revenue)")
	cmd.Flags().String("budget", "0.00", "planned amount")
	cmd.Flags().String("actual", "", "actual amount to seed as a posted document")
	cmd.Flags().Int64("period", 0, "budget period ID (default: newest active period)")
	cmd.Flags().String("actor", "", "who is making the entry")
	_ = cmd.MarkFlagRequired("cost-center")

	return cmd
}

func budgetsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budgets with their projections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			periodID, _ := cmd.Flags().GetInt64("period")
			kind, _ := cmd.Flags().GetString("kind")

			return withStorage(cmd.Context(), func(store service.Storage) error {
				ctx := cmd.Context()

				filter := service.BudgetFilter{}
				if periodID > 0 {
					filter.PeriodID = &periodID
				}
				if kind != "" {
					k := model.BudgetKind(kind)
					filter.Kind = &k
				}

				budgets, err := store.ListBudgets(ctx, filter)
				if err != nil {
					return err
				}
				if len(budgets) == 0 {
					fmt.Println(cli.FormatInfo("No budgets found"))
					return nil
				}

				for i := range budgets {
					b := &budgets[i]
					account, err := store.GetAccount(ctx, b.AnalyticAccountID)
					if err != nil {
						return err
					}
					proj, err := budget.NewService(store).Projection(ctx, b)
					if err != nil {
						return err
					}
					fmt.Printf("[%d] %-26s %-8s budget %12s  actual %12s  achieved %s%%\n",
						b.ID, account.Label(), b.Kind,
						b.Amount.StringFixed(2), proj.Actual.StringFixed(2),
						proj.AchievementPct.StringFixed(2))
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64("period", 0, "filter by period ID")
	cmd.Flags().String("kind", "", "filter by kind (expense, revenue)")

	return cmd
}

func budgetsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <budget-id>",
		Short: "Change a budget's planned amount",
		Long: `Set a budget's planned amount. Every change is recorded as an
append-only revision attributed to the actor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			budgetID, err := parseID(args[0], "budget")
			if err != nil {
				return err
			}
			amountStr, _ := cmd.Flags().GetString("amount")
			actor, _ := cmd.Flags().GetString("actor")
			note, _ := cmd.Flags().GetString("note")

			amount, err := money.Parse(amountStr)
			if err != nil {
				return err
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				err := budget.NewService(store).UpdateAmount(cmd.Context(), budgetID, amount, actor, note)
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Budget %d set to %s", budgetID, amount.StringFixed(2))))
				return nil
			})
		},
	}

	cmd.Flags().String("amount", "", "new planned amount")
	cmd.Flags().String("actor", "", "who is making the change")
	cmd.Flags().String("note", "", "reason for the change")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func budgetsRevisionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revisions <budget-id>",
		Short: "Show a budget's revision history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			budgetID, err := parseID(args[0], "budget")
			if err != nil {
				return err
			}
			return withStorage(cmd.Context(), func(store service.Storage) error {
				revisions, err := budget.NewService(store).Revisions(cmd.Context(), budgetID)
				if err != nil {
					return err
				}
				fmt.Print(cli.RenderRevisions(revisions))
				return nil
			})
		},
	}
}

func periodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Manage budget periods",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a budget period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")

			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("invalid start date: %w", err)
			}
			end, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return fmt.Errorf("invalid end date: %w", err)
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				period := &model.BudgetPeriod{Name: name, StartDate: start, EndDate: end, IsActive: true}
				if err := budget.NewService(store).CreatePeriod(cmd.Context(), period); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created period %q (ID %d)", period.Name, period.ID)))
				return nil
			})
		},
	}
	create.Flags().String("name", "", "period name")
	create.Flags().String("start", "", "start date (YYYY-MM-DD)")
	create.Flags().String("end", "", "end date (YYYY-MM-DD)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("start")
	_ = create.MarkFlagRequired("end")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active budget periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd.Context(), func(store service.Storage) error {
				periods, err := store.ActivePeriods(cmd.Context())
				if err != nil {
					return err
				}
				if len(periods) == 0 {
					fmt.Println(cli.FormatInfo("No active periods"))
					return nil
				}
				for i := range periods {
					p := &periods[i]
					fmt.Printf("[%d] %-16s %s .. %s\n", p.ID, p.Name,
						p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
				}
				return nil
			})
		},
	}

	ensure := &cobra.Command{
		Use:   "ensure-current",
		Short: "Create a calendar-month period when none is active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd.Context(), func(store service.Storage) error {
				period, err := budget.NewService(store).EnsureCurrentPeriod(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Active period: %s (ID %d)", period.Name, period.ID)))
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, ensure)
	return cmd
}
