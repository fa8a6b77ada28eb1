package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerloom/ledgerloom/internal/cli"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage auto-assignment rules for cost centers",
	}

	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesListCmd())

	return cmd
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an auto-assignment rule",
		Long: `Rules assign a cost center to matching document lines when a
document is confirmed. Lower priority values win; a rule with no
product or category filter also sweeps lines no other rule matched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			docType, _ := cmd.Flags().GetString("type")
			priority, _ := cmd.Flags().GetInt("priority")
			contactID, _ := cmd.Flags().GetInt64("contact")
			productID, _ := cmd.Flags().GetInt64("product")
			category, _ := cmd.Flags().GetString("category")
			accountID, _ := cmd.Flags().GetInt64("cost-center")

			rule := &model.AutoAnalyticalRule{
				Name:                 name,
				IsActive:             true,
				Priority:             priority,
				TransactionType:      model.DocType(docType),
				MatchProductCategory: category,
				AssignAccountID:      accountID,
			}
			if contactID > 0 {
				rule.MatchContactID = &contactID
			}
			if productID > 0 {
				rule.MatchProductID = &productID
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				if err := store.CreateRule(cmd.Context(), rule); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %q (ID %d)", rule.Name, rule.ID)))
				return nil
			})
		},
	}

	cmd.Flags().String("name", "", "rule name")
	cmd.Flags().String("type", "", "document type the rule applies to")
	cmd.Flags().Int("priority", 10, "rule priority (lower wins)")
	cmd.Flags().Int64("contact", 0, "match documents for this contact ID")
	cmd.Flags().Int64("product", 0, "match lines with this product ID")
	cmd.Flags().String("category", "", "match lines whose product has this category")
	cmd.Flags().Int64("cost-center", 0, "cost center ID to assign")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("cost-center")

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all auto-assignment rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd.Context(), func(store service.Storage) error {
				rules, err := store.ListRules(cmd.Context())
				if err != nil {
					return err
				}
				if len(rules) == 0 {
					fmt.Println(cli.FormatInfo("No rules defined"))
					return nil
				}
				for i := range rules {
					r := &rules[i]
					status := "active"
					if !r.IsActive {
						status = "inactive"
					}
					filters := ""
					if r.MatchContactID != nil {
						filters += fmt.Sprintf(" contact=%d", *r.MatchContactID)
					}
					if r.MatchProductID != nil {
						filters += fmt.Sprintf(" product=%d", *r.MatchProductID)
					}
					if r.MatchProductCategory != "" {
						filters += " category=" + r.MatchProductCategory
					}
					if filters == "" {
						filters = " (fallback)"
					}
					fmt.Printf("[%d] prio %-3d %-8s %-18s %s ->account %d%s\n",
						r.ID, r.Priority, status, r.TransactionType, r.Name, r.AssignAccountID, filters)
				}
				return nil
			})
		},
	}
}
