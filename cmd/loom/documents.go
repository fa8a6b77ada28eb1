package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerloom/ledgerloom/internal/cli"
	"github.com/ledgerloom/ledgerloom/internal/ledger"
	"github.com/ledgerloom/ledgerloom/internal/model"
	"github.com/ledgerloom/ledgerloom/internal/money"
	"github.com/ledgerloom/ledgerloom/internal/service"
)

func documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs", "doc"},
		Short:   "Manage orders, bills and invoices",
	}

	cmd.AddCommand(documentsCreateCmd())
	cmd.AddCommand(documentsAddLineCmd())
	cmd.AddCommand(documentsListCmd())
	cmd.AddCommand(documentsShowCmd())
	cmd.AddCommand(documentsConfirmCmd())
	cmd.AddCommand(documentsPostCmd())
	cmd.AddCommand(documentsPayCmd())

	return cmd
}

func documentsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new draft document",
		Long: `Create a draft document of the given type (po, so, vendor_bill,
customer_invoice) for a contact. The contact is created when the name
is unknown. A document number is generated automatically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docType, _ := cmd.Flags().GetString("type")
			contactName, _ := cmd.Flags().GetString("contact")
			issue, _ := cmd.Flags().GetString("issue-date")
			due, _ := cmd.Flags().GetString("due-date")

			if contactName == "" {
				return fmt.Errorf("--contact is required")
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				ctx := cmd.Context()

				dt := model.DocType(docType)
				contactType := model.ContactCustomer
				if dt == model.DocTypePurchaseOrder || dt == model.DocTypeVendorBill {
					contactType = model.ContactVendor
				}
				contact, err := store.FindOrCreateContact(ctx, contactName, contactType)
				if err != nil {
					return err
				}

				doc := &model.Document{DocType: dt, ContactID: contact.ID}
				if issue != "" {
					if doc.IssueDate, err = time.Parse("2006-01-02", issue); err != nil {
						return fmt.Errorf("invalid issue date: %w", err)
					}
				}
				if due != "" {
					d, err := time.Parse("2006-01-02", due)
					if err != nil {
						return fmt.Errorf("invalid due date: %w", err)
					}
					doc.DueDate = &d
				}

				if err := ledger.New(store).CreateDocument(ctx, doc); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created %s %s (ID %d)", doc.DocType, doc.Number, doc.ID)))
				return nil
			})
		},
	}

	cmd.Flags().String("type", "vendor_bill", "document type (po, so, vendor_bill, customer_invoice)")
	cmd.Flags().String("contact", "", "contact name")
	cmd.Flags().String("issue-date", "", "issue date (YYYY-MM-DD, default today)")
	cmd.Flags().String("due-date", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("contact")

	return cmd
}

func documentsAddLineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-line <document-id>",
		Short: "Add a line to a draft or confirmed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := parseID(args[0], "document")
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			qtyStr, _ := cmd.Flags().GetString("qty")
			priceStr, _ := cmd.Flags().GetString("price")
			productID, _ := cmd.Flags().GetInt64("product")
			accountID, _ := cmd.Flags().GetInt64("cost-center")

			qty, err := money.Parse(qtyStr)
			if err != nil {
				return err
			}
			price, err := money.Parse(priceStr)
			if err != nil {
				return err
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				line := &model.DocumentLine{
					DocumentID:  docID,
					Description: description,
					Quantity:    qty,
					UnitPrice:   price,
				}
				if productID > 0 {
					line.ProductID = &productID
				}
				if accountID > 0 {
					line.AnalyticAccountID = &accountID
				}
				if err := ledger.New(store).AddLine(cmd.Context(), line); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added line %d (total %s)", line.ID, line.LineTotal.StringFixed(2))))
				return nil
			})
		},
	}

	cmd.Flags().String("description", "", "line description")
	cmd.Flags().String("qty", "1", "quantity")
	cmd.Flags().String("price", "0.00", "unit price")
	cmd.Flags().Int64("product", 0, "product ID")
	cmd.Flags().Int64("cost-center", 0, "analytical account ID")

	return cmd
}

func documentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			docType, _ := cmd.Flags().GetString("type")
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			return withStorage(cmd.Context(), func(store service.Storage) error {
				filter := service.DocumentFilter{Limit: limit}
				if docType != "" {
					dt := model.DocType(docType)
					filter.DocType = &dt
				}
				if status != "" {
					st := model.DocStatus(status)
					filter.Status = &st
				}

				docs, err := store.ListDocuments(cmd.Context(), filter)
				if err != nil {
					return err
				}
				fmt.Print(cli.RenderDocumentList(docs))
				return nil
			})
		},
	}

	cmd.Flags().String("type", "", "filter by document type")
	cmd.Flags().String("status", "", "filter by status")
	cmd.Flags().Int("limit", 50, "maximum documents to list")

	return cmd
}

func documentsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <number>",
		Short: "Show a document with its lines and payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd.Context(), func(store service.Storage) error {
				ctx := cmd.Context()
				doc, err := store.GetDocumentByNumber(ctx, args[0])
				if err != nil {
					return err
				}
				lines, err := store.LinesForDocument(ctx, doc.ID)
				if err != nil {
					return err
				}
				payments, err := store.PaymentsForDocument(ctx, doc.ID)
				if err != nil {
					return err
				}
				fmt.Print(cli.RenderDocument(doc, lines, payments))
				return nil
			})
		},
	}
}

func documentsConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <document-id>",
		Short: "Confirm a draft document",
		Long: `Confirm a draft document. Auto-analytic rules run first; the
document is then required to have a cost center on every line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := parseID(args[0], "document")
			if err != nil {
				return err
			}
			return withStorage(cmd.Context(), func(store service.Storage) error {
				result, err := ledger.New(store).Confirm(cmd.Context(), docID)
				if err != nil {
					return err
				}
				msg := "Document confirmed"
				if result.UpdatedLines > 0 {
					msg = fmt.Sprintf("Document confirmed (%d line(s) auto-assigned)", result.UpdatedLines)
				}
				fmt.Println(cli.FormatSuccess(msg))
				return nil
			})
		},
	}
}

func documentsPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <document-id>",
		Short: "Post a bill or invoice to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := parseID(args[0], "document")
			if err != nil {
				return err
			}
			return withStorage(cmd.Context(), func(store service.Storage) error {
				result, err := ledger.New(store).Post(cmd.Context(), docID, time.Now())
				if err != nil {
					return err
				}
				msg := "Document posted"
				if result.UpdatedLines > 0 {
					msg = fmt.Sprintf("Document posted (%d line(s) auto-assigned)", result.UpdatedLines)
				}
				fmt.Println(cli.FormatSuccess(msg))
				return nil
			})
		},
	}
}

func documentsPayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay <number>",
		Short: "Record a payment against an invoice by number",
		Long: `Record a posted payment against a customer invoice, identified by
its document number. The amount may not exceed the remaining balance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amountStr, _ := cmd.Flags().GetString("amount")
			method, _ := cmd.Flags().GetString("method")

			amount, err := money.Parse(amountStr)
			if err != nil {
				return err
			}

			return withStorage(cmd.Context(), func(store service.Storage) error {
				l := ledger.New(store)
				err := l.RecordCustomerPayment(cmd.Context(), args[0], amount, model.PaymentMethod(method), time.Now())
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded payment of %s against %s", amount.StringFixed(2), args[0])))
				return nil
			})
		},
	}

	cmd.Flags().String("amount", "", "payment amount")
	cmd.Flags().String("method", "bank", "payment method (cash, bank, online)")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
