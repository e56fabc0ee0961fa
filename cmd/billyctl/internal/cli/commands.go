package cli

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/billy/internal/app"
	"github.com/MrJamesThe3rd/billy/internal/auth"
	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/config"
	"github.com/MrJamesThe3rd/billy/internal/database"
)

var errNotConfirmed = errors.New("refusing to delete without --yes")

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			driver, err := cfg.Driver()
			if err != nil {
				return err
			}

			dsn, err := cfg.DSN()
			if err != nil {
				return err
			}

			db, err := database.New(driver, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(cmd.Context(), db, driver)
			if err != nil {
				return err
			}

			if len(applied) == 0 {
				cmd.Println("schema up to date")
				return nil
			}

			for _, v := range applied {
				cmd.Println("applied", v)
			}

			return nil
		},
	}
}

func newAllocateCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "allocate <document-type>",
		Short: "Allocate the next number for a document type",
		Example: `  billyctl allocate invoice
  billyctl allocate CN --year 2025`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType, err := billing.ParseDocumentType(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				number, err := a.Billing.AllocateNumber(ctx, docType, year)
				if err != nil {
					return err
				}

				cmd.Println(number)

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "sequence year (defaults to the current year)")

	return cmd
}

func newShowInvoiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-invoice <id>",
		Short: "Print an invoice with its balance and receipts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				inv, err := a.Billing.GetInvoice(ctx, id)
				if err != nil {
					return err
				}

				receipts, err := a.Billing.ListReceipts(ctx, id)
				if err != nil {
					return err
				}

				cmd.Printf("%s  %s  status=%s\n", inv.Number, inv.IssueDate.Format(time.DateOnly), inv.Status)
				cmd.Printf("total=%s paid=%s due=%s\n",
					inv.TotalAmount.StringFixed(2), inv.PaidAmount.StringFixed(2), inv.BalanceDue.StringFixed(2))

				for _, r := range receipts {
					cmd.Printf("receipt %s  payment=%d  total=%s  excess=%s (%s)\n",
						r.Number, r.PaymentID, r.TotalAmount.StringFixed(2), r.ExcessAmount.StringFixed(2), r.ExcessHandling)
				}

				return nil
			})
		},
	}
}

func newDeleteInvoiceCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-invoice <id>",
		Short: "Delete an invoice with its payments, receipts and dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if !yes {
				return errNotConfirmed
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Billing.DeleteInvoiceCascade(ctx, id)
				if err != nil {
					return err
				}

				cmd.Printf("deleted invoice %d with %d payment(s)\n", res.InvoiceID, res.DeletedPaymentCount)
				printCounts(cmd, res.Deleted)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")

	return cmd
}

func newDeleteReceiptCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-receipt <id>",
		Short: "Delete a receipt, reverse its payment and recompute the invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if !yes {
				return errNotConfirmed
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Billing.DeleteReceiptCascade(ctx, id)
				if err != nil {
					return err
				}

				cmd.Printf("deleted receipt %d, reversed %s\n", res.ReceiptID, res.AmountReversed.StringFixed(2))

				if res.Balance != nil {
					cmd.Printf("invoice %d now %s, due %s\n", *res.InvoiceID, res.Balance.Status, res.Balance.BalanceDue.StringFixed(2))
				}

				printCounts(cmd, res.Deleted)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")

	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if cfg.Auth.JWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}

			if subject == "" {
				subject = cfg.Operator.ID
			}

			if role == "" {
				role = cfg.Operator.Role
			}

			token, err := auth.NewAuthenticator(cfg.Auth.JWTSecret).Issue(billing.Actor{ID: subject, Role: role}, ttl)
			if err != nil {
				return err
			}

			cmd.Println(token)

			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (defaults to OPERATOR_ID)")
	cmd.Flags().StringVar(&role, "role", "", "token role (defaults to OPERATOR_ROLE)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}

func printCounts(cmd *cobra.Command, deleted map[billing.StepKind]int64) {
	kinds := make([]string, 0, len(deleted))
	for k := range deleted {
		kinds = append(kinds, string(k))
	}

	sort.Strings(kinds)

	for _, k := range kinds {
		cmd.Printf("  %-28s %d\n", k, deleted[billing.StepKind(k)])
	}
}
