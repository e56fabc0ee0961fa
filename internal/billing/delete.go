package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DeleteInvoiceResult reports what an invoice cascade removed.
type DeleteInvoiceResult struct {
	InvoiceID           int64
	DeletedPaymentCount int64
	Deleted             map[StepKind]int64
}

// DeleteReceiptResult reports a receipt cascade. Balance is the new balance of
// the receipt's own invoice and is nil when the receipt had none. Balances
// holds every invoice that was recomputed.
type DeleteReceiptResult struct {
	ReceiptID      int64
	PaymentID      int64
	InvoiceID      *int64
	AmountReversed decimal.Decimal
	Balance        *Balance
	Balances       map[int64]Balance
	Deleted        map[StepKind]int64
}

// DeleteInvoiceCascade removes an invoice together with its payments,
// allocations, receipts, audit rows, credit-note allocations, stock movements
// and line items. Nothing is removed if any step fails.
func (s *Service) DeleteInvoiceCascade(ctx context.Context, invoiceID int64) (*DeleteInvoiceResult, error) {
	if invoiceID <= 0 {
		return nil, &ValidationError{Field: "invoice_id", Message: "is required"}
	}

	actor, err := s.authorize(ctx, ActionDeleteInvoice)
	if err != nil {
		return nil, err
	}

	var deleted map[StepKind]int64

	err = s.atomically(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := uow.LockInvoice(ctx, invoiceID); err != nil {
			return err
		}

		var err error
		deleted, _, err = s.execute(ctx, uow, PlanInvoiceDeletion(invoiceID))

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("deleting invoice %d: %w", invoiceID, err)
	}

	s.logger.Info("invoice deleted",
		"invoice_id", invoiceID,
		"payments", deleted[StepDeleteInvoicePayments],
		"receipts", deleted[StepDeleteInvoiceReceipts],
		"actor", actor.ID,
	)

	return &DeleteInvoiceResult{
		InvoiceID:           invoiceID,
		DeletedPaymentCount: deleted[StepDeleteInvoicePayments],
		Deleted:             deleted,
	}, nil
}

// DeleteReceiptCascade removes a receipt and reverses the payment behind it.
// The parent invoice survives with its paid amount, balance and status
// recomputed from the allocations that remain.
func (s *Service) DeleteReceiptCascade(ctx context.Context, receiptID int64) (*DeleteReceiptResult, error) {
	if receiptID <= 0 {
		return nil, &ValidationError{Field: "receipt_id", Message: "is required"}
	}

	actor, err := s.authorize(ctx, ActionDeleteReceipt)
	if err != nil {
		return nil, err
	}

	res := &DeleteReceiptResult{ReceiptID: receiptID}

	err = s.atomically(ctx, func(ctx context.Context, uow UnitOfWork) error {
		rct, err := uow.GetReceipt(ctx, receiptID)
		if err != nil {
			return err
		}

		allocs, err := uow.PaymentAllocations(ctx, rct.PaymentID)
		if err != nil {
			return err
		}

		// Invoices before the receipt, ascending, the same order an invoice
		// cascade takes.
		for _, id := range AffectedInvoices(rct, allocs) {
			if _, err := uow.LockInvoice(ctx, id); err != nil {
				return err
			}
		}

		if rct, err = uow.LockReceipt(ctx, receiptID); err != nil {
			return err
		}

		res.PaymentID = rct.PaymentID
		res.InvoiceID = rct.InvoiceID
		res.AmountReversed = decimal.Zero

		for _, a := range allocs {
			res.AmountReversed = res.AmountReversed.Add(a.Amount)
		}

		res.Deleted, res.Balances, err = s.execute(ctx, uow, PlanReceiptDeletion(rct, allocs))
		if err != nil {
			return err
		}

		if rct.InvoiceID != nil {
			if b, ok := res.Balances[*rct.InvoiceID]; ok {
				res.Balance = &b
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deleting receipt %d: %w", receiptID, err)
	}

	s.logger.Info("receipt deleted",
		"receipt_id", receiptID,
		"payment_id", res.PaymentID,
		"amount_reversed", res.AmountReversed.String(),
		"actor", actor.ID,
	)

	return res, nil
}

// execute runs the plan's steps in order inside uow and returns the rows
// removed per step and the balance of every recomputed invoice. The first
// failing step aborts the plan and is reported as a *StepError.
func (s *Service) execute(ctx context.Context, uow UnitOfWork, plan Plan) (map[StepKind]int64, map[int64]Balance, error) {
	deleted := make(map[StepKind]int64, len(plan.Steps))
	balances := make(map[int64]Balance)

	for _, step := range plan.Steps {
		if !step.IsDelete() {
			b, err := s.recomputeInvoice(ctx, uow, step.TargetID)
			if err != nil {
				return nil, nil, &StepError{Plan: plan.Kind, Step: step.Kind, Err: err}
			}

			balances[step.TargetID] = b

			continue
		}

		n, err := uow.ExecStep(ctx, step)
		if err != nil {
			return nil, nil, &StepError{Plan: plan.Kind, Step: step.Kind, Err: err}
		}

		deleted[step.Kind] = n
	}

	return deleted, balances, nil
}
