package store

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

// paymentsOfInvoice selects the payments recorded against invoice $1.
const paymentsOfInvoice = `SELECT id FROM payments WHERE invoice_id = $1`

// paymentsLinkedToInvoice adds the payments tied to invoice $1 only through
// an allocation.
const paymentsLinkedToInvoice = paymentsOfInvoice + ` UNION SELECT payment_id FROM payment_allocations WHERE invoice_id = $1`

// stepStatements maps each delete step to its statement. Every statement takes
// the step's target id as its only argument.
var stepStatements = map[billing.StepKind]string{
	billing.StepDeleteInvoicePaymentAudit: `
		DELETE FROM payment_audit_log WHERE payment_id IN (` + paymentsLinkedToInvoice + `)`,
	billing.StepDeleteInvoiceReceiptItems: `
		DELETE FROM receipt_items WHERE receipt_id IN (
			SELECT id FROM receipts WHERE invoice_id = $1 OR payment_id IN (` + paymentsLinkedToInvoice + `)
		)`,
	billing.StepDeleteInvoiceReceipts: `
		DELETE FROM receipts WHERE invoice_id = $1 OR payment_id IN (` + paymentsLinkedToInvoice + `)`,
	billing.StepDeleteInvoiceAllocations: `
		DELETE FROM payment_allocations WHERE invoice_id = $1 OR payment_id IN (` + paymentsOfInvoice + `)`,
	billing.StepDeleteInvoicePayments:       `DELETE FROM payments WHERE invoice_id = $1`,
	billing.StepDeleteCreditNoteAllocations: `DELETE FROM credit_note_allocations WHERE invoice_id = $1`,
	billing.StepDeleteStockMovements:        `DELETE FROM stock_movements WHERE reference_type = 'invoice' AND reference_id = $1`,
	billing.StepDeleteInvoiceItems:          `DELETE FROM invoice_items WHERE invoice_id = $1`,
	billing.StepDeleteInvoice:               `DELETE FROM invoices WHERE id = $1`,

	billing.StepDeleteReceiptItems:       `DELETE FROM receipt_items WHERE receipt_id = $1`,
	billing.StepDeletePaymentAudit:       `DELETE FROM payment_audit_log WHERE payment_id = $1`,
	billing.StepDeletePaymentAllocations: `DELETE FROM payment_allocations WHERE payment_id = $1`,
	billing.StepDeletePayment:            `DELETE FROM payments WHERE id = $1`,
	billing.StepDeleteReceipt:            `DELETE FROM receipts WHERE id = $1`,
}

// ExecStep runs one delete step and returns the number of rows it removed.
func (q queries) ExecStep(ctx context.Context, step billing.Step) (int64, error) {
	stmt, ok := stepStatements[step.Kind]
	if !ok {
		return 0, fmt.Errorf("%w: no statement for step %s", billing.ErrStoreFailure, step.Kind)
	}

	res, err := q.q.ExecContext(ctx, stmt, step.TargetID)
	if err != nil {
		return 0, classify(string(step.Kind), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(string(step.Kind), err)
	}

	return n, nil
}
