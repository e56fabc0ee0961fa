package billing

import "slices"

// PlanKind names a cascade plan.
type PlanKind string

const (
	PlanInvoiceDeletion PlanKind = "invoice_deletion"
	PlanReceiptDeletion PlanKind = "receipt_deletion"
)

// StepKind identifies one statement of a cascade plan.
type StepKind string

const (
	// Invoice deletion.
	StepDeleteInvoicePaymentAudit   StepKind = "delete_invoice_payment_audit_log"
	StepDeleteInvoiceReceiptItems   StepKind = "delete_invoice_receipt_items"
	StepDeleteInvoiceReceipts       StepKind = "delete_invoice_receipts"
	StepDeleteInvoiceAllocations    StepKind = "delete_invoice_payment_allocations"
	StepDeleteInvoicePayments       StepKind = "delete_invoice_payments"
	StepDeleteCreditNoteAllocations StepKind = "delete_credit_note_allocations"
	StepDeleteStockMovements        StepKind = "delete_stock_movements"
	StepDeleteInvoiceItems          StepKind = "delete_invoice_items"
	StepDeleteInvoice               StepKind = "delete_invoice"

	// Receipt deletion.
	StepDeleteReceiptItems       StepKind = "delete_receipt_items"
	StepDeletePaymentAudit       StepKind = "delete_payment_audit_log"
	StepDeletePaymentAllocations StepKind = "delete_payment_allocations"
	StepDeletePayment            StepKind = "delete_payment"
	StepRecomputeInvoice         StepKind = "recompute_invoice"
	StepDeleteReceipt            StepKind = "delete_receipt"
)

// Step is one ordered action of a plan. TargetID is the id the statement
// filters on (invoice, receipt or payment, depending on Kind).
type Step struct {
	Kind     StepKind
	Table    string
	TargetID int64
}

// IsDelete reports whether the step removes rows; the only other kind of step
// is the invoice recompute.
func (s Step) IsDelete() bool {
	return s.Kind != StepRecomputeInvoice
}

// Plan is an ordered list of steps that removes an entity without violating
// referential integrity. Each delete runs before the row it references is removed.
type Plan struct {
	Kind      PlanKind
	InvoiceID int64
	ReceiptID int64
	PaymentID int64
	Steps     []Step
}

// PlanInvoiceDeletion removes an invoice and everything that references it.
// Audit rows go first because they carry no cascading delete of their own.
func PlanInvoiceDeletion(invoiceID int64) Plan {
	step := func(kind StepKind, table string) Step {
		return Step{Kind: kind, Table: table, TargetID: invoiceID}
	}

	return Plan{
		Kind:      PlanInvoiceDeletion,
		InvoiceID: invoiceID,
		Steps: []Step{
			step(StepDeleteInvoicePaymentAudit, "payment_audit_log"),
			step(StepDeleteInvoiceReceiptItems, "receipt_items"),
			step(StepDeleteInvoiceReceipts, "receipts"),
			step(StepDeleteInvoiceAllocations, "payment_allocations"),
			step(StepDeleteInvoicePayments, "payments"),
			step(StepDeleteCreditNoteAllocations, "credit_note_allocations"),
			step(StepDeleteStockMovements, "stock_movements"),
			step(StepDeleteInvoiceItems, "invoice_items"),
			step(StepDeleteInvoice, "invoices"),
		},
	}
}

// PlanReceiptDeletion removes a receipt and reverses its payment while keeping
// the invoices it paid. Every invoice the receipt or the payment's allocations
// point at is recomputed, in ascending id order, before the receipt row is
// deleted so no invoice is left out of step with its allocations.
func PlanReceiptDeletion(r *Receipt, allocations []Allocation) Plan {
	steps := []Step{
		{Kind: StepDeleteReceiptItems, Table: "receipt_items", TargetID: r.ID},
		{Kind: StepDeletePaymentAudit, Table: "payment_audit_log", TargetID: r.PaymentID},
		{Kind: StepDeletePaymentAllocations, Table: "payment_allocations", TargetID: r.PaymentID},
		{Kind: StepDeletePayment, Table: "payments", TargetID: r.PaymentID},
	}

	plan := Plan{
		Kind:      PlanReceiptDeletion,
		ReceiptID: r.ID,
		PaymentID: r.PaymentID,
	}

	if r.InvoiceID != nil {
		plan.InvoiceID = *r.InvoiceID
	}

	for _, id := range AffectedInvoices(r, allocations) {
		steps = append(steps, Step{Kind: StepRecomputeInvoice, Table: "invoices", TargetID: id})
	}

	plan.Steps = append(steps, Step{Kind: StepDeleteReceipt, Table: "receipts", TargetID: r.ID})

	return plan
}

// AffectedInvoices returns the distinct invoices a receipt deletion changes:
// the receipt's own invoice and every invoice its payment is allocated to,
// sorted ascending. Locks are taken in this order.
func AffectedInvoices(r *Receipt, allocations []Allocation) []int64 {
	seen := make(map[int64]bool, len(allocations)+1)

	var ids []int64

	add := func(id int64) {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if r.InvoiceID != nil {
		add(*r.InvoiceID)
	}

	for _, a := range allocations {
		add(a.InvoiceID)
	}

	slices.Sort(ids)

	return ids
}
