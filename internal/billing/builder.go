package billing

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentInput describes the payment received together with a document.
type PaymentInput struct {
	Amount    *decimal.Decimal // Required, non-negative
	Method    PaymentMethod    // Defaults to cash
	Reference string
	Number    string // Allocated when empty
	PaidAt    time.Time
}

// InvoiceInput carries the invoice header fields supplied by the caller.
type InvoiceInput struct {
	Number      string // Allocated when empty
	IssueDate   time.Time
	DueDate     *time.Time
	TotalAmount *decimal.Decimal // Used only when no items are supplied
	Notes       string
}

// ItemInput is one invoice line. Amounts carry at most four decimal places.
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxAmount   decimal.Decimal
}

// moneyScale is the number of decimal places stored for every amount.
const moneyScale = 4

func tooPrecise(d decimal.Decimal) bool {
	return !d.Equal(d.Round(moneyScale))
}

const tooPreciseMsg = "must have at most 4 decimal places"

// CreateRequest is the input of CreateDocumentGraph.
type CreateRequest struct {
	CompanyID  int64
	CustomerID int64
	Payment    PaymentInput
	Invoice    InvoiceInput
	Items      []ItemInput
}

// Validate checks every field and joins all failures into one error.
func (r CreateRequest) Validate() error {
	var errs []error

	if r.CompanyID <= 0 {
		errs = append(errs, &ValidationError{Field: "company_id", Message: "is required"})
	}

	if r.CustomerID <= 0 {
		errs = append(errs, &ValidationError{Field: "customer_id", Message: "is required"})
	}

	errs = append(errs, r.Payment.validate())

	if t := r.Invoice.TotalAmount; t != nil {
		switch {
		case t.IsNegative():
			errs = append(errs, &ValidationError{Field: "invoice.total_amount", Message: "must not be negative"})
		case tooPrecise(*t):
			errs = append(errs, &ValidationError{Field: "invoice.total_amount", Message: tooPreciseMsg})
		}
	}

	if r.Invoice.DueDate != nil && !r.Invoice.IssueDate.IsZero() && r.Invoice.DueDate.Before(r.Invoice.IssueDate) {
		errs = append(errs, &ValidationError{Field: "invoice.due_date", Message: "must not be before issue_date"})
	}

	for i, it := range r.Items {
		errs = append(errs, it.validate(i))
	}

	return errors.Join(errs...)
}

func (p PaymentInput) validate() error {
	var errs []error

	switch {
	case p.Amount == nil:
		errs = append(errs, &ValidationError{Field: "payment.amount", Message: "is required"})
	case p.Amount.IsNegative():
		errs = append(errs, &ValidationError{Field: "payment.amount", Message: "must not be negative"})
	case tooPrecise(*p.Amount):
		errs = append(errs, &ValidationError{Field: "payment.amount", Message: tooPreciseMsg})
	}

	if p.Method != "" && !p.Method.Valid() {
		errs = append(errs, &ValidationError{Field: "payment.method", Message: "unknown method " + string(p.Method)})
	}

	return errors.Join(errs...)
}

func (it ItemInput) validate(idx int) error {
	field := func(name string) string {
		return "items[" + strconv.Itoa(idx) + "]." + name
	}

	var errs []error

	if strings.TrimSpace(it.Description) == "" {
		errs = append(errs, &ValidationError{Field: field("description"), Message: "is required"})
	}

	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"quantity", it.Quantity},
		{"unit_price", it.UnitPrice},
		{"tax_amount", it.TaxAmount},
	}

	for _, a := range amounts {
		switch {
		case a.value.IsNegative():
			errs = append(errs, &ValidationError{Field: field(a.name), Message: "must not be negative"})
		case tooPrecise(a.value):
			errs = append(errs, &ValidationError{Field: field(a.name), Message: tooPreciseMsg})
		}
	}

	return errors.Join(errs...)
}

// Numbers are the document numbers assigned to a graph.
type Numbers struct {
	Invoice string
	Payment string
	Receipt string
}

// Settlement is a payment together with the allocation and receipt it produces.
type Settlement struct {
	Payment    Payment
	Allocation Allocation
	Receipt    Receipt
}

// Graph is the full set of rows created by CreateDocumentGraph.
type Graph struct {
	Invoice Invoice
	Settlement
}

// BuildGraph assembles an invoice with its items, payment, allocation and
// receipt. It performs no I/O.
func BuildGraph(req CreateRequest, numbers Numbers, actor string, now time.Time) (*Graph, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	issued := req.Invoice.IssueDate
	if issued.IsZero() {
		issued = now
	}

	inv := Invoice{
		CompanyID:  req.CompanyID,
		CustomerID: req.CustomerID,
		Number:     numbers.Invoice,
		IssueDate:  issued,
		DueDate:    req.Invoice.DueDate,
		Notes:      req.Invoice.Notes,
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items:      buildItems(req.Items),
	}

	inv.Subtotal, inv.TaxAmount, inv.TotalAmount = sumItems(inv.Items)
	if len(inv.Items) == 0 && req.Invoice.TotalAmount != nil {
		inv.Subtotal = *req.Invoice.TotalAmount
		inv.TotalAmount = *req.Invoice.TotalAmount
	}

	// A fresh invoice owes its full total.
	inv.BalanceDue = inv.TotalAmount

	settlement := BuildSettlement(&inv, req.Payment, numbers, actor, now)

	Recompute(inv.TotalAmount, []decimal.Decimal{settlement.Allocation.Amount}).Apply(&inv)

	return &Graph{Invoice: inv, Settlement: *settlement}, nil
}

// BuildSettlement derives the payment, allocation and receipt for a payment
// applied to inv. The allocation is capped at the invoice's outstanding
// balance; the remainder becomes the receipt's excess amount.
func BuildSettlement(inv *Invoice, in PaymentInput, numbers Numbers, actor string, now time.Time) *Settlement {
	amount := decimal.Zero
	if in.Amount != nil {
		amount = *in.Amount
	}

	method := in.Method
	if method == "" {
		method = MethodCash
	}

	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	allocated := decimal.Min(amount, inv.BalanceDue)
	if allocated.IsNegative() {
		allocated = decimal.Zero
	}

	excess := amount.Sub(allocated)

	handling := ExcessNone
	if excess.IsPositive() {
		handling = ExcessPending
	}

	invoiceID := inv.ID

	return &Settlement{
		Payment: Payment{
			CompanyID: inv.CompanyID,
			InvoiceID: inv.ID,
			Number:    numbers.Payment,
			Amount:    amount,
			Method:    method,
			Reference: in.Reference,
			PaidAt:    paidAt,
			CreatedBy: actor,
			CreatedAt: now,
		},
		Allocation: Allocation{
			InvoiceID: inv.ID,
			Amount:    allocated,
			CreatedAt: now,
		},
		Receipt: Receipt{
			CompanyID:      inv.CompanyID,
			InvoiceID:      &invoiceID,
			Number:         numbers.Receipt,
			TotalAmount:    amount,
			ExcessAmount:   excess,
			ExcessHandling: handling,
			CreatedBy:      actor,
			CreatedAt:      now,
			Items:          snapshotItems(inv.Items),
		},
	}
}

func buildItems(in []ItemInput) []InvoiceItem {
	items := make([]InvoiceItem, 0, len(in))
	for i, it := range in {
		items = append(items, InvoiceItem{
			LineNo:      i + 1,
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxAmount:   it.TaxAmount,
			LineTotal:   lineNet(it.Quantity, it.UnitPrice).Add(it.TaxAmount),
		})
	}

	return items
}

func sumItems(items []InvoiceItem) (subtotal, tax, total decimal.Decimal) {
	for _, it := range items {
		subtotal = subtotal.Add(lineNet(it.Quantity, it.UnitPrice))
		tax = tax.Add(it.TaxAmount)
		total = total.Add(it.LineTotal)
	}

	return subtotal, tax, total
}

// lineNet is quantity times unit price at the stored scale, so the header
// totals equal the sum of the persisted lines.
func lineNet(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Round(moneyScale)
}

func snapshotItems(items []InvoiceItem) []ReceiptItem {
	out := make([]ReceiptItem, 0, len(items))
	for _, it := range items {
		out = append(out, ReceiptItem{
			LineNo:      it.LineNo,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}

	return out
}

// bindInvoice points the settlement at the persisted invoice id.
func (s *Settlement) bindInvoice(invoiceID int64) {
	s.Payment.InvoiceID = invoiceID
	s.Allocation.InvoiceID = invoiceID
	s.Receipt.InvoiceID = &invoiceID
}
