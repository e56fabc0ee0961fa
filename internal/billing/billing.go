package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the payment state of an invoice, derived from its allocations.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "draft"
	StatusPartial InvoiceStatus = "partial"
	StatusPaid    InvoiceStatus = "paid"
)

// Valid reports whether s is one of the known invoice statuses.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPartial, StatusPaid:
		return true
	}

	return false
}

// ExcessHandling records what happens to the part of a payment that exceeds the amount owed.
type ExcessHandling string

const (
	ExcessNone     ExcessHandling = "none"
	ExcessPending  ExcessHandling = "pending"
	ExcessRefunded ExcessHandling = "refunded"
	ExcessCredited ExcessHandling = "credited"
)

// PaymentMethod is how a payment was received.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCheque       PaymentMethod = "cheque"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCard, MethodMobileMoney, MethodCheque, MethodOther:
		return true
	}

	return false
}

// Invoice is a billable document. PaidAmount, BalanceDue and Status are derived
// from the payment allocations that reference it.
type Invoice struct {
	ID          int64
	CompanyID   int64
	CustomerID  int64
	Number      string
	Status      InvoiceStatus
	IssueDate   time.Time
	DueDate     *time.Time
	Notes       string
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	BalanceDue  decimal.Decimal
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []InvoiceItem // Loaded on demand
}

// InvoiceItem is one line of an invoice. It is never updated after creation.
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	LineNo      int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxAmount   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Payment is a cash receipt event against one invoice.
type Payment struct {
	ID        int64
	CompanyID int64
	InvoiceID int64
	Number    string
	Amount    decimal.Decimal
	Method    PaymentMethod
	Reference string
	PaidAt    time.Time
	CreatedBy string
	CreatedAt time.Time
}

// Allocation links a payment to the invoice it pays down.
type Allocation struct {
	ID        int64
	PaymentID int64
	InvoiceID int64
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Receipt is the proof-of-payment snapshot issued for a payment.
type Receipt struct {
	ID             int64
	CompanyID      int64
	PaymentID      int64
	InvoiceID      *int64
	Number         string
	TotalAmount    decimal.Decimal
	ExcessAmount   decimal.Decimal
	ExcessHandling ExcessHandling
	CreatedBy      string
	CreatedAt      time.Time
	Items          []ReceiptItem // Loaded on demand
}

// ReceiptItem is a frozen copy of an invoice item taken when the receipt was issued.
type ReceiptItem struct {
	ID          int64
	ReceiptID   int64
	LineNo      int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// AuditAction names an event written to the payment audit log.
type AuditAction string

const (
	AuditPaymentCreated AuditAction = "payment_created"
)

// AuditEntry is one row of the payment audit log.
type AuditEntry struct {
	PaymentID int64
	Action    AuditAction
	Actor     string
	Amount    decimal.Decimal
	At        time.Time
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	CompanyID *int64
	Status    *InvoiceStatus
}
