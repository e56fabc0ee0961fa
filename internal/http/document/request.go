package document

import (
	"encoding/json"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

// decode rejects unknown fields, so identifiers cannot be supplied by the caller.
func decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	return dec.Decode(v)
}

type paymentRequest struct {
	Amount    *decimal.Decimal      `json:"amount"`
	Method    billing.PaymentMethod `json:"method"`
	Reference string                `json:"reference"`
	Number    string                `json:"number"`
	PaidAt    time.Time             `json:"paid_at"`
}

type invoiceRequest struct {
	Number      string           `json:"number"`
	IssueDate   time.Time        `json:"issue_date"`
	DueDate     *time.Time       `json:"due_date"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	Notes       string           `json:"notes"`
}

type itemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

type createDocumentRequest struct {
	CompanyID  int64          `json:"company_id"`
	CustomerID int64          `json:"customer_id"`
	Payment    paymentRequest `json:"payment"`
	Invoice    invoiceRequest `json:"invoice"`
	Items      []itemRequest  `json:"items"`
}

func (p paymentRequest) toInput() billing.PaymentInput {
	return billing.PaymentInput{
		Amount:    p.Amount,
		Method:    p.Method,
		Reference: p.Reference,
		Number:    p.Number,
		PaidAt:    p.PaidAt,
	}
}

func (req createDocumentRequest) toCreateRequest() billing.CreateRequest {
	items := make([]billing.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = billing.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxAmount:   it.TaxAmount,
		}
	}

	return billing.CreateRequest{
		CompanyID:  req.CompanyID,
		CustomerID: req.CustomerID,
		Payment:    req.Payment.toInput(),
		Invoice: billing.InvoiceInput{
			Number:      req.Invoice.Number,
			IssueDate:   req.Invoice.IssueDate,
			DueDate:     req.Invoice.DueDate,
			TotalAmount: req.Invoice.TotalAmount,
			Notes:       req.Invoice.Notes,
		},
		Items: items,
	}
}
