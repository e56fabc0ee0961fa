package document

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type itemResponse struct {
	LineNo      int    `json:"line_no"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxAmount   string `json:"tax_amount,omitempty"`
	LineTotal   string `json:"line_total"`
}

type invoiceResponse struct {
	ID          int64                 `json:"id"`
	CompanyID   int64                 `json:"company_id"`
	CustomerID  int64                 `json:"customer_id"`
	Number      string                `json:"invoice_number"`
	Status      billing.InvoiceStatus `json:"status"`
	IssueDate   time.Time             `json:"issue_date"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
	Notes       string                `json:"notes,omitempty"`
	Subtotal    string                `json:"subtotal"`
	TaxAmount   string                `json:"tax_amount"`
	TotalAmount string                `json:"total_amount"`
	PaidAmount  string                `json:"paid_amount"`
	BalanceDue  string                `json:"balance_due"`
	CreatedBy   string                `json:"created_by"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Items       []itemResponse        `json:"items,omitempty"`
}

type paymentResponse struct {
	ID        int64                 `json:"id"`
	InvoiceID int64                 `json:"invoice_id"`
	Number    string                `json:"payment_number"`
	Amount    string                `json:"amount"`
	Method    billing.PaymentMethod `json:"method"`
	Reference string                `json:"reference,omitempty"`
	PaidAt    time.Time             `json:"paid_at"`
}

type receiptResponse struct {
	ID             int64                  `json:"id"`
	PaymentID      int64                  `json:"payment_id"`
	InvoiceID      *int64                 `json:"invoice_id,omitempty"`
	Number         string                 `json:"receipt_number"`
	TotalAmount    string                 `json:"total_amount"`
	ExcessAmount   string                 `json:"excess_amount"`
	ExcessHandling billing.ExcessHandling `json:"excess_handling"`
	CreatedBy      string                 `json:"created_by"`
	CreatedAt      time.Time              `json:"created_at"`
	Items          []itemResponse         `json:"items,omitempty"`
}

type createResponse struct {
	InvoiceID    int64            `json:"invoice_id"`
	PaymentID    int64            `json:"payment_id"`
	AllocationID int64            `json:"allocation_id"`
	ReceiptID    int64            `json:"receipt_id"`
	ExcessAmount string           `json:"excess_amount"`
	Invoice      *invoiceResponse `json:"invoice,omitempty"`
	Payment      *paymentResponse `json:"payment,omitempty"`
	Receipt      *receiptResponse `json:"receipt,omitempty"`
}

type balanceResponse struct {
	PaidAmount string                `json:"paid_amount"`
	BalanceDue string                `json:"balance_due"`
	Status     billing.InvoiceStatus `json:"status"`
}

type deleteInvoiceResponse struct {
	InvoiceID           int64                      `json:"invoice_id"`
	DeletedPaymentCount int64                      `json:"deleted_payment_count"`
	Deleted             map[billing.StepKind]int64 `json:"deleted"`
}

type deleteReceiptResponse struct {
	ReceiptID      int64                      `json:"receipt_id"`
	PaymentID      int64                      `json:"payment_id"`
	InvoiceID      *int64                     `json:"invoice_id,omitempty"`
	AmountReversed string                     `json:"amount_reversed"`
	Balance        *balanceResponse           `json:"balance,omitempty"`
	Deleted        map[billing.StepKind]int64 `json:"deleted"`
}

func toInvoiceResponse(inv *billing.Invoice) *invoiceResponse {
	if inv == nil {
		return nil
	}

	resp := &invoiceResponse{
		ID:          inv.ID,
		CompanyID:   inv.CompanyID,
		CustomerID:  inv.CustomerID,
		Number:      inv.Number,
		Status:      inv.Status,
		IssueDate:   inv.IssueDate,
		DueDate:     inv.DueDate,
		Notes:       inv.Notes,
		Subtotal:    money(inv.Subtotal),
		TaxAmount:   money(inv.TaxAmount),
		TotalAmount: money(inv.TotalAmount),
		PaidAmount:  money(inv.PaidAmount),
		BalanceDue:  money(inv.BalanceDue),
		CreatedBy:   inv.CreatedBy,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}

	for _, it := range inv.Items {
		resp.Items = append(resp.Items, itemResponse{
			LineNo:      it.LineNo,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   money(it.UnitPrice),
			TaxAmount:   money(it.TaxAmount),
			LineTotal:   money(it.LineTotal),
		})
	}

	return resp
}

func toInvoiceResponseList(invs []*billing.Invoice) []*invoiceResponse {
	resp := make([]*invoiceResponse, len(invs))
	for i, inv := range invs {
		resp[i] = toInvoiceResponse(inv)
	}

	return resp
}

func toPaymentResponse(p *billing.Payment) *paymentResponse {
	if p == nil {
		return nil
	}

	return &paymentResponse{
		ID:        p.ID,
		InvoiceID: p.InvoiceID,
		Number:    p.Number,
		Amount:    money(p.Amount),
		Method:    p.Method,
		Reference: p.Reference,
		PaidAt:    p.PaidAt,
	}
}

func toReceiptResponse(r *billing.Receipt) *receiptResponse {
	if r == nil {
		return nil
	}

	resp := &receiptResponse{
		ID:             r.ID,
		PaymentID:      r.PaymentID,
		InvoiceID:      r.InvoiceID,
		Number:         r.Number,
		TotalAmount:    money(r.TotalAmount),
		ExcessAmount:   money(r.ExcessAmount),
		ExcessHandling: r.ExcessHandling,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
	}

	for _, it := range r.Items {
		resp.Items = append(resp.Items, itemResponse{
			LineNo:      it.LineNo,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   money(it.UnitPrice),
			LineTotal:   money(it.LineTotal),
		})
	}

	return resp
}

func toReceiptResponseList(rs []*billing.Receipt) []*receiptResponse {
	resp := make([]*receiptResponse, len(rs))
	for i, r := range rs {
		resp[i] = toReceiptResponse(r)
	}

	return resp
}

func toCreateResponse(res *billing.CreateResult) createResponse {
	return createResponse{
		InvoiceID:    res.InvoiceID,
		PaymentID:    res.PaymentID,
		AllocationID: res.AllocationID,
		ReceiptID:    res.ReceiptID,
		ExcessAmount: money(res.ExcessAmount),
		Invoice:      toInvoiceResponse(res.Invoice),
		Payment:      toPaymentResponse(res.Payment),
		Receipt:      toReceiptResponse(res.Receipt),
	}
}

func toDeleteReceiptResponse(res *billing.DeleteReceiptResult) deleteReceiptResponse {
	resp := deleteReceiptResponse{
		ReceiptID:      res.ReceiptID,
		PaymentID:      res.PaymentID,
		InvoiceID:      res.InvoiceID,
		AmountReversed: money(res.AmountReversed),
		Deleted:        res.Deleted,
	}

	if res.Balance != nil {
		resp.Balance = &balanceResponse{
			PaidAmount: money(res.Balance.PaidAmount),
			BalanceDue: money(res.Balance.BalanceDue),
			Status:     res.Balance.Status,
		}
	}

	return resp
}
