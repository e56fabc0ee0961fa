package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/database"
)

const selectReceiptColumns = `
	id, company_id, payment_id, invoice_id, receipt_number, total_amount,
	excess_amount, excess_handling, created_by, created_at
`

func scanReceipt(s scanner) (*billing.Receipt, error) {
	var r billing.Receipt

	var invoiceID sql.NullInt64

	var handling string

	if err := s.Scan(
		&r.ID, &r.CompanyID, &r.PaymentID, &invoiceID, &r.Number, &r.TotalAmount,
		&r.ExcessAmount, &handling, &r.CreatedBy, &r.CreatedAt,
	); err != nil {
		return nil, err
	}

	r.ExcessHandling = billing.ExcessHandling(handling)
	if invoiceID.Valid {
		r.InvoiceID = &invoiceID.Int64
	}

	return &r, nil
}

func (q queries) CreateReceipt(ctx context.Context, r *billing.Receipt) error {
	query := `
		INSERT INTO receipts (
			company_id, payment_id, invoice_id, receipt_number, total_amount,
			excess_amount, excess_handling, created_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var invoiceID sql.NullInt64
	if r.InvoiceID != nil {
		invoiceID = sql.NullInt64{Int64: *r.InvoiceID, Valid: true}
	}

	err := q.q.QueryRowContext(ctx, query,
		r.CompanyID,
		r.PaymentID,
		invoiceID,
		r.Number,
		r.TotalAmount,
		r.ExcessAmount,
		r.ExcessHandling,
		r.CreatedBy,
		r.CreatedAt.UTC(),
	).Scan(&r.ID)
	if err != nil {
		return classify("creating receipt", err)
	}

	return nil
}

func (q queries) CreateReceiptItems(ctx context.Context, receiptID int64, items []billing.ReceiptItem) error {
	query := `
		INSERT INTO receipt_items (receipt_id, line_no, description, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for i := range items {
		it := &items[i]
		it.ReceiptID = receiptID

		err := q.q.QueryRowContext(ctx, query,
			receiptID, it.LineNo, it.Description, it.Quantity, it.UnitPrice, it.LineTotal,
		).Scan(&it.ID)
		if err != nil {
			return classify("creating receipt item", err)
		}
	}

	return nil
}

func (q queries) GetReceipt(ctx context.Context, id int64) (*billing.Receipt, error) {
	r, err := q.receipt(ctx, id, false)
	if err != nil {
		return nil, err
	}

	if r.Items, err = q.receiptItems(ctx, id); err != nil {
		return nil, err
	}

	return r, nil
}

func (q queries) LockReceipt(ctx context.Context, id int64) (*billing.Receipt, error) {
	return q.receipt(ctx, id, true)
}

func (q queries) receipt(ctx context.Context, id int64, lock bool) (*billing.Receipt, error) {
	query := `SELECT ` + selectReceiptColumns + ` FROM receipts WHERE id = $1`
	if lock {
		query += database.ForUpdate(q.driver)
	}

	r, err := scanReceipt(q.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &billing.NotFoundError{Entity: "receipt", ID: id}
		}

		return nil, classify("getting receipt", err)
	}

	return r, nil
}

// ListReceipts returns the receipts issued against an invoice, oldest first,
// without their items.
func (q queries) ListReceipts(ctx context.Context, invoiceID int64) ([]*billing.Receipt, error) {
	query := `SELECT ` + selectReceiptColumns + ` FROM receipts WHERE invoice_id = $1 ORDER BY id`

	rows, err := q.q.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, classify("listing receipts", err)
	}
	defer rows.Close()

	var receipts []*billing.Receipt

	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, classify("scanning receipt", err)
		}

		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating receipts", err)
	}

	return receipts, nil
}

func (q queries) receiptItems(ctx context.Context, receiptID int64) ([]billing.ReceiptItem, error) {
	query := `
		SELECT id, receipt_id, line_no, description, quantity, unit_price, line_total
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY line_no, id
	`

	rows, err := q.q.QueryContext(ctx, query, receiptID)
	if err != nil {
		return nil, classify("listing receipt items", err)
	}
	defer rows.Close()

	items := []billing.ReceiptItem{}

	for rows.Next() {
		var it billing.ReceiptItem
		if err := rows.Scan(&it.ID, &it.ReceiptID, &it.LineNo, &it.Description, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, classify("scanning receipt item", err)
		}

		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating receipt items", err)
	}

	return items, nil
}
