package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/database"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db     *sql.DB
	driver database.Driver
	reads  queries
}

func New(db *sql.DB, driver database.Driver) *Store {
	return &Store{
		db:     db,
		driver: driver,
		reads:  queries{q: db, driver: driver},
	}
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*billing.Invoice, error) {
	return s.reads.GetInvoice(ctx, id)
}

func (s *Store) ListInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]*billing.Invoice, error) {
	return s.reads.ListInvoices(ctx, filter)
}

func (s *Store) GetReceipt(ctx context.Context, id int64) (*billing.Receipt, error) {
	return s.reads.GetReceipt(ctx, id)
}

func (s *Store) ListReceipts(ctx context.Context, invoiceID int64) ([]*billing.Receipt, error) {
	return s.reads.ListReceipts(ctx, invoiceID)
}

// Begin opens a unit of work. All of its reads and writes share one transaction.
func (s *Store) Begin(ctx context.Context) (billing.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin", err)
	}

	return &unitOfWork{
		queries: queries{q: tx, driver: s.driver},
		tx:      tx,
	}, nil
}

// RecordAudit writes one payment audit row outside any unit of work.
func (s *Store) RecordAudit(ctx context.Context, e billing.AuditEntry) error {
	query := `
		INSERT INTO payment_audit_log (payment_id, action, actor, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := s.db.ExecContext(ctx, query, e.PaymentID, e.Action, e.Actor, e.Amount, e.At.UTC()); err != nil {
		return classify("recording audit entry", err)
	}

	return nil
}

type unitOfWork struct {
	queries
	tx *sql.Tx
}

func (u *unitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return classify("commit", err)
	}

	return nil
}

// Rollback is a no-op after Commit.
func (u *unitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classify("rollback", err)
	}

	return nil
}

// classify maps a driver error onto the billing error taxonomy.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", billing.ErrTimeout, op, err)
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s: %w", billing.ErrConflict, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", billing.ErrStoreFailure, op, err)
	}
}

// queries holds the statements shared by the store and its units of work.
type queries struct {
	q      querier
	driver database.Driver
}

const nextSequenceQuery = `
	INSERT INTO document_sequences (document_type, year, sequence_number)
	VALUES ($1, $2, 1)
	ON CONFLICT (document_type, year)
	DO UPDATE SET sequence_number = document_sequences.sequence_number + 1
	RETURNING sequence_number
`

// NextSequence increments the (type, year) counter in one statement. The row
// stays locked until the surrounding transaction ends, so concurrent callers
// queue behind each other and a rollback returns the number.
func (q queries) NextSequence(ctx context.Context, docType billing.DocumentType, year int) (int64, error) {
	var seq int64
	if err := q.q.QueryRowContext(ctx, nextSequenceQuery, docType, year).Scan(&seq); err != nil {
		return 0, classify("incrementing sequence", err)
	}

	return seq, nil
}

const selectInvoiceColumns = `
	id, company_id, customer_id, invoice_number, status, issue_date, due_date, notes,
	subtotal, tax_amount, total_amount, paid_amount, balance_due, created_by, created_at, updated_at
`

// scanInvoice expects the column order of selectInvoiceColumns.
func scanInvoice(s scanner) (*billing.Invoice, error) {
	var inv billing.Invoice

	var status string

	var due sql.NullTime

	if err := s.Scan(
		&inv.ID, &inv.CompanyID, &inv.CustomerID, &inv.Number, &status, &inv.IssueDate, &due, &inv.Notes,
		&inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.PaidAmount, &inv.BalanceDue,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.Status = billing.InvoiceStatus(status)
	if due.Valid {
		inv.DueDate = &due.Time
	}

	return &inv, nil
}

func (q queries) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	query := `
		INSERT INTO invoices (
			company_id, customer_id, invoice_number, status, issue_date, due_date, notes,
			subtotal, tax_amount, total_amount, paid_amount, balance_due, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	err := q.q.QueryRowContext(ctx, query,
		inv.CompanyID,
		inv.CustomerID,
		inv.Number,
		inv.Status,
		inv.IssueDate.UTC(),
		nullTime(inv.DueDate),
		inv.Notes,
		inv.Subtotal,
		inv.TaxAmount,
		inv.TotalAmount,
		inv.PaidAmount,
		inv.BalanceDue,
		inv.CreatedBy,
		inv.CreatedAt.UTC(),
		inv.UpdatedAt.UTC(),
	).Scan(&inv.ID)
	if err != nil {
		return classify("creating invoice", err)
	}

	return nil
}

func (q queries) CreateInvoiceItems(ctx context.Context, invoiceID int64, items []billing.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (invoice_id, line_no, description, quantity, unit_price, tax_amount, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	for i := range items {
		it := &items[i]
		it.InvoiceID = invoiceID

		err := q.q.QueryRowContext(ctx, query,
			invoiceID, it.LineNo, it.Description, it.Quantity, it.UnitPrice, it.TaxAmount, it.LineTotal,
		).Scan(&it.ID)
		if err != nil {
			return classify("creating invoice item", err)
		}
	}

	return nil
}

func (q queries) GetInvoice(ctx context.Context, id int64) (*billing.Invoice, error) {
	inv, err := q.invoice(ctx, id, false)
	if err != nil {
		return nil, err
	}

	if inv.Items, err = q.InvoiceItems(ctx, id); err != nil {
		return nil, err
	}

	return inv, nil
}

// LockInvoice reads the invoice header and holds its row until the unit of work ends.
func (q queries) LockInvoice(ctx context.Context, id int64) (*billing.Invoice, error) {
	return q.invoice(ctx, id, true)
}

func (q queries) invoice(ctx context.Context, id int64, lock bool) (*billing.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE id = $1`
	if lock {
		query += database.ForUpdate(q.driver)
	}

	inv, err := scanInvoice(q.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &billing.NotFoundError{Entity: "invoice", ID: id}
		}

		return nil, classify("getting invoice", err)
	}

	return inv, nil
}

func (q queries) ListInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]*billing.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.CompanyID != nil {
		query += fmt.Sprintf(" AND company_id = $%d", argIdx)

		args = append(args, *filter.CompanyID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
	}

	query += " ORDER BY issue_date DESC, id DESC"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("listing invoices", err)
	}
	defer rows.Close()

	var invoices []*billing.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, classify("scanning invoice", err)
		}

		invoices = append(invoices, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating invoices", err)
	}

	return invoices, nil
}

func (q queries) InvoiceItems(ctx context.Context, invoiceID int64) ([]billing.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, line_no, description, quantity, unit_price, tax_amount, line_total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY line_no, id
	`

	rows, err := q.q.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, classify("listing invoice items", err)
	}
	defer rows.Close()

	items := []billing.InvoiceItem{}

	for rows.Next() {
		var it billing.InvoiceItem
		if err := rows.Scan(
			&it.ID, &it.InvoiceID, &it.LineNo, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.TaxAmount, &it.LineTotal,
		); err != nil {
			return nil, classify("scanning invoice item", err)
		}

		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating invoice items", err)
	}

	return items, nil
}

func (q queries) UpdateInvoiceBalance(ctx context.Context, invoiceID int64, b billing.Balance, at time.Time) error {
	query := `
		UPDATE invoices
		SET paid_amount = $1, balance_due = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	res, err := q.q.ExecContext(ctx, query, b.PaidAmount, b.BalanceDue, b.Status, at.UTC(), invoiceID)
	if err != nil {
		return classify("updating invoice balance", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify("updating invoice balance", err)
	}

	if n == 0 {
		return &billing.NotFoundError{Entity: "invoice", ID: invoiceID}
	}

	return nil
}

const selectPaymentColumns = `
	id, company_id, invoice_id, payment_number, amount, method, reference, paid_at, created_by, created_at
`

func (q queries) CreatePayment(ctx context.Context, p *billing.Payment) error {
	query := `
		INSERT INTO payments (company_id, invoice_id, payment_number, amount, method, reference, paid_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := q.q.QueryRowContext(ctx, query,
		p.CompanyID,
		p.InvoiceID,
		p.Number,
		p.Amount,
		p.Method,
		p.Reference,
		p.PaidAt.UTC(),
		p.CreatedBy,
		p.CreatedAt.UTC(),
	).Scan(&p.ID)
	if err != nil {
		return classify("creating payment", err)
	}

	return nil
}

func (q queries) GetPayment(ctx context.Context, id int64) (*billing.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments WHERE id = $1`

	var (
		p      billing.Payment
		method string
	)

	err := q.q.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.CompanyID, &p.InvoiceID, &p.Number, &p.Amount, &method, &p.Reference,
		&p.PaidAt, &p.CreatedBy, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &billing.NotFoundError{Entity: "payment", ID: id}
		}

		return nil, classify("getting payment", err)
	}

	p.Method = billing.PaymentMethod(method)

	return &p, nil
}

func (q queries) CreateAllocation(ctx context.Context, a *billing.Allocation) error {
	query := `
		INSERT INTO payment_allocations (payment_id, invoice_id, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if err := q.q.QueryRowContext(ctx, query, a.PaymentID, a.InvoiceID, a.Amount, a.CreatedAt.UTC()).Scan(&a.ID); err != nil {
		return classify("creating payment allocation", err)
	}

	return nil
}

// AllocationAmounts returns the amounts of every allocation still linked to the
// invoice. Summing happens in Go so both backends agree on decimal precision.
func (q queries) AllocationAmounts(ctx context.Context, invoiceID int64) ([]decimal.Decimal, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT amount FROM payment_allocations WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return nil, classify("listing allocation amounts", err)
	}
	defer rows.Close()

	var amounts []decimal.Decimal

	for rows.Next() {
		var d decimal.Decimal
		if err := rows.Scan(&d); err != nil {
			return nil, classify("scanning allocation amount", err)
		}

		amounts = append(amounts, d)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating allocation amounts", err)
	}

	return amounts, nil
}

func (q queries) PaymentAllocations(ctx context.Context, paymentID int64) ([]billing.Allocation, error) {
	query := `
		SELECT id, payment_id, invoice_id, amount, created_at
		FROM payment_allocations
		WHERE payment_id = $1
		ORDER BY id
	`

	rows, err := q.q.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, classify("listing payment allocations", err)
	}
	defer rows.Close()

	var allocs []billing.Allocation

	for rows.Next() {
		var a billing.Allocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.InvoiceID, &a.Amount, &a.CreatedAt); err != nil {
			return nil, classify("scanning payment allocation", err)
		}

		allocs = append(allocs, a)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating payment allocations", err)
	}

	return allocs, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t.UTC(), Valid: true}
}
