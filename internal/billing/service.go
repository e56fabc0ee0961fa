package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=billing
type Repository interface {
	Begin(ctx context.Context) (UnitOfWork, error)

	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*Invoice, error)
	GetReceipt(ctx context.Context, id int64) (*Receipt, error)
	ListReceipts(ctx context.Context, invoiceID int64) ([]*Receipt, error)
}

// UnitOfWork is a transaction-scoped handle. Every write of one operation goes
// through the same UnitOfWork and becomes visible only on Commit.
type UnitOfWork interface {
	NextSequence(ctx context.Context, docType DocumentType, year int) (int64, error)

	CreateInvoice(ctx context.Context, inv *Invoice) error
	CreateInvoiceItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	CreatePayment(ctx context.Context, p *Payment) error
	CreateAllocation(ctx context.Context, a *Allocation) error
	CreateReceipt(ctx context.Context, r *Receipt) error
	CreateReceiptItems(ctx context.Context, receiptID int64, items []ReceiptItem) error

	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	GetReceipt(ctx context.Context, id int64) (*Receipt, error)

	// LockInvoice and LockReceipt read the row and hold it exclusively until
	// the unit of work ends.
	LockInvoice(ctx context.Context, id int64) (*Invoice, error)
	LockReceipt(ctx context.Context, id int64) (*Receipt, error)

	InvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	AllocationAmounts(ctx context.Context, invoiceID int64) ([]decimal.Decimal, error)
	PaymentAllocations(ctx context.Context, paymentID int64) ([]Allocation, error)
	UpdateInvoiceBalance(ctx context.Context, invoiceID int64, b Balance, at time.Time) error

	ExecStep(ctx context.Context, step Step) (int64, error)

	Commit() error
	Rollback() error
}

// Authorizer decides whether actor may perform action. It is consulted before
// every mutation.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, action Action) error
}

// AuditRecorder accepts audit entries without blocking the caller.
type AuditRecorder interface {
	Record(entry AuditEntry)
}

const DefaultTxTimeout = 30 * time.Second

type Service struct {
	repo      Repository
	authz     Authorizer
	audit     AuditRecorder
	logger    *slog.Logger
	txTimeout time.Duration
	now       func() time.Time
}

type Option func(*Service)

func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) { s.audit = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTxTimeout bounds how long a single unit of work may run.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, authz Authorizer, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		authz:     authz,
		logger:    slog.Default(),
		txTimeout: DefaultTxTimeout,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateResult holds the identifiers and freshly re-read rows of a settled document.
type CreateResult struct {
	InvoiceID    int64
	PaymentID    int64
	AllocationID int64
	ReceiptID    int64
	ExcessAmount decimal.Decimal

	Invoice *Invoice
	Payment *Payment
	Receipt *Receipt
}

// AllocateNumber issues the next document number for (docType, year) in its
// own transaction. A zero year means the current year.
func (s *Service) AllocateNumber(ctx context.Context, docType DocumentType, year int) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, docType)
	}

	year, err := ResolveYear(year, s.now())
	if err != nil {
		return "", err
	}

	if _, err := s.authorize(ctx, ActionAllocateNumber); err != nil {
		return "", err
	}

	var number string

	err = s.atomically(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		number, err = allocateNumber(ctx, uow, docType, year)

		return err
	})
	if err != nil {
		return "", err
	}

	return number, nil
}

// CreateDocumentGraph writes an invoice, its items, a payment, the payment
// allocation, a receipt and the receipt items as one atomic unit.
func (s *Service) CreateDocumentGraph(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()

	invYear, payYear, err := numberYears(req, now)
	if err != nil {
		return nil, err
	}

	actor, err := s.authorize(ctx, ActionCreateDocument)
	if err != nil {
		return nil, err
	}

	var res *CreateResult

	err = s.atomically(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error

		numbers := Numbers{Invoice: req.Invoice.Number, Payment: req.Payment.Number}

		if numbers.Invoice == "" {
			if numbers.Invoice, err = allocateNumber(ctx, uow, DocInvoice, invYear); err != nil {
				return err
			}
		}

		if numbers.Payment == "" {
			if numbers.Payment, err = allocateNumber(ctx, uow, DocPayment, payYear); err != nil {
				return err
			}
		}

		if numbers.Receipt, err = allocateNumber(ctx, uow, DocReceipt, now.Year()); err != nil {
			return err
		}

		graph, err := BuildGraph(req, numbers, actor.ID, now)
		if err != nil {
			return err
		}

		res, err = s.writeGraph(ctx, uow, graph)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating document graph: %w", err)
	}

	s.recordPayment(res.Payment, actor)

	return res, nil
}

// PaymentRequest applies an additional payment to an existing invoice.
type PaymentRequest struct {
	InvoiceID int64
	Payment   PaymentInput
}

func (r PaymentRequest) Validate() error {
	var errs []error
	if r.InvoiceID <= 0 {
		errs = append(errs, &ValidationError{Field: "invoice_id", Message: "is required"})
	}

	errs = append(errs, r.Payment.validate())

	return errors.Join(errs...)
}

// RecordPayment adds a payment, its allocation and a receipt to an existing
// invoice and recomputes the invoice balance, all in one unit of work.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (*CreateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()

	payYear := now.Year()
	if !req.Payment.PaidAt.IsZero() {
		payYear = req.Payment.PaidAt.Year()
	}

	if _, err := ResolveYear(payYear, now); err != nil {
		return nil, err
	}

	actor, err := s.authorize(ctx, ActionRecordPayment)
	if err != nil {
		return nil, err
	}

	var res *CreateResult

	err = s.atomically(ctx, func(ctx context.Context, uow UnitOfWork) error {
		inv, err := uow.LockInvoice(ctx, req.InvoiceID)
		if err != nil {
			return err
		}

		if inv.Items, err = uow.InvoiceItems(ctx, inv.ID); err != nil {
			return err
		}

		numbers := Numbers{Payment: req.Payment.Number}
		if numbers.Payment == "" {
			if numbers.Payment, err = allocateNumber(ctx, uow, DocPayment, payYear); err != nil {
				return err
			}
		}

		if numbers.Receipt, err = allocateNumber(ctx, uow, DocReceipt, now.Year()); err != nil {
			return err
		}

		st := BuildSettlement(inv, req.Payment, numbers, actor.ID, now)
		if err := writeSettlement(ctx, uow, st); err != nil {
			return err
		}

		if _, err := s.recomputeInvoice(ctx, uow, inv.ID); err != nil {
			return err
		}

		res, err = s.reread(ctx, uow, inv.ID, st)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recording payment on invoice %d: %w", req.InvoiceID, err)
	}

	s.recordPayment(res.Payment, actor)

	return res, nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

func (s *Service) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

func (s *Service) ListReceipts(ctx context.Context, invoiceID int64) ([]*Receipt, error) {
	return s.repo.ListReceipts(ctx, invoiceID)
}

// atomically runs fn inside one unit of work. Once the unit of work has begun,
// caller cancellation is ignored until it commits or rolls back; only the
// transaction timeout can cut it short.
func (s *Service) atomically(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before transaction: %w", err)
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()

	uow, err := s.repo.Begin(txCtx)
	if err != nil {
		return asTimeout(txCtx, fmt.Errorf("beginning transaction: %w", err))
	}
	defer uow.Rollback()

	if err := fn(txCtx, uow); err != nil {
		return asTimeout(txCtx, err)
	}

	if err := uow.Commit(); err != nil {
		return asTimeout(txCtx, fmt.Errorf("committing transaction: %w", err))
	}

	return nil
}

// asTimeout marks err as a timeout when the unit of work ran out of time.
func asTimeout(ctx context.Context, err error) error {
	if errors.Is(err, ErrTimeout) || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrTimeout, err)
}

// numberYears picks the counter years for the invoice and payment numbers.
func numberYears(req CreateRequest, now time.Time) (int, int, error) {
	invYear, payYear := now.Year(), now.Year()

	if !req.Invoice.IssueDate.IsZero() {
		invYear = req.Invoice.IssueDate.Year()
	}

	if !req.Payment.PaidAt.IsZero() {
		payYear = req.Payment.PaidAt.Year()
	}

	if _, err := ResolveYear(invYear, now); err != nil {
		return 0, 0, err
	}

	if _, err := ResolveYear(payYear, now); err != nil {
		return 0, 0, err
	}

	return invYear, payYear, nil
}

// writeGraph persists the graph in the fixed order invoice, invoice items,
// payment, allocation, receipt, receipt items.
func (s *Service) writeGraph(ctx context.Context, uow UnitOfWork, g *Graph) (*CreateResult, error) {
	if err := uow.CreateInvoice(ctx, &g.Invoice); err != nil {
		return nil, fmt.Errorf("writing invoice: %w", err)
	}

	if err := uow.CreateInvoiceItems(ctx, g.Invoice.ID, g.Invoice.Items); err != nil {
		return nil, fmt.Errorf("writing invoice items: %w", err)
	}

	g.bindInvoice(g.Invoice.ID)

	if err := writeSettlement(ctx, uow, &g.Settlement); err != nil {
		return nil, err
	}

	return s.reread(ctx, uow, g.Invoice.ID, &g.Settlement)
}

func writeSettlement(ctx context.Context, uow UnitOfWork, st *Settlement) error {
	if err := uow.CreatePayment(ctx, &st.Payment); err != nil {
		return fmt.Errorf("writing payment: %w", err)
	}

	st.Allocation.PaymentID = st.Payment.ID
	if err := uow.CreateAllocation(ctx, &st.Allocation); err != nil {
		return fmt.Errorf("writing payment allocation: %w", err)
	}

	st.Receipt.PaymentID = st.Payment.ID
	if err := uow.CreateReceipt(ctx, &st.Receipt); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}

	if err := uow.CreateReceiptItems(ctx, st.Receipt.ID, st.Receipt.Items); err != nil {
		return fmt.Errorf("writing receipt items: %w", err)
	}

	return nil
}

func (s *Service) reread(ctx context.Context, uow UnitOfWork, invoiceID int64, st *Settlement) (*CreateResult, error) {
	inv, err := uow.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("re-reading invoice: %w", err)
	}

	pay, err := uow.GetPayment(ctx, st.Payment.ID)
	if err != nil {
		return nil, fmt.Errorf("re-reading payment: %w", err)
	}

	rct, err := uow.GetReceipt(ctx, st.Receipt.ID)
	if err != nil {
		return nil, fmt.Errorf("re-reading receipt: %w", err)
	}

	return &CreateResult{
		InvoiceID:    inv.ID,
		PaymentID:    pay.ID,
		AllocationID: st.Allocation.ID,
		ReceiptID:    rct.ID,
		ExcessAmount: rct.ExcessAmount,
		Invoice:      inv,
		Payment:      pay,
		Receipt:      rct,
	}, nil
}

// recomputeInvoice reloads the allocations still linked to the invoice and
// persists the derived balance.
func (s *Service) recomputeInvoice(ctx context.Context, uow UnitOfWork, invoiceID int64) (Balance, error) {
	inv, err := uow.LockInvoice(ctx, invoiceID)
	if err != nil {
		return Balance{}, err
	}

	amounts, err := uow.AllocationAmounts(ctx, invoiceID)
	if err != nil {
		return Balance{}, err
	}

	b := Recompute(inv.TotalAmount, amounts)
	if err := uow.UpdateInvoiceBalance(ctx, invoiceID, b, s.now()); err != nil {
		return Balance{}, err
	}

	return b, nil
}

func (s *Service) recordPayment(p *Payment, actor Actor) {
	if s.audit == nil || p == nil {
		return
	}

	s.audit.Record(AuditEntry{
		PaymentID: p.ID,
		Action:    AuditPaymentCreated,
		Actor:     actor.ID,
		Amount:    p.Amount,
		At:        s.now(),
	})
}
