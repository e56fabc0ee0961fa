package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

var allowAll = billing.AuthorizerFunc(func(context.Context, billing.Actor, billing.Action) error {
	return nil
})

func actorCtx() context.Context {
	return billing.ContextWithActor(context.Background(), billing.Actor{ID: "alice", Role: "accountant"})
}

func fixedClock() time.Time { return testNow }

func TestService_AllocateNumber(t *testing.T) {
	type args struct {
		ctx     context.Context
		docType billing.DocumentType
		year    int
	}

	type testCase struct {
		name      string
		args      args
		authz     billing.Authorizer
		setupMock func(repo *billing.MockRepository, uow *billing.MockUnitOfWork)
		want      string
		wantErr   error
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{ctx: actorCtx(), docType: billing.DocInvoice, year: 2025},
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().NextSequence(gomock.Any(), billing.DocInvoice, 2025).Return(int64(7), nil)
				uow.EXPECT().Commit().Return(nil)
				uow.EXPECT().Rollback().Return(nil)
			},
			want: "INV-2025-0007",
		},
		{
			name: "DefaultsToCurrentYear",
			args: args{ctx: actorCtx(), docType: billing.DocReceipt},
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().NextSequence(gomock.Any(), billing.DocReceipt, testNow.Year()).Return(int64(12), nil)
				uow.EXPECT().Commit().Return(nil)
				uow.EXPECT().Rollback().Return(nil)
			},
			want: "RCT-2025-0012",
		},
		{
			name:    "InvalidType",
			args:    args{ctx: actorCtx(), docType: "memo", year: 2025},
			wantErr: billing.ErrValidation,
		},
		{
			name:    "InvalidYear",
			args:    args{ctx: actorCtx(), docType: billing.DocInvoice, year: 1990},
			wantErr: billing.ErrInvalidYear,
		},
		{
			name:    "NoActor",
			args:    args{ctx: context.Background(), docType: billing.DocInvoice},
			wantErr: billing.ErrUnauthorized,
		},
		{
			name: "Denied",
			args: args{ctx: actorCtx(), docType: billing.DocInvoice},
			authz: billing.AuthorizerFunc(func(context.Context, billing.Actor, billing.Action) error {
				return errors.New("read-only role")
			}),
			wantErr: billing.ErrUnauthorized,
		},
		{
			name: "StoreFailureRollsBack",
			args: args{ctx: actorCtx(), docType: billing.DocInvoice, year: 2025},
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().NextSequence(gomock.Any(), billing.DocInvoice, 2025).
					Return(int64(0), errors.Join(billing.ErrStoreFailure, errors.New("disk full")))
				uow.EXPECT().Rollback().Return(nil)
			},
			wantErr: billing.ErrStoreFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := billing.NewMockRepository(ctrl)
			uow := billing.NewMockUnitOfWork(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(repo, uow)
			}

			authz := tt.authz
			if authz == nil {
				authz = allowAll
			}

			svc := billing.NewService(repo, authz, billing.WithClock(fixedClock))
			got, err := svc.AllocateNumber(tt.args.ctx, tt.args.docType, tt.args.year)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_AllocateNumber_CancelledBeforeBegin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)

	ctx, cancel := context.WithCancel(actorCtx())
	cancel()

	svc := billing.NewService(repo, allowAll)
	_, err := svc.AllocateNumber(ctx, billing.DocInvoice, 0)

	require.ErrorIs(t, err, context.Canceled)
}

func TestService_AllocateNumber_IgnoresCancelAfterBegin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)
	uow := billing.NewMockUnitOfWork(ctrl)

	ctx, cancel := context.WithCancel(actorCtx())
	defer cancel()

	repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
	uow.EXPECT().NextSequence(gomock.Any(), billing.DocPayment, 2025).
		DoAndReturn(func(ctx context.Context, _ billing.DocumentType, _ int) (int64, error) {
			cancel()
			// The unit of work still runs on a live context.
			if err := ctx.Err(); err != nil {
				return 0, err
			}

			return 3, nil
		})
	uow.EXPECT().Commit().Return(nil)
	uow.EXPECT().Rollback().Return(nil)

	svc := billing.NewService(repo, allowAll, billing.WithClock(fixedClock))
	got, err := svc.AllocateNumber(ctx, billing.DocPayment, 2025)

	require.NoError(t, err)
	assert.Equal(t, "PAY-2025-0003", got)
}

func TestService_AllocateNumber_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)
	uow := billing.NewMockUnitOfWork(ctrl)

	repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
	uow.EXPECT().NextSequence(gomock.Any(), billing.DocInvoice, 2025).
		DoAndReturn(func(ctx context.Context, _ billing.DocumentType, _ int) (int64, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	uow.EXPECT().Rollback().Return(nil)

	svc := billing.NewService(repo, allowAll,
		billing.WithClock(fixedClock),
		billing.WithTxTimeout(20*time.Millisecond),
	)
	_, err := svc.AllocateNumber(actorCtx(), billing.DocInvoice, 2025)

	require.ErrorIs(t, err, billing.ErrTimeout)
	assert.False(t, billing.IsClientError(err))
}

// written captures the rows the service hands to the unit of work.
type written struct {
	invoice    *billing.Invoice
	payment    *billing.Payment
	allocation *billing.Allocation
	receipt    *billing.Receipt
}

// expectGraphWrites stubs a successful document graph write, assigning ids
// and re-reading the captured rows.
func expectGraphWrites(uow *billing.MockUnitOfWork) *written {
	w := &written{}

	gomock.InOrder(
		uow.EXPECT().NextSequence(gomock.Any(), billing.DocInvoice, 2025).Return(int64(1), nil),
		uow.EXPECT().NextSequence(gomock.Any(), billing.DocPayment, 2025).Return(int64(1), nil),
		uow.EXPECT().NextSequence(gomock.Any(), billing.DocReceipt, 2025).Return(int64(1), nil),
		uow.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, inv *billing.Invoice) error {
				inv.ID = 10
				w.invoice = inv

				return nil
			}),
		uow.EXPECT().CreateInvoiceItems(gomock.Any(), int64(10), gomock.Len(2)).Return(nil),
		uow.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *billing.Payment) error {
				p.ID = 20
				w.payment = p

				return nil
			}),
		uow.EXPECT().CreateAllocation(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a *billing.Allocation) error {
				a.ID = 30
				w.allocation = a

				return nil
			}),
		uow.EXPECT().CreateReceipt(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r *billing.Receipt) error {
				r.ID = 40
				w.receipt = r

				return nil
			}),
		uow.EXPECT().CreateReceiptItems(gomock.Any(), int64(40), gomock.Len(2)).Return(nil),
		uow.EXPECT().GetInvoice(gomock.Any(), int64(10)).
			DoAndReturn(func(context.Context, int64) (*billing.Invoice, error) { return w.invoice, nil }),
		uow.EXPECT().GetPayment(gomock.Any(), int64(20)).
			DoAndReturn(func(context.Context, int64) (*billing.Payment, error) { return w.payment, nil }),
		uow.EXPECT().GetReceipt(gomock.Any(), int64(40)).
			DoAndReturn(func(context.Context, int64) (*billing.Receipt, error) { return w.receipt, nil }),
	)

	return w
}

func TestService_CreateDocumentGraph(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)
	uow := billing.NewMockUnitOfWork(ctrl)
	audit := billing.NewMockAuditRecorder(ctrl)

	repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
	w := expectGraphWrites(uow)
	uow.EXPECT().Commit().Return(nil)
	uow.EXPECT().Rollback().Return(nil)

	audit.EXPECT().Record(gomock.Any()).Do(func(e billing.AuditEntry) {
		assert.Equal(t, int64(20), e.PaymentID)
		assert.Equal(t, billing.AuditPaymentCreated, e.Action)
		assert.Equal(t, "alice", e.Actor)
		assert.True(t, dec("1200").Equal(e.Amount))
	})

	svc := billing.NewService(repo, allowAll, billing.WithClock(fixedClock), billing.WithAuditRecorder(audit))

	res, err := svc.CreateDocumentGraph(actorCtx(), validRequest("1200"))
	require.NoError(t, err)

	assert.Equal(t, int64(10), res.InvoiceID)
	assert.Equal(t, int64(20), res.PaymentID)
	assert.Equal(t, int64(30), res.AllocationID)
	assert.Equal(t, int64(40), res.ReceiptID)
	assert.True(t, dec("200").Equal(res.ExcessAmount), "excess = %s", res.ExcessAmount)

	require.NotNil(t, w.allocation)
	assert.Equal(t, int64(20), w.allocation.PaymentID)
	assert.Equal(t, int64(10), w.allocation.InvoiceID)
	assert.True(t, dec("1000").Equal(w.allocation.Amount))

	assert.Equal(t, "INV-2025-0001", res.Invoice.Number)
	assert.Equal(t, billing.StatusPaid, res.Invoice.Status)
	assert.Equal(t, "PAY-2025-0001", res.Payment.Number)
	assert.Equal(t, int64(10), res.Payment.InvoiceID)
	assert.Equal(t, "RCT-2025-0001", res.Receipt.Number)
	assert.Equal(t, int64(20), res.Receipt.PaymentID)
	require.NotNil(t, res.Receipt.InvoiceID)
	assert.Equal(t, int64(10), *res.Receipt.InvoiceID)
	assert.Equal(t, billing.ExcessPending, res.Receipt.ExcessHandling)
}

func TestService_CreateDocumentGraph_Failures(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		req       billing.CreateRequest
		setupMock func(repo *billing.MockRepository, uow *billing.MockUnitOfWork)
		wantErr   error
	}{
		{
			name:    "ValidationBeforeAnyWrite",
			ctx:     actorCtx(),
			req:     billing.CreateRequest{CompanyID: 1},
			wantErr: billing.ErrValidation,
		},
		{
			name:    "NoActor",
			ctx:     context.Background(),
			req:     validRequest("10"),
			wantErr: billing.ErrUnauthorized,
		},
		{
			name: "DuplicateInvoiceNumber",
			ctx:  actorCtx(),
			req: func() billing.CreateRequest {
				r := validRequest("10")
				r.Invoice.Number = "INV-2025-0001"
				r.Payment.Number = "PAY-X"

				return r
			}(),
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().NextSequence(gomock.Any(), billing.DocReceipt, 2025).Return(int64(1), nil)
				uow.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).
					Return(errors.Join(billing.ErrConflict, errors.New("invoices_number_key")))
				uow.EXPECT().Rollback().Return(nil)
			},
			wantErr: billing.ErrConflict,
		},
		{
			name: "ReceiptItemsFailureRollsBack",
			ctx:  actorCtx(),
			req:  validRequest("10"),
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().NextSequence(gomock.Any(), gomock.Any(), 2025).Return(int64(1), nil).Times(3)
				uow.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).Return(nil)
				uow.EXPECT().CreateInvoiceItems(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				uow.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(nil)
				uow.EXPECT().CreateAllocation(gomock.Any(), gomock.Any()).Return(nil)
				uow.EXPECT().CreateReceipt(gomock.Any(), gomock.Any()).Return(nil)
				uow.EXPECT().CreateReceiptItems(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(errors.Join(billing.ErrStoreFailure, errors.New("forced")))
				uow.EXPECT().Rollback().Return(nil)
			},
			wantErr: billing.ErrStoreFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := billing.NewMockRepository(ctrl)
			uow := billing.NewMockUnitOfWork(ctrl)
			audit := billing.NewMockAuditRecorder(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(repo, uow)
			}

			svc := billing.NewService(repo, allowAll, billing.WithClock(fixedClock), billing.WithAuditRecorder(audit))

			_, err := svc.CreateDocumentGraph(tt.ctx, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_RecordPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)
	uow := billing.NewMockUnitOfWork(ctrl)

	inv := &billing.Invoice{
		ID:          10,
		CompanyID:   1,
		TotalAmount: dec("1000"),
		PaidAmount:  dec("600"),
		BalanceDue:  dec("400"),
		Status:      billing.StatusPartial,
	}

	var alloc *billing.Allocation

	repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
	gomock.InOrder(
		uow.EXPECT().LockInvoice(gomock.Any(), int64(10)).Return(inv, nil),
		uow.EXPECT().InvoiceItems(gomock.Any(), int64(10)).Return(nil, nil),
		uow.EXPECT().NextSequence(gomock.Any(), billing.DocPayment, 2025).Return(int64(2), nil),
		uow.EXPECT().NextSequence(gomock.Any(), billing.DocReceipt, 2025).Return(int64(2), nil),
		uow.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *billing.Payment) error {
				p.ID = 21
				return nil
			}),
		uow.EXPECT().CreateAllocation(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a *billing.Allocation) error {
				a.ID = 31
				alloc = a

				return nil
			}),
		uow.EXPECT().CreateReceipt(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r *billing.Receipt) error {
				r.ID = 41
				return nil
			}),
		uow.EXPECT().CreateReceiptItems(gomock.Any(), int64(41), gomock.Len(0)).Return(nil),
		uow.EXPECT().LockInvoice(gomock.Any(), int64(10)).Return(inv, nil),
		uow.EXPECT().AllocationAmounts(gomock.Any(), int64(10)).Return(decs("600", "400"), nil),
		uow.EXPECT().UpdateInvoiceBalance(gomock.Any(), int64(10), gomock.Any(), testNow).
			DoAndReturn(func(_ context.Context, _ int64, b billing.Balance, _ time.Time) error {
				assert.Equal(t, billing.StatusPaid, b.Status)
				assert.True(t, b.BalanceDue.IsZero())

				return nil
			}),
		uow.EXPECT().GetInvoice(gomock.Any(), int64(10)).Return(inv, nil),
		uow.EXPECT().GetPayment(gomock.Any(), int64(21)).Return(&billing.Payment{ID: 21}, nil),
		uow.EXPECT().GetReceipt(gomock.Any(), int64(41)).Return(&billing.Receipt{ID: 41, ExcessAmount: dec("100")}, nil),
		uow.EXPECT().Commit().Return(nil),
	)
	uow.EXPECT().Rollback().Return(nil)

	svc := billing.NewService(repo, allowAll, billing.WithClock(fixedClock))

	res, err := svc.RecordPayment(actorCtx(), billing.PaymentRequest{
		InvoiceID: 10,
		Payment:   billing.PaymentInput{Amount: new(dec("500"))},
	})
	require.NoError(t, err)

	require.NotNil(t, alloc)
	assert.True(t, dec("400").Equal(alloc.Amount), "allocated = %s", alloc.Amount)
	assert.Equal(t, int64(41), res.ReceiptID)
	assert.True(t, dec("100").Equal(res.ExcessAmount))
}

func TestService_RecordPayment_InvoiceNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)
	uow := billing.NewMockUnitOfWork(ctrl)

	repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
	uow.EXPECT().LockInvoice(gomock.Any(), int64(99)).Return(nil, &billing.NotFoundError{Entity: "invoice", ID: 99})
	uow.EXPECT().Rollback().Return(nil)

	svc := billing.NewService(repo, allowAll, billing.WithClock(fixedClock))

	_, err := svc.RecordPayment(actorCtx(), billing.PaymentRequest{
		InvoiceID: 99,
		Payment:   billing.PaymentInput{Amount: new(dec("5"))},
	})
	require.ErrorIs(t, err, billing.ErrNotFound)
}

func TestService_DeleteReceiptCascade(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)
	uow := billing.NewMockUnitOfWork(ctrl)

	rct := &billing.Receipt{ID: 40, PaymentID: 20, InvoiceID: new(int64(10))}
	inv := &billing.Invoice{ID: 10, TotalAmount: dec("1000")}

	var executed []billing.StepKind

	execStep := func(_ context.Context, s billing.Step) (int64, error) {
		executed = append(executed, s.Kind)
		return 1, nil
	}

	repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
	gomock.InOrder(
		uow.EXPECT().GetReceipt(gomock.Any(), int64(40)).Return(rct, nil),
		uow.EXPECT().PaymentAllocations(gomock.Any(), int64(20)).
			Return([]billing.Allocation{{ID: 30, PaymentID: 20, InvoiceID: 10, Amount: dec("600")}}, nil),
		uow.EXPECT().LockInvoice(gomock.Any(), int64(10)).Return(inv, nil),
		uow.EXPECT().LockReceipt(gomock.Any(), int64(40)).Return(rct, nil),
		uow.EXPECT().ExecStep(gomock.Any(), gomock.Any()).DoAndReturn(execStep).Times(4),
		uow.EXPECT().LockInvoice(gomock.Any(), int64(10)).Return(inv, nil),
		uow.EXPECT().AllocationAmounts(gomock.Any(), int64(10)).Return(decs("400"), nil),
		uow.EXPECT().UpdateInvoiceBalance(gomock.Any(), int64(10), gomock.Any(), testNow).Return(nil),
		uow.EXPECT().ExecStep(gomock.Any(), gomock.Any()).DoAndReturn(execStep),
		uow.EXPECT().Commit().Return(nil),
	)
	uow.EXPECT().Rollback().Return(nil)

	svc := billing.NewService(repo, allowAll, billing.WithClock(fixedClock))

	res, err := svc.DeleteReceiptCascade(actorCtx(), 40)
	require.NoError(t, err)

	assert.Equal(t, []billing.StepKind{
		billing.StepDeleteReceiptItems,
		billing.StepDeletePaymentAudit,
		billing.StepDeletePaymentAllocations,
		billing.StepDeletePayment,
		billing.StepDeleteReceipt,
	}, executed)

	assert.Equal(t, int64(20), res.PaymentID)
	require.NotNil(t, res.InvoiceID)
	assert.Equal(t, int64(10), *res.InvoiceID)
	assert.True(t, dec("600").Equal(res.AmountReversed))
	require.NotNil(t, res.Balance)
	assert.True(t, dec("400").Equal(res.Balance.PaidAmount))
	assert.True(t, dec("600").Equal(res.Balance.BalanceDue))
	assert.Equal(t, billing.StatusPartial, res.Balance.Status)
	assert.Len(t, res.Balances, 1)
}

func TestService_DeleteInvoiceCascade(t *testing.T) {
	type testCase struct {
		name      string
		invoiceID int64
		setupMock func(repo *billing.MockRepository, uow *billing.MockUnitOfWork)
		wantErr   error
		wantStep  billing.StepKind
	}

	tests := []testCase{
		{
			name:      "Success",
			invoiceID: 10,
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().LockInvoice(gomock.Any(), int64(10)).Return(&billing.Invoice{ID: 10}, nil)
				uow.EXPECT().ExecStep(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, s billing.Step) (int64, error) {
						if s.Kind == billing.StepDeleteInvoicePayments {
							return 2, nil
						}

						return 1, nil
					}).Times(9)
				uow.EXPECT().Commit().Return(nil)
				uow.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name:      "InvalidID",
			invoiceID: 0,
			wantErr:   billing.ErrValidation,
		},
		{
			name:      "NotFound",
			invoiceID: 99,
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().LockInvoice(gomock.Any(), int64(99)).
					Return(nil, &billing.NotFoundError{Entity: "invoice", ID: 99})
				uow.EXPECT().Rollback().Return(nil)
			},
			wantErr: billing.ErrNotFound,
		},
		{
			name:      "StepFailureAbortsPlan",
			invoiceID: 10,
			setupMock: func(repo *billing.MockRepository, uow *billing.MockUnitOfWork) {
				repo.EXPECT().Begin(gomock.Any()).Return(uow, nil)
				uow.EXPECT().LockInvoice(gomock.Any(), int64(10)).Return(&billing.Invoice{ID: 10}, nil)
				uow.EXPECT().ExecStep(gomock.Any(), gomock.Any()).Return(int64(1), nil).Times(2)
				uow.EXPECT().ExecStep(gomock.Any(), gomock.Any()).
					Return(int64(0), errors.Join(billing.ErrStoreFailure, errors.New("fk violation")))
				uow.EXPECT().Rollback().Return(nil)
			},
			wantErr:  billing.ErrStoreFailure,
			wantStep: billing.StepDeleteInvoiceReceipts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := billing.NewMockRepository(ctrl)
			uow := billing.NewMockUnitOfWork(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(repo, uow)
			}

			svc := billing.NewService(repo, allowAll, billing.WithClock(fixedClock))
			res, err := svc.DeleteInvoiceCascade(actorCtx(), tt.invoiceID)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				if tt.wantStep != "" {
					var stepErr *billing.StepError
					require.ErrorAs(t, err, &stepErr)
					assert.Equal(t, tt.wantStep, stepErr.Step)
					assert.Equal(t, billing.PlanInvoiceDeletion, stepErr.Plan)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(2), res.DeletedPaymentCount)
			assert.Len(t, res.Deleted, 9)
		})
	}
}

func TestService_Reads(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := billing.NewMockRepository(ctrl)
	status := billing.StatusPartial
	filter := billing.InvoiceFilter{Status: &status}

	repo.EXPECT().ListInvoices(gomock.Any(), filter).Return([]*billing.Invoice{{ID: 1}}, nil)
	repo.EXPECT().ListReceipts(gomock.Any(), int64(1)).Return([]*billing.Receipt{{ID: 2}}, nil)
	repo.EXPECT().GetReceipt(gomock.Any(), int64(3)).Return(nil, &billing.NotFoundError{Entity: "receipt", ID: 3})

	svc := billing.NewService(repo, nil)

	invoices, err := svc.ListInvoices(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	receipts, err := svc.ListReceipts(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)

	_, err = svc.GetReceipt(context.Background(), 3)
	require.ErrorIs(t, err, billing.ErrNotFound)
	assert.Equal(t, "receipt 3 not found", err.Error())

}
