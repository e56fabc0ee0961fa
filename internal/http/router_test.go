package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/billy/internal/auth"
	"github.com/MrJamesThe3rd/billy/internal/billing"
	billyhttp "github.com/MrJamesThe3rd/billy/internal/http"
	"github.com/MrJamesThe3rd/billy/internal/http/document"
	"github.com/MrJamesThe3rd/billy/internal/http/importcsv"
	"github.com/MrJamesThe3rd/billy/internal/http/sequence"
	"github.com/MrJamesThe3rd/billy/internal/importer"
)

const secret = "test-secret"

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type server struct {
	handler http.Handler
	repo    *billing.MockRepository
	uow     *billing.MockUnitOfWork
	authn   *auth.Authenticator
}

func newServer(t *testing.T) *server {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := billing.NewMockRepository(ctrl)
	authn := auth.NewAuthenticator(secret)

	svc := billing.NewService(repo, auth.NewRoleAuthorizer(),
		billing.WithClock(func() time.Time { return testNow }),
		billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	handler := billyhttp.New(authn, billyhttp.Options{CORSOrigins: []string{"*"}},
		document.NewHandler(svc),
		sequence.NewHandler(svc),
		importcsv.NewHandler(importer.NewService()),
	)

	return &server{
		handler: handler,
		repo:    repo,
		uow:     billing.NewMockUnitOfWork(ctrl),
		authn:   authn,
	}
}

func (s *server) token(t *testing.T, role string) string {
	t.Helper()

	tok, err := s.authn.Issue(billing.Actor{ID: "alice", Role: role}, time.Hour)
	require.NoError(t, err)

	return tok
}

func (s *server) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return body
}

func TestAllocateSequence(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		role       string
		token      string
		setupMock  func(s *server)
		wantStatus int
		wantCode   string
		wantNumber string
	}{
		{
			name: "allocates",
			path: "/api/v1/sequences/invoice?year=2025",
			role: "accountant",
			setupMock: func(s *server) {
				s.repo.EXPECT().Begin(gomock.Any()).Return(s.uow, nil)
				s.uow.EXPECT().NextSequence(gomock.Any(), billing.DocInvoice, 2025).Return(int64(1), nil)
				s.uow.EXPECT().Commit().Return(nil)
				s.uow.EXPECT().Rollback().Return(nil)
			},
			wantStatus: http.StatusCreated,
			wantNumber: "INV-2025-0001",
		},
		{
			name: "accepts prefix",
			path: "/api/v1/sequences/rct",
			role: "admin",
			setupMock: func(s *server) {
				s.repo.EXPECT().Begin(gomock.Any()).Return(s.uow, nil)
				s.uow.EXPECT().NextSequence(gomock.Any(), billing.DocReceipt, 2025).Return(int64(42), nil)
				s.uow.EXPECT().Commit().Return(nil)
				s.uow.EXPECT().Rollback().Return(nil)
			},
			wantStatus: http.StatusCreated,
			wantNumber: "RCT-2025-0042",
		},
		{
			name:       "no token",
			path:       "/api/v1/sequences/invoice",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthorized",
		},
		{
			name:       "invalid token",
			path:       "/api/v1/sequences/invoice",
			token:      "garbage",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthorized",
		},
		{
			name:       "read-only role",
			path:       "/api/v1/sequences/invoice",
			role:       "viewer",
			wantStatus: http.StatusForbidden,
			wantCode:   "forbidden",
		},
		{
			name:       "unknown type",
			path:       "/api/v1/sequences/memo",
			role:       "admin",
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "bad year",
			path:       "/api/v1/sequences/invoice?year=soon",
			role:       "admin",
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "year out of range",
			path:       "/api/v1/sequences/invoice?year=1999",
			role:       "admin",
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name: "store failure is hidden",
			path: "/api/v1/sequences/invoice",
			role: "admin",
			setupMock: func(s *server) {
				s.repo.EXPECT().Begin(gomock.Any()).Return(nil, billing.ErrStoreFailure)
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "store_failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			if tt.setupMock != nil {
				tt.setupMock(s)
			}

			token := tt.token
			if token == "" && tt.role != "" {
				token = s.token(t, tt.role)
			}

			rec := s.do(httptest.NewRequest(http.MethodPost, tt.path, nil), token)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decode(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
				assert.NotEmpty(t, body["request_id"])

				return
			}

			assert.Equal(t, tt.wantNumber, body["number"])
		})
	}
}

func TestCreateDocument(t *testing.T) {
	s := newServer(t)

	s.repo.EXPECT().Begin(gomock.Any()).Return(s.uow, nil)
	s.uow.EXPECT().NextSequence(gomock.Any(), gomock.Any(), 2025).Return(int64(1), nil).Times(3)
	s.uow.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv *billing.Invoice) error {
			inv.ID = 10
			return nil
		})
	s.uow.EXPECT().CreateInvoiceItems(gomock.Any(), int64(10), gomock.Len(1)).Return(nil)
	s.uow.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *billing.Payment) error {
			p.ID = 20
			return nil
		})
	s.uow.EXPECT().CreateAllocation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *billing.Allocation) error {
			assert.True(t, decimal.NewFromInt(1000).Equal(a.Amount))

			a.ID = 30

			return nil
		})
	s.uow.EXPECT().CreateReceipt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r *billing.Receipt) error {
			r.ID = 40
			return nil
		})
	s.uow.EXPECT().CreateReceiptItems(gomock.Any(), int64(40), gomock.Len(1)).Return(nil)
	s.uow.EXPECT().GetInvoice(gomock.Any(), int64(10)).Return(&billing.Invoice{
		ID:          10,
		Number:      "INV-2025-0001",
		Status:      billing.StatusPaid,
		TotalAmount: decimal.NewFromInt(1000),
		PaidAmount:  decimal.NewFromInt(1000),
	}, nil)
	s.uow.EXPECT().GetPayment(gomock.Any(), int64(20)).Return(&billing.Payment{
		ID:     20,
		Amount: decimal.NewFromInt(1200),
		Method: billing.MethodCash,
	}, nil)
	s.uow.EXPECT().GetReceipt(gomock.Any(), int64(40)).Return(&billing.Receipt{
		ID:             40,
		PaymentID:      20,
		ExcessAmount:   decimal.NewFromInt(200),
		ExcessHandling: billing.ExcessPending,
	}, nil)
	s.uow.EXPECT().Commit().Return(nil)
	s.uow.EXPECT().Rollback().Return(nil)

	body := `{
		"company_id": 1,
		"customer_id": 2,
		"payment": {"amount": "1200"},
		"items": [{"description": "Consulting", "quantity": "1", "unit_price": 1000}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := s.do(req, s.token(t, "accountant"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode(t, rec)
	assert.EqualValues(t, 10, got["invoice_id"])
	assert.EqualValues(t, 20, got["payment_id"])
	assert.EqualValues(t, 30, got["allocation_id"])
	assert.EqualValues(t, 40, got["receipt_id"])
	assert.Equal(t, "200.00", got["excess_amount"])
	assert.Equal(t, "paid", got["invoice"].(map[string]any)["status"])
	assert.Equal(t, "pending", got["receipt"].(map[string]any)["excess_handling"])
}

func TestCreateDocument_Rejects(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
	}{
		{
			name:        "malformed json",
			body:        `{"company_id":`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "missing payment amount",
			body:        `{"company_id": 1, "customer_id": 2}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "negative quantity",
			body:        `{"company_id": 1, "customer_id": 2, "payment": {"amount": 1}, "items": [{"description": "x", "quantity": -1, "unit_price": 1}]}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "caller supplied id",
			body:        `{"company_id": 1, "customer_id": 2, "payment": {"amount": 1}, "invoice": {"id": 99}}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "wrong content type",
			body:        `{}`,
			contentType: "text/plain",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			rec := s.do(req, s.token(t, "admin"))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestInvoiceReads(t *testing.T) {
	t.Run("get not found", func(t *testing.T) {
		s := newServer(t)
		s.repo.EXPECT().GetInvoice(gomock.Any(), int64(5)).
			Return(nil, &billing.NotFoundError{Entity: "invoice", ID: 5})

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/5", nil), "")
		require.Equal(t, http.StatusNotFound, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "not_found", body["code"])
		assert.Equal(t, "invoice 5 not found", body["error"])
	})

	t.Run("get with items", func(t *testing.T) {
		s := newServer(t)
		s.repo.EXPECT().GetInvoice(gomock.Any(), int64(5)).Return(&billing.Invoice{
			ID:          5,
			TotalAmount: decimal.RequireFromString("99.5"),
			Items: []billing.InvoiceItem{
				{LineNo: 1, Description: "Widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("49.75")},
			},
		}, nil)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/5", nil), "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "99.50", body["total_amount"])
		assert.Len(t, body["items"], 1)
	})

	t.Run("list applies filter", func(t *testing.T) {
		s := newServer(t)
		s.repo.EXPECT().ListInvoices(gomock.Any(), billing.InvoiceFilter{
			CompanyID: new(int64(3)),
			Status:    new(billing.StatusPartial),
		}).Return([]*billing.Invoice{{ID: 1}, {ID: 2}}, nil)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?company_id=3&status=partial", nil), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("list rejects bad company", func(t *testing.T) {
		s := newServer(t)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?company_id=x", nil), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		for _, status := range []string{"overdue", "PAID", "void"} {
			s := newServer(t)

			rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?status="+status, nil), "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, status)
			assert.Contains(t, rec.Body.String(), "validation", status)
		}
	})

	t.Run("receipts of invoice", func(t *testing.T) {
		s := newServer(t)
		s.repo.EXPECT().ListReceipts(gomock.Any(), int64(5)).Return([]*billing.Receipt{}, nil)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/5/receipts", nil), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("invalid id", func(t *testing.T) {
		s := newServer(t)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/receipts/abc", nil), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteInvoice(t *testing.T) {
	s := newServer(t)

	s.repo.EXPECT().Begin(gomock.Any()).Return(s.uow, nil)
	s.uow.EXPECT().LockInvoice(gomock.Any(), int64(9)).Return(&billing.Invoice{ID: 9}, nil)
	s.uow.EXPECT().ExecStep(gomock.Any(), gomock.Any()).Return(int64(1), nil).Times(9)
	s.uow.EXPECT().Commit().Return(nil)
	s.uow.EXPECT().Rollback().Return(nil)

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/9", nil), s.token(t, "admin"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.EqualValues(t, 9, body["invoice_id"])
	assert.EqualValues(t, 1, body["deleted_payment_count"])
	assert.Len(t, body["deleted"], 9)
}

func TestDeleteInvoice_NotFound(t *testing.T) {
	s := newServer(t)

	s.repo.EXPECT().Begin(gomock.Any()).Return(s.uow, nil)
	s.uow.EXPECT().LockInvoice(gomock.Any(), int64(9)).Return(nil, &billing.NotFoundError{Entity: "invoice", ID: 9})
	s.uow.EXPECT().Rollback().Return(nil)

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/9", nil), s.token(t, "admin"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteReceipt_Unauthenticated(t *testing.T) {
	s := newServer(t)

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/receipts/3", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestImportItems(t *testing.T) {
	s := newServer(t)

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "items.csv")
	require.NoError(t, err)

	_, err = fw.Write([]byte("Description;Quantity;Unit Price\nWidget;2;12,50\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/items", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := s.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "itemized", body["profile"])

	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "12.5", items[0].(map[string]any)["unit_price"])
}

func TestImportItems_MissingFile(t *testing.T) {
	s := newServer(t)

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("format", "csv"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/items", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := s.do(req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestID(t *testing.T) {
	s := newServer(t)
	s.repo.EXPECT().GetReceipt(gomock.Any(), int64(1)).Return(nil, &billing.NotFoundError{Entity: "receipt", ID: 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/receipts/1", nil)
	req.Header.Set("X-Request-Id", "req-123")

	rec := s.do(req, "")
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-123", decode(t, rec)["request_id"])
}
