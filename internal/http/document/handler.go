package document

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/http/respond"
)

type Handler struct {
	svc *billing.Service
}

func NewHandler(svc *billing.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts POST /documents.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
}

// InvoiceRoutes mounts the /invoices resource.
func (h *Handler) InvoiceRoutes(r chi.Router) {
	r.Get("/", h.listInvoices)
	r.Get("/{id}", h.getInvoice)
	r.Delete("/{id}", h.deleteInvoice)
	r.Get("/{id}/receipts", h.listReceipts)
	r.Post("/{id}/payments", h.recordPayment)
}

// ReceiptRoutes mounts the /receipts resource.
func (h *Handler) ReceiptRoutes(r chi.Router) {
	r.Get("/{id}", h.getReceipt)
	r.Delete("/{id}", h.deleteReceipt)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decode(r.Body, &req); err != nil {
		respond.Fail(w, r, http.StatusBadRequest, "validation", "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.CreateDocumentGraph(r.Context(), req.toCreateRequest())
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toCreateResponse(res))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := decode(r.Body, &req); err != nil {
		respond.Fail(w, r, http.StatusBadRequest, "validation", "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.RecordPayment(r.Context(), billing.PaymentRequest{InvoiceID: id, Payment: req.toInput()})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toCreateResponse(res))
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter := billing.InvoiceFilter{}

	if s := r.URL.Query().Get("company_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			respond.Fail(w, r, http.StatusBadRequest, "validation", "invalid company_id")
			return
		}

		filter.CompanyID = new(id)
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := billing.InvoiceStatus(s)
		if !status.Valid() {
			respond.Fail(w, r, http.StatusBadRequest, "validation", "status must be one of draft, partial, paid")
			return
		}

		filter.Status = &status
	}

	invs, err := h.svc.ListInvoices(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toInvoiceResponseList(invs))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rs, err := h.svc.ListReceipts(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toReceiptResponseList(rs))
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rct, err := h.svc.GetReceipt(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toReceiptResponse(rct))
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.DeleteInvoiceCascade(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, deleteInvoiceResponse{
		InvoiceID:           res.InvoiceID,
		DeletedPaymentCount: res.DeletedPaymentCount,
		Deleted:             res.Deleted,
	})
}

func (h *Handler) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.DeleteReceiptCascade(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toDeleteReceiptResponse(res))
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Fail(w, r, http.StatusBadRequest, "validation", "invalid id")
		return 0, false
	}

	return id, true
}
