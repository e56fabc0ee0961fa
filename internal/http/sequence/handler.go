package sequence

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

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.types)
	r.Post("/{type}", h.allocate)
}

type allocateResponse struct {
	DocumentType billing.DocumentType `json:"document_type"`
	Number       string               `json:"number"`
}

type typeResponse struct {
	DocumentType billing.DocumentType `json:"document_type"`
	Prefix       string               `json:"prefix"`
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	docType, err := billing.ParseDocumentType(chi.URLParam(r, "type"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	year := 0

	if s := r.URL.Query().Get("year"); s != "" {
		if year, err = strconv.Atoi(s); err != nil {
			respond.Fail(w, r, http.StatusBadRequest, "validation", "invalid year")
			return
		}
	}

	number, err := h.svc.AllocateNumber(r.Context(), docType, year)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, allocateResponse{DocumentType: docType, Number: number})
}

func (h *Handler) types(w http.ResponseWriter, r *http.Request) {
	types := billing.DocumentTypes()

	resp := make([]typeResponse, len(types))
	for i, t := range types {
		resp[i] = typeResponse{DocumentType: t, Prefix: t.Prefix()}
	}

	respond.JSON(w, http.StatusOK, resp)
}
