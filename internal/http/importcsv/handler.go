package importcsv

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/billy/internal/encoding"
	"github.com/MrJamesThe3rd/billy/internal/importer"
	"github.com/MrJamesThe3rd/billy/internal/http/respond"
)

const maxUpload = 10 << 20

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/items", h.importItems)
}

type itemDTO struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxAmount   string `json:"tax_amount"`
}

type importResponse struct {
	Profile string           `json:"profile"`
	Charset encoding.Charset `json:"charset"`
	Items   []itemDTO        `json:"items"`
}

// importItems parses an uploaded spreadsheet into line items the caller can
// submit with POST /documents. Nothing is written.
func (h *Handler) importItems(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		respond.Fail(w, r, http.StatusBadRequest, "validation", "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Fail(w, r, http.StatusBadRequest, "validation", "file field is required")
		return
	}
	defer file.Close()

	res, err := h.importSvc.Import(importer.Format(r.FormValue("format")), file)
	if err != nil {
		respond.Fail(w, r, http.StatusBadRequest, "validation", err.Error())
		return
	}

	resp := importResponse{
		Profile: res.Profile,
		Charset: res.Charset,
		Items:   make([]itemDTO, len(res.Items)),
	}

	for i, it := range res.Items {
		resp.Items[i] = itemDTO{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.String(),
			TaxAmount:   it.TaxAmount.String(),
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}
