package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/billy/internal/auth"
	"github.com/MrJamesThe3rd/billy/internal/http/document"
	"github.com/MrJamesThe3rd/billy/internal/http/importcsv"
	"github.com/MrJamesThe3rd/billy/internal/http/respond"
	"github.com/MrJamesThe3rd/billy/internal/http/sequence"
)

type Options struct {
	CORSOrigins []string
}

func New(
	authn *auth.Authenticator,
	opts Options,
	documentsV1 *document.Handler,
	sequencesV1 *sequence.Handler,
	importV1 *importcsv.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(requestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authn.Middleware(respond.Fail))

		r.Route("/sequences", sequencesV1.Routes)

		r.Route("/documents", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			documentsV1.Routes(r)
		})

		r.Route("/invoices", documentsV1.InvoiceRoutes)
		r.Route("/receipts", documentsV1.ReceiptRoutes)

		r.Route("/import", importV1.Routes)
	})

	return router
}

// requestID tags each request with a UUID, reusing the caller's X-Request-Id
// when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(middleware.RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
