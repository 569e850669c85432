package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/economato/go-order-desk/internal/creation"
)

// IdempotencyHeader lets a client retry an order submission safely.
const IdempotencyHeader = "Idempotency-Key"

func (s *Server) registerCreation(r chi.Router) {
	r.Get("/creation/options", s.creationOptions)
	r.Post("/creation/orders", s.createOrder)
}

func (s *Server) creationForm() *creation.Form {
	opts := []creation.Option{creation.WithPublisher(s.publisher())}
	if s.Idempotency != nil {
		opts = append(opts, creation.WithIdempotency(s.Idempotency))
	}
	return creation.New(s.Users, s.Products, s.Orders, opts...)
}

func (s *Server) creationOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.creationForm().Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var d creation.Draft
	if err := decode(r, &d); err != nil {
		badRequest(w, "JSON inválido")
		return
	}
	res, err := s.creationForm().Submit(r.Context(), d, r.Header.Get(IdempotencyHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}
