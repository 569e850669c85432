package httpx

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/economato/go-order-desk/internal/board"
	"github.com/economato/go-order-desk/internal/orders"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) registerBoard(r chi.Router) {
	r.Get("/board/orders", s.boardView)
	r.Get("/board/orders.xlsx", s.boardExport)
	r.Get("/board/orders/{id}", s.boardDetail)
	r.Post("/board/orders/{id}/received", s.boardAct(orders.ActionMarkReceived))
	r.Post("/board/orders/{id}/complete", s.boardAct(orders.ActionComplete))
	r.Post("/board/orders/{id}/incomplete", s.boardAct(orders.ActionMarkIncomplete))
}

func (s *Server) board() *board.Board {
	return board.New(s.Orders, s.publisher(), s.BoardCache)
}

// loadBoard fetches and applies ?q= and ?type=. A failed fetch still yields
// a board whose view carries the message.
func (s *Server) loadBoard(r *http.Request) (*board.Board, error) {
	b := s.board()
	err := b.Load(r.Context())
	b.SetQuery(r.URL.Query().Get("q"))
	b.SetFacet(r.URL.Query().Get("type"))
	return b, err
}

func (s *Server) boardView(w http.ResponseWriter, r *http.Request) {
	b, err := s.loadBoard(r)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, b.View())
		return
	}
	writeJSON(w, http.StatusOK, b.View())
}

func (s *Server) boardExport(w http.ResponseWriter, r *http.Request) {
	b, err := s.loadBoard(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := b.Export(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", `attachment; filename="ordenes.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) boardDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "ID de orden inválido")
		return
	}
	d, err := s.board().Detail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) boardAct(kind orders.ActionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			badRequest(w, "ID de orden inválido")
			return
		}
		res, err := s.board().Act(r.Context(), id, kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
