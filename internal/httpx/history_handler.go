package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/economato/go-order-desk/internal/history"
)

type historyResp struct {
	Tab           history.Tab   `json:"tab"`
	Rows          []history.Row `json:"rows"`
	MovementTypes []string      `json:"movementTypes,omitempty"`
}

func (s *Server) registerHistory(r chi.Router) {
	r.Get("/history/{tab}", s.historyTab)
	r.Get("/history/{tab}/{id}", s.historyRecord)
}

func historyTabParam(w http.ResponseWriter, r *http.Request) (history.Tab, bool) {
	tab, ok := history.ParseTab(chi.URLParam(r, "tab"))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Detail: "Historial desconocido"})
	}
	return tab, ok
}

// historyTab lists a tab. ?user= and ?entity= (recipe or order id) narrow
// the fetch on the backend, as do type and the dates; q, type, from and to
// then filter the rows.
func (s *Server) historyTab(w http.ResponseWriter, r *http.Request) {
	tab, ok := historyTabParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := history.Filter{Query: q.Get("q"), MovementType: q.Get("type")}
	for _, d := range []struct {
		raw string
		dst *time.Time
	}{{q.Get("from"), &f.From}, {q.Get("to"), &f.To}} {
		if d.raw == "" {
			continue
		}
		day, err := history.ParseDay(d.raw)
		if err != nil {
			badRequest(w, "Fecha inválida: "+d.raw)
			return
		}
		*d.dst = day
	}
	scope := history.Scope{MovementType: f.MovementType, From: f.From, To: f.To}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"user", &scope.UserID}, {"entity", &scope.EntityID}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "Identificador inválido: "+raw)
			return
		}
		*p.dst = n
	}

	v := history.New(s.Audits)
	if err := v.LoadScope(r.Context(), tab, scope); err != nil {
		writeError(w, r, err)
		return
	}
	resp := historyResp{Tab: tab, Rows: v.Rows(tab, f)}
	if tab == history.TabInventory {
		resp.MovementTypes = v.MovementTypes()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) historyRecord(w http.ResponseWriter, r *http.Request) {
	tab, ok := historyTabParam(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "ID de registro inválido")
		return
	}
	row, err := history.New(s.Audits).Record(r.Context(), tab, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
