package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/economato/go-order-desk/internal/journal"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/reception"
	"github.com/economato/go-order-desk/internal/saga"
)

// quantityInput takes the received quantity as typed, from a JSON string
// or a number.
type quantityInput string

func (q *quantityInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = quantityInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*q = quantityInput(n.String())
	return nil
}

// receivedLine addresses a form line by index, or by product when the
// product is on a single line.
type receivedLine struct {
	Line      *int          `json:"line"`
	ProductID int           `json:"productId"`
	Received  quantityInput `json:"received"`
}

func (l receivedLine) apply(f *reception.Form) error {
	if l.Line != nil {
		return f.SetReceived(*l.Line, string(l.Received))
	}
	return f.SetProduct(l.ProductID, string(l.Received))
}

type confirmReq struct {
	Lines      []receivedLine `json:"lines"`
	Confirmed  bool           `json:"confirmed"`
	Incomplete bool           `json:"incomplete"`
}

type formResp struct {
	Order    orders.Order          `json:"order"`
	Lines    []reception.LineState `json:"lines"`
	AllEqual bool                  `json:"allEqual"`
}

// confirmationResp asks the caller to repeat the request with confirmed
// set once the operator has read the prompt.
type confirmationResp struct {
	ConfirmationRequired bool             `json:"confirmationRequired"`
	Prompt               reception.Prompt `json:"prompt"`
	Form                 formResp         `json:"form"`
}

func (s *Server) registerReception(r chi.Router) {
	r.Get("/reception/pending", s.pendingReceptions)
	r.Get("/reception/sagas/{sagaId}", s.receptionSaga)
	r.Post("/reception/sagas/{sagaId}/resume", s.resumeReception)
	r.Post("/reception/sagas/{sagaId}/compensate", s.compensateReception)
	r.Get("/reception/{id}", s.receptionForm)
	r.Post("/reception/{id}/confirm", s.confirmReception)
}

func (s *Server) workflow() *reception.Workflow {
	return reception.New(s.Orders, s.Products,
		reception.WithPublisher(s.publisher()),
		reception.WithLocker(s.Locker),
		reception.WithOrchestrator(s.Sagas),
	)
}

func newFormResp(f *reception.Form) formResp {
	return formResp{Order: f.Order, Lines: f.Lines(), AllEqual: f.AllEqual()}
}

func (s *Server) pendingReceptions(w http.ResponseWriter, r *http.Request) {
	wf := s.workflow()
	if _, err := wf.ListPending(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Filter(r.URL.Query().Get("q")))
}

func (s *Server) receptionForm(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "ID de orden inválido")
		return
	}
	f, err := s.workflow().OpenForm(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFormResp(f))
}

// confirmReception opens the form, applies the typed quantities and runs
// the reception. Without confirmed it stops at the prompt and writes
// nothing.
func (s *Server) confirmReception(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "ID de orden inválido")
		return
	}
	var req confirmReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "JSON inválido")
		return
	}

	wf := s.workflow()
	f, err := wf.OpenForm(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, l := range req.Lines {
		if err := l.apply(f); err != nil {
			writeError(w, r, err)
			return
		}
	}

	// once stock starts moving the run is finished even if the caller leaves
	ctx := detached(r.Context())
	var res reception.Result
	if req.Incomplete {
		res, err = wf.MarkIncomplete(ctx, f)
	} else {
		var asked *reception.Prompt
		confirmer := reception.ConfirmFunc(func(_ context.Context, p reception.Prompt) (bool, error) {
			if req.Confirmed {
				return true, nil
			}
			asked = &p
			return false, nil
		})
		res, err = wf.Confirm(ctx, f, confirmer)
		if asked != nil && errors.Is(err, reception.ErrCancelled) {
			writeJSON(w, http.StatusOK, confirmationResp{ConfirmationRequired: true, Prompt: *asked, Form: newFormResp(f)})
			return
		}
	}
	s.writeReception(w, r, res, err)
}

// writeReception reports a run. A run stopped at a step or at a journal
// write answers 502 with the saga id so it can be resumed or compensated.
func (s *Server) writeReception(w http.ResponseWriter, r *http.Request, res reception.Result, err error) {
	var (
		se *saga.StepError
		je *saga.JournalError
	)
	if errors.As(err, &se) || errors.As(err, &je) {
		writeJSON(w, http.StatusBadGateway, apiError{Detail: res.Message, Result: &res})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) receptionSaga(w http.ResponseWriter, r *http.Request) {
	e, err := s.workflow().Saga(r.Context(), chi.URLParam(r, "sagaId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if e == nil {
		writeError(w, r, journal.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) resumeReception(w http.ResponseWriter, r *http.Request) {
	res, err := s.workflow().Resume(detached(r.Context()), chi.URLParam(r, "sagaId"))
	s.writeReception(w, r, res, err)
}

func (s *Server) compensateReception(w http.ResponseWriter, r *http.Request) {
	res, err := s.workflow().Compensate(detached(r.Context()), chi.URLParam(r, "sagaId"))
	s.writeReception(w, r, res, err)
}
