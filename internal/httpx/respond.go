package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/board"
	"github.com/economato/go-order-desk/internal/creation"
	"github.com/economato/go-order-desk/internal/history"
	"github.com/economato/go-order-desk/internal/journal"
	"github.com/economato/go-order-desk/internal/reception"
	"github.com/economato/go-order-desk/internal/recipes"
	"github.com/economato/go-order-desk/internal/redisx"
	"github.com/economato/go-order-desk/internal/router"
	"github.com/economato/go-order-desk/internal/saga"
	"github.com/economato/go-order-desk/internal/session"
	"github.com/economato/go-order-desk/internal/validation"
)

const (
	internalMessage   = "Error interno del servidor"
	validationMessage = "Error de validacion"
)

// apiError is the body of every error response.
type apiError struct {
	Detail string                `json:"detail"`
	Fields map[string]string     `json:"fields,omitempty"`
	Lines  []reception.LineError `json:"lines,omitempty"`
	Result *reception.Result     `json:"result,omitempty"`
}

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error { return json.NewDecoder(r.Body).Decode(v) }

func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, apiError{Detail: detail})
}

func idParam(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sentinels maps known errors to a status and the text shown to the
// operator.
var sentinels = []struct {
	err    error
	status int
	detail string
}{
	{redisx.ErrLockHeld, http.StatusConflict, "La orden se está recibiendo en otra sesión"},
	{board.ErrActionNotAllowed, http.StatusConflict, "Acción no disponible para esta orden"},
	{board.ErrOpensReception, http.StatusConflict, "La revisión se realiza desde Recepción"},
	{reception.ErrInvalidTransition, http.StatusConflict, "La orden no puede recibirse en su estado actual"},
	{reception.ErrCancelled, http.StatusConflict, "Recepción cancelada"},
	{reception.ErrUnknownLine, http.StatusBadRequest, "El producto no pertenece a la orden"},
	{reception.ErrAmbiguousProduct, http.StatusBadRequest, "El producto aparece en varias líneas; indica la línea"},
	{creation.ErrLineLimit, http.StatusBadRequest, creation.ErrLineLimit.Error()},
	{saga.ErrAlreadyCompleted, http.StatusConflict, "La recepción ya se completó"},
	{saga.ErrAlreadyCompensated, http.StatusConflict, "La recepción ya fue revertida"},
	{saga.ErrStepMismatch, http.StatusConflict, "La orden cambió desde que se inició la recepción"},
	{journal.ErrNotFound, http.StatusNotFound, "Recepción no encontrada"},
	{router.ErrUnknownRoute, http.StatusNotFound, "Sección desconocida"},
	{history.ErrUnsupportedScope, http.StatusBadRequest, "Filtro no disponible para este historial"},
	{session.ErrNoSession, http.StatusUnauthorized, "No hay sesión activa"},
	{session.ErrExpired, http.StatusUnauthorized, "La sesión ha expirado"},
}

// writeError maps err to a status and a {detail} body. Anything unknown is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if fields := validation.Fields(err); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Detail: validationMessage, Fields: fields})
		return
	}
	var cv *creation.ValidationError
	if errors.As(err, &cv) {
		writeJSON(w, http.StatusBadRequest, apiError{Detail: cv.Message, Fields: cv.Fields})
		return
	}
	var rv *reception.ValidationError
	if errors.As(err, &rv) {
		writeJSON(w, http.StatusBadRequest, apiError{Detail: rv.Error(), Lines: rv.Lines})
		return
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			writeJSON(w, s.status, apiError{Detail: s.detail})
			return
		}
	}

	// section errors already carry the operator's text
	detail := ""
	var (
		ae *recipes.ActionError
		le *history.LoadError
		ce *creation.CreateError
		he *api.HTTPError
	)
	switch {
	case errors.As(err, &ae), errors.As(err, &le), errors.As(err, &ce):
		detail = err.Error()
	case errors.As(err, &he):
		detail = he.Message
	}

	status := api.StatusOf(err)
	switch {
	case status >= 500:
		status = http.StatusBadGateway
	case status >= 400:
	case detail != "":
		status = http.StatusBadGateway
	default:
		log.Error().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Err(err).
			Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, apiError{Detail: internalMessage})
		return
	}
	log.Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, status, apiError{Detail: detail})
}
