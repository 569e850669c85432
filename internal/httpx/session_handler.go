package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/router"
	"github.com/economato/go-order-desk/internal/session"
	"github.com/economato/go-order-desk/internal/validation"
)

type loginResp struct {
	session.Claims
	Role api.Role `json:"role,omitempty"`
}

type routeResp struct {
	router.Route
	Routes []router.Route `json:"routes"`
}

func (s *Server) registerSession(r chi.Router) {
	r.Post("/session/login", s.login)
	r.Post("/session/logout", s.logout)
	r.Post("/session/register", s.register)
	r.Get("/session/validate", s.validateToken)
	r.Get("/session", s.currentSession)
	r.Get("/route", s.currentRoute)
	r.Put("/route/{name}", s.navigate)
}

// login reuses the caller's session id when it has one, so the stored
// route survives a re-login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "JSON inválido")
		return
	}
	id := sessionID(r)
	if id == "" {
		id = uuid.NewString()
	}
	info, err := s.Sessions.Login(r.Context(), id, req.Name, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  info.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, loginResp{Claims: info.Claims, Role: info.Role})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "JSON inválido")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.Accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// validateToken asks the backend about the caller's token, from the
// Authorization header or the session cookie.
func (s *Server) validateToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(r)
	if !ok {
		id := sessionID(r)
		if id == "" {
			writeError(w, r, session.ErrNoSession)
			return
		}
		var err error
		if token, err = s.Sessions.Token(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	v, err := s.Accounts.Validate(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" {
		if err := s.Sessions.Logout(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, Expires: time.Unix(0, 0)})
	writeJSON(w, http.StatusOK, message{Message: session.LoggedOutMessage})
}

func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" {
		writeError(w, r, session.ErrNoSession)
		return
	}
	c, err := s.Sessions.Current(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) router(r *http.Request) (*router.Router, error) {
	id := sessionID(r)
	if id == "" {
		return nil, session.ErrNoSession
	}
	return router.New(s.Routes(id), s.publisher(), "session:"+id), nil
}

func (s *Server) currentRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := s.router(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cur := rt.Restore(r.Context())
	writeJSON(w, http.StatusOK, routeResp{Route: cur, Routes: router.Routes()})
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	rt, err := s.router(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := rt.Navigate(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routeResp{Route: cur, Routes: router.Routes()})
}
