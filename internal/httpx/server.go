// Package httpx is the desk's HTTP surface: every section of the desk
// exposed as JSON over chi, plus an SSE stream of desk events.
package httpx

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/board"
	"github.com/economato/go-order-desk/internal/creation"
	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/history"
	"github.com/economato/go-order-desk/internal/journal"
	"github.com/economato/go-order-desk/internal/reception"
	"github.com/economato/go-order-desk/internal/recipes"
	"github.com/economato/go-order-desk/internal/router"
	"github.com/economato/go-order-desk/internal/saga"
	"github.com/economato/go-order-desk/internal/session"
	"github.com/economato/go-order-desk/internal/telemetry"
)

// SessionCookie carries the desk session id between requests.
const SessionCookie = "desk_session"

const requestTimeout = 15 * time.Second

// OrderStore is everything the sections need from the order repository.
type OrderStore interface {
	board.Source
	reception.Orders
	creation.Orders
}

// ProductStore is everything the sections need from the product repository.
type ProductStore interface {
	reception.Products
	creation.Products
	recipes.Products
}

var (
	_ OrderStore   = (*api.OrdersClient)(nil)
	_ ProductStore = (*api.ProductsClient)(nil)
)

// Accounts is the backend's account side: sign-up and token checks.
type Accounts interface {
	Register(ctx context.Context, in api.RegisterRequest) (api.User, error)
	Validate(ctx context.Context, token string) (api.TokenValidation, error)
}

var _ Accounts = (*api.AuthClient)(nil)

// Server holds the shared collaborators. Section state (board filters,
// the open reception form, a loaded history tab) lives for one request.
type Server struct {
	Orders    OrderStore
	Products  ProductStore
	Users     creation.Users
	Recipes   recipes.Recipes
	Allergens recipes.Allergens
	Audits    history.Audits
	Accounts  Accounts
	Sessions  *session.Manager
	Bus       *events.Bus

	// Optional; nil disables the first three. NewRouter gives Sagas and
	// Routes in-process defaults.
	BoardCache  board.Cache
	Locker      reception.Locker
	Idempotency creation.Idempotency
	Sagas       *saga.Orchestrator
	Routes      func(sessionID string) router.Store
}

// Backend wires a Server to one REST backend client.
func Backend(c *api.Client, bus *events.Bus, sessions *session.Manager) *Server {
	return &Server{
		Orders:    c.Orders,
		Products:  c.Products,
		Users:     c.Users,
		Recipes:   c.Recipes,
		Allergens: c.Allergens,
		Audits:    c.Audits,
		Accounts:  c.Auth,
		Sessions:  sessions,
		Bus:       bus,
	}
}

func NewRouter(s *Server) *chi.Mux {
	if s.Routes == nil {
		s.Routes = memoryRoutes()
	}
	// receptions must outlive the request to be resumed
	if s.Sagas == nil {
		s.Sagas = saga.NewOrchestrator(journal.NewMemory())
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestContext, requestLogger, recoverer)
	r.Use(s.forwardToken)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// the event stream stays open, so it is kept out of the timeout group
	r.Get("/events", s.streamEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		s.registerSession(r)
		s.registerBoard(r)
		s.registerReception(r)
		s.registerCreation(r)
		s.registerRecipes(r)
		s.registerHistory(r)
	})
	return r
}

// publisher keeps a nil bus from turning into a non-nil interface.
func (s *Server) publisher() events.Publisher {
	if s.Bus == nil {
		return nil
	}
	return s.Bus
}

// memoryRoutes keeps one in-process route store per session.
func memoryRoutes() func(string) router.Store {
	var (
		mu     sync.Mutex
		stores = map[string]*router.MemoryStore{}
	)
	return func(id string) router.Store {
		mu.Lock()
		defer mu.Unlock()
		st, ok := stores[id]
		if !ok {
			st = &router.MemoryStore{}
			stores[id] = st
		}
		return st
	}
}

// requestContext picks up the caller's traceparent and copies chi's request
// id where the journal and the bus look for a trace id.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := telemetry.Extract(r.Context(), r.Header)
		ctx = telemetry.WithRequestID(ctx, middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs each request with method, path, status, latency and
// request_id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}

// recoverer turns panics into a 500 without exposing the stack.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Str("request_id", middleware.GetReqID(r.Context())).
					Interface("panic", rec).
					Msg("panic recovered")
				writeJSON(w, http.StatusInternalServerError, apiError{Detail: internalMessage})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// forwardToken puts the caller's backend token on the context: a bearer
// header wins over the session cookie.
func (s *Server) forwardToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if token, ok := bearer(r); ok {
			ctx = api.WithToken(ctx, token)
		} else if id := sessionID(r); id != "" && s.Sessions != nil {
			token, err := s.Sessions.Token(ctx, id)
			if err != nil {
				log.Warn().Err(err).Msg("session token lookup failed")
			}
			if token != "" {
				ctx = api.WithToken(ctx, token)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):]), true
	}
	return "", false
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// detached keeps request values but not the request deadline, for work
// that must finish once it started.
func detached(ctx context.Context) context.Context { return context.WithoutCancel(ctx) }
