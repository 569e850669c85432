// Package session logs operators in against the backend and keeps their
// token for later calls.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/validation"
)

const (
	// DefaultTTL matches the lifetime of the browser auth cookie.
	DefaultTTL = 7 * 24 * time.Hour
	// CheckInterval is how often Watch looks at the token expiry.
	CheckInterval = time.Minute
)

const LoggedOutMessage = "¡Sesión cerrada correctamente!"

var ErrExpired = errors.New("session: token expired")

type Auth interface {
	Login(ctx context.Context, in api.LoginRequest) (api.LoginResponse, error)
}

var _ Auth = (*api.AuthClient)(nil)

// Info is the logged-in operator.
type Info struct {
	Claims
	Role api.Role `json:"role,omitempty"`
}

type Manager struct {
	auth  Auth
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(a Auth, s Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{auth: a, store: s, ttl: ttl, now: time.Now}
}

// Login authenticates against the backend and stores the token under id.
func (m *Manager) Login(ctx context.Context, id, name, password string) (Info, error) {
	req := api.LoginRequest{Name: name, Password: password}
	if err := validation.Struct(req); err != nil {
		return Info{}, fmt.Errorf("login: %w", err)
	}
	resp, err := m.auth.Login(ctx, req)
	if err != nil {
		return Info{}, err
	}
	if err := m.store.Save(ctx, id, resp.Token, m.ttl); err != nil {
		return Info{}, fmt.Errorf("store session: %w", err)
	}
	c, err := Decode(resp.Token)
	if err != nil {
		log.Warn().Err(err).Msg("token payload unreadable")
		c = Claims{Username: name, Roles: []string{}}
	}
	log.Info().Str("user", c.Username).Msg("logged in")
	return Info{Claims: c, Role: resp.Role}, nil
}

func (m *Manager) Logout(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Current returns the claims of the stored token. An expired token is
// dropped and reported as ErrExpired.
func (m *Manager) Current(ctx context.Context, id string) (Claims, error) {
	token, err := m.store.Load(ctx, id)
	if err != nil {
		return Claims{}, err
	}
	c, err := Decode(token)
	if err != nil || c.Expired(m.now()) {
		if derr := m.store.Delete(ctx, id); derr != nil {
			log.Warn().Err(derr).Msg("drop expired session")
		}
		return Claims{}, ErrExpired
	}
	return c, nil
}

// Token returns the stored token for id, or "" when there is none.
func (m *Manager) Token(ctx context.Context, id string) (string, error) {
	t, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrNoSession) {
		return "", nil
	}
	return t, err
}

// Source binds id so the manager can feed an api.Client.
func (m *Manager) Source(id string) api.TokenSource { return source{m: m, id: id} }

type source struct {
	m  *Manager
	id string
}

func (s source) Token(ctx context.Context) (string, error) { return s.m.Token(ctx, s.id) }

// Watch checks the session every interval and logs it out once the token
// has expired, then calls onExpire. It returns when that happens or ctx
// is done.
func (m *Manager) Watch(ctx context.Context, id string, interval time.Duration, onExpire func()) {
	if interval <= 0 {
		interval = CheckInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, err := m.Current(ctx, id)
			if err == nil {
				continue
			}
			log.Warn().Err(err).Msg("token expired, logging out")
			_ = m.Logout(ctx, id)
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}
