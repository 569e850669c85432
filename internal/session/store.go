package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrNoSession = errors.New("session: not logged in")

// Store keeps the token of each session id.
type Store interface {
	Save(ctx context.Context, id, token string, ttl time.Duration) error
	Load(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}

type entry struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type Memory struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

func NewMemory() *Memory { return &Memory{m: map[string]entry{}, now: time.Now} }

func (s *Memory) Save(_ context.Context, id, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = entry{Token: token, Expires: s.now().Add(ttl)}
	return nil
}

func (s *Memory) Load(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok || s.now().After(e.Expires) {
		delete(s.m, id)
		return "", ErrNoSession
	}
	return e.Token, nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}

// File keeps sessions in a JSON file readable only by its owner, for the
// terminal tool between runs.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File { return &File{path: path} }

// DefaultFilePath is the session file under the user's config directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "economato-desk", "session.json"), nil
}

func (f *File) read() (map[string]entry, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]entry{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("session file %s: %w", f.path, err)
	}
	return m, nil
}

func (f *File) write(m map[string]entry) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o600)
}

func (f *File) Save(_ context.Context, id, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	m[id] = entry{Token: token, Expires: time.Now().Add(ttl)}
	return f.write(m)
}

func (f *File) Load(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return "", err
	}
	e, ok := m[id]
	if !ok || time.Now().After(e.Expires) {
		return "", ErrNoSession
	}
	return e.Token, nil
}

func (f *File) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return f.write(m)
}
