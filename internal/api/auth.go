package api

import (
	"context"
	"fmt"
	"net/http"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleChef  Role = "CHEF"
	RoleUser  Role = "USER"
)

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type LoginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6"`
	Role     Role   `json:"role,omitempty"`
}

type TokenValidation struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
}

type AuthClient struct{ c *Client }

func (a *AuthClient) Login(ctx context.Context, in LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	if err := a.c.do(ctx, http.MethodPost, "/api/auth/login", nil, in, &out); err != nil {
		return LoginResponse{}, err
	}
	if out.Token == "" {
		return LoginResponse{}, fmt.Errorf("login: empty token in response")
	}
	return out, nil
}

func (a *AuthClient) Register(ctx context.Context, in RegisterRequest) (User, error) {
	var out User
	err := a.c.do(ctx, http.MethodPost, "/api/auth/register", nil, in, &out)
	return out, err
}

// Validate asks the backend whether token is still accepted. A 401 is a
// normal "invalid" answer, not an error.
func (a *AuthClient) Validate(ctx context.Context, token string) (TokenValidation, error) {
	var out TokenValidation
	err := a.c.do(WithToken(ctx, token), http.MethodGet, "/api/auth/validate", nil, nil, &out)
	if StatusOf(err) == http.StatusUnauthorized {
		return TokenValidation{Valid: false}, nil
	}
	return out, err
}

type UsersClient struct{ c *Client }

func (u *UsersClient) List(ctx context.Context) ([]User, error) {
	var p Page[User]
	if err := u.c.do(ctx, http.MethodGet, "/api/users", nil, nil, &p); err != nil {
		return nil, err
	}
	return p.Items, nil
}

func (u *UsersClient) Get(ctx context.Context, id int) (User, error) {
	var out User
	err := u.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d", id), nil, nil, &out)
	return out, err
}

func (u *UsersClient) Update(ctx context.Context, id int, in RegisterRequest) (User, error) {
	var out User
	err := u.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/users/%d", id), nil, in, &out)
	return out, err
}

func (u *UsersClient) Delete(ctx context.Context, id int) error {
	return u.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/users/%d", id), nil, nil, nil)
}
