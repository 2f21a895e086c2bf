package auth

import "context"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleEmployee Role = "EMPLOYEE"
)

func (r Role) Valid() bool { return r == RoleCustomer || r == RoleEmployee }

type User struct {
	ID           int64
	Login        string
	PasswordHash string
	Role         Role
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	Role   Role   `json:"role"`
}

// UserStore persists user accounts. Lookups report missing users with an
// error of kind apperr.ErrNotFound.
type UserStore interface {
	UserByLogin(ctx context.Context, login string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
