package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUserNotFound is returned when a token refers to a user that no longer exists.
var ErrUserNotFound = errors.New("user not found")

// User is the authenticated caller. IsAdmin is always read from the store,
// never from token claims.
type User struct {
	ID      string
	Name    string
	Email   string
	IsAdmin bool
}

// Repository provides user lookups for request authentication.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
}

type userKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom extracts the authenticated user stored by WithUser.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}
