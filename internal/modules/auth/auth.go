// Package auth is the boundary to the (external) authentication system.
// This service only needs a caller identity and role; sessions, password
// storage and permissions live elsewhere.
package auth

import (
	"context"
	"errors"
)

const RoleAdmin = "admin"

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	UserID string
	Role   string
}

type Authorizer interface {
	Authenticate(ctx context.Context, bearerToken string) (Identity, error)
}

// StaticAuthorizer maps fixed bearer tokens to identities. Development
// and test use only.
type StaticAuthorizer struct {
	Tokens map[string]Identity
}

func (a *StaticAuthorizer) Authenticate(ctx context.Context, bearerToken string) (Identity, error) {
	id, ok := a.Tokens[bearerToken]
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}
