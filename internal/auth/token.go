// Package auth owns login: credential verification strategies, the auth
// tokens minted on success, and the session token table that gates every
// authenticated call.
package auth

import (
	"time"

	"github.com/conceptforge/conceptforge/internal/metaproject"
)

// AuthToken proves a successful login. It is bound to the authenticated user
// and carries its issue time.
type AuthToken struct {
	User     metaproject.UserID `json:"user"`
	IssuedAt time.Time          `json:"issued_at"`
}

// Zero reports whether the token is the zero value, i.e. not a real login.
func (t AuthToken) Zero() bool {
	return t.User == "" && t.IssuedAt.IsZero()
}
