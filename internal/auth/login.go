package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/conceptforge/conceptforge/internal/metaproject"
)

// ErrInvalidCredentials indicates a failed login. Unknown user, missing
// credential, and wrong password all collapse into it.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Strategy selects one of the compiled-in credential checks. The set is
// closed on purpose: strategies are picked by configuration value, never
// loaded dynamically.
type Strategy string

// Known strategies.
const (
	// StrategyLocal verifies the password against the bcrypt digest in
	// the server's credential store.
	StrategyLocal Strategy = "local"
	// StrategyDevMode accepts any known user without checking a
	// password. Development only.
	StrategyDevMode Strategy = "devmode"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyLocal, StrategyDevMode:
		return Strategy(name), nil
	case "":
		return StrategyLocal, nil
	default:
		return "", fmt.Errorf("auth: unknown strategy %q", name)
	}
}

// CredentialSource resolves a user's registered password digest. A digest of
// "" with a nil error means the user exists but has no password registered.
type CredentialSource interface {
	Digest(ctx context.Context, id metaproject.UserID) (string, error)
}

// LoginService validates credentials and mints auth tokens.
type LoginService struct {
	source   CredentialSource
	strategy Strategy
	now      func() time.Time
}

// NewLoginService constructs a LoginService for the given strategy.
func NewLoginService(source CredentialSource, strategy Strategy) *LoginService {
	return &LoginService{source: source, strategy: strategy, now: time.Now}
}

// Login verifies the password for id under the configured strategy and
// returns a fresh token on success.
func (s *LoginService) Login(ctx context.Context, id metaproject.UserID, password string) (AuthToken, error) {
	digest, err := s.source.Digest(ctx, id)
	if err != nil {
		return AuthToken{}, ErrInvalidCredentials
	}
	switch s.strategy {
	case StrategyDevMode:
		// Known user is enough.
	default:
		if digest == "" {
			return AuthToken{}, ErrInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)); err != nil {
			return AuthToken{}, ErrInvalidCredentials
		}
	}
	return AuthToken{User: id, IssuedAt: s.now()}, nil
}

// HashPassword derives the bcrypt digest stored in the credential registry.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(digest), nil
}
