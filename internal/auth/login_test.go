package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptforge/conceptforge/internal/metaproject"
)

type stubCredentialSource map[metaproject.UserID]string

func (s stubCredentialSource) Digest(_ context.Context, id metaproject.UserID) (string, error) {
	digest, ok := s[id]
	if !ok {
		return "", errors.New("unknown user")
	}
	return digest, nil
}

func TestParseStrategy(t *testing.T) {
	got, err := ParseStrategy("local")
	require.NoError(t, err)
	assert.Equal(t, StrategyLocal, got)

	got, err = ParseStrategy("devmode")
	require.NoError(t, err)
	assert.Equal(t, StrategyDevMode, got)

	got, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyLocal, got)

	_, err = ParseStrategy("ldap")
	assert.Error(t, err)
}

func TestLoginLocal(t *testing.T) {
	ctx := context.Background()
	digest, err := HashPassword("s3cret")
	require.NoError(t, err)
	svc := NewLoginService(stubCredentialSource{"alice": digest}, StrategyLocal)

	token, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", string(token.User))
	assert.False(t, token.IssuedAt.IsZero())

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewLoginService(stubCredentialSource{}, StrategyLocal)

	_, err := svc.Login(context.Background(), "mallory", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginNoDigestRegistered(t *testing.T) {
	svc := NewLoginService(stubCredentialSource{"alice": ""}, StrategyLocal)

	_, err := svc.Login(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDevMode(t *testing.T) {
	ctx := context.Background()
	svc := NewLoginService(stubCredentialSource{"alice": ""}, StrategyDevMode)

	token, err := svc.Login(ctx, "alice", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "alice", string(token.User))

	_, err = svc.Login(ctx, "mallory", "ignored")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
