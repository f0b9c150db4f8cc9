package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingKey = errors.New("missing gateway api key")
	ErrInvalidKey = errors.New("invalid api key")
)

// Principal identifies an authenticated caller. KeyID is a stable, non-secret
// fingerprint of the API key suitable for logs.
type Principal struct {
	APIKey string
	KeyID  string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// Authenticate checks token against the configured key set.
func Authenticate(keys map[string]struct{}, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingKey
	}
	matched := 0
	for key := range keys {
		matched |= subtle.ConstantTimeCompare([]byte(key), []byte(token))
	}
	if matched != 1 {
		return nil, ErrInvalidKey
	}
	return &Principal{APIKey: token, KeyID: KeyID(token)}, nil
}

// KeyID returns a short fingerprint of an API key.
func KeyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:6])
}
