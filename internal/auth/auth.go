// Package auth declares the boundary to the external identity system. The
// realtime core never inspects credentials itself; it hands tokens to a
// Verifier injected at startup.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned by a Verifier for missing, expired, or
// malformed credentials.
var ErrInvalidToken = errors.New("auth: invalid token")

// Principal is an authenticated identity.
type Principal struct {
	ID    uuid.UUID
	Admin bool
}

// Verifier validates a credential token and resolves the principal behind it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (*Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*Principal, error) {
	return f(ctx, token)
}

// StaticVerifier resolves tokens from a fixed map. Development and tests
// only; production injects the application's real verifier.
type StaticVerifier map[string]Principal

func (v StaticVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	p, ok := v[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &p, nil
}
