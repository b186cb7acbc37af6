package session

import "context"

// IdentityProvider establishes and refreshes the user identity
// credential. Anonymous identities are acceptable; the token only has to
// verify at the server gate.
type IdentityProvider interface {
	// SignInAnonymously creates (or restores) an identity for this
	// session.
	SignInAnonymously(ctx context.Context) error

	// IdentityToken returns the current bearer token, refreshing it
	// first when forceRefresh is set. Returning ("", nil) is a contract
	// violation the caller treats as a distinct hard failure.
	IdentityToken(ctx context.Context, forceRefresh bool) (string, error)
}

// AttestationProvider produces the device/app attestation credential.
// Its lifecycle is independent of the identity token; forced refresh is
// rare (bootstrap only).
type AttestationProvider interface {
	AttestationToken(ctx context.Context, forceRefresh bool) (string, error)
}

// StaticCredentials implements both providers with fixed token values.
// Used by the CLI (tokens minted out-of-band) and by tests.
type StaticCredentials struct {
	Identity    string
	Attestation string
}

func (s StaticCredentials) SignInAnonymously(context.Context) error { return nil }

func (s StaticCredentials) IdentityToken(context.Context, bool) (string, error) {
	return s.Identity, nil
}

func (s StaticCredentials) AttestationToken(context.Context, bool) (string, error) {
	return s.Attestation, nil
}
