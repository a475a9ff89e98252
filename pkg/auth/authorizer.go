package auth

import (
	"context"
	"net/http"
)

// RequestSigner signs a prepared request. Satisfied by *Signer.
type RequestSigner interface {
	Sign(ctx context.Context, req *http.Request) error
}

// Authorizer composes the two credential chains for the request executor:
// it attaches the LWA bearer token, then SigV4-signs the result. Safe to
// call before every request; both chains cache aggressively.
type Authorizer struct {
	tokens *TokenProvider
	signer RequestSigner
}

// NewAuthorizer creates an authorizer from the two credential chains.
func NewAuthorizer(tokens *TokenProvider, signer RequestSigner) *Authorizer {
	return &Authorizer{tokens: tokens, signer: signer}
}

// Authorize attaches a valid bearer token and signs the request.
func (a *Authorizer) Authorize(ctx context.Context, req *http.Request) error {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("x-amz-access-token", token)

	return a.signer.Sign(ctx, req)
}

// Invalidate drops the cached bearer token; the next Authorize refreshes it.
func (a *Authorizer) Invalidate() {
	a.tokens.Invalidate()
}
