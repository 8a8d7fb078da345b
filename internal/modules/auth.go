package modules

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bollustrado/mortimmy/internal/core"
)

const (
	DefaultJWTLeeway = 30 * time.Second

	signedRequestParam = "signed_request"
)

var (
	ErrMissingSignature  = errors.New("missing signed token")
	ErrUnknownIssuer     = errors.New("token issuer is not installed")
	ErrInvalidSignature  = errors.New("invalid signed token")
	ErrInstallationMatch = errors.New("token issuer does not match oauth_client_id")
)

// signedToken extracts the host's JWT from "Authorization: JWT <token>" or the
// signed_request query parameter.
func signedToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "JWT") {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get(signedRequestParam)
}

// verifySignedRequest checks that the delivery was signed by an installed tenant with
// its oauthSecret (HS256, iss = oauthId) and returns that installation.
func (r *Registry) verifySignedRequest(ctx context.Context, req *http.Request) (*core.Installation, error) {
	raw := signedToken(req)
	if raw == "" {
		return nil, ErrMissingSignature
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	issuer, err := unverified.Claims.GetIssuer()
	if err != nil || issuer == "" {
		return nil, fmt.Errorf("%w: no issuer", ErrInvalidSignature)
	}

	inst, ok, err := r.installations.GetInstallation(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("looking up installation: %w", err)
	}
	if !ok {
		return nil, ErrUnknownIssuer
	}

	_, err = jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(inst.OAuthSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(inst.OAuthID),
		jwt.WithLeeway(r.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return inst, nil
}
