package hipchat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bollustrado/mortimmy/internal/core"
)

// Token is a freshly issued access token.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
	Claims      map[string]any
}

// claim keys copied from the token response besides access_token
var tokenClaimKeys = []string{"scope", "group_id", "group_name", "expires_in"}

// FetchToken performs the client credentials exchange for inst against its tokenUrl.
// The oauthId/oauthSecret pair is sent as basic auth, the form body only carries
// grant_type=client_credentials.
func (c *Client) FetchToken(ctx context.Context, inst core.Installation) (*Token, error) {
	if inst.TokenURL == "" {
		return nil, fmt.Errorf("installation '%s' has no tokenUrl", inst.OAuthID)
	}

	cfg := clientcredentials.Config{
		ClientID:     inst.OAuthID,
		ClientSecret: inst.OAuthSecret,
		TokenURL:     inst.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, classifyTokenError(ctx, inst.TokenURL, err)
	}

	expiresIn := expiresInFromToken(tok)
	if expiresIn <= 0 {
		return nil, fmt.Errorf("%w: missing expires_in", ErrInvalidTokenResponse)
	}

	claims := make(map[string]any)
	for _, key := range tokenClaimKeys {
		if v := tok.Extra(key); v != nil {
			claims[key] = v
		}
	}
	if tok.TokenType != "" {
		claims["token_type"] = tok.TokenType
	}

	return &Token{
		AccessToken: tok.AccessToken,
		ExpiresIn:   expiresIn,
		Claims:      claims,
	}, nil
}

func expiresInFromToken(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return time.Duration(v) * time.Second
	case string:
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return time.Until(tok.Expiry).Round(time.Second)
}

// classifyTokenError separates transport and status failures (retryable on the next
// cycle) from malformed 2xx answers.
func classifyTokenError(ctx context.Context, tokenURL string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		upstream := &UpstreamError{Op: "token exchange", URL: tokenURL, Body: string(retrieveErr.Body)}
		if retrieveErr.Response != nil {
			upstream.StatusCode = retrieveErr.Response.StatusCode
		}
		return upstream
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || ctx.Err() != nil {
		return fmt.Errorf("token exchange: %w", err)
	}

	return fmt.Errorf("%w: %v", ErrInvalidTokenResponse, err)
}
