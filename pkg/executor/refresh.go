package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"helios-hq/helios/pkg/credentials"
)

// RefreshCredentials runs the provider's OAuth refresh flow. Providers
// without a token endpoint (api-key only) decline with (nil, nil), as
// does any non-2xx answer from the token endpoint.
func (e *defaultExecutor) RefreshCredentials(ctx context.Context, conn *credentials.Connection) (*credentials.Tokens, error) {
	if e.info.TokenURL == "" || conn.RefreshToken == "" {
		return nil, nil
	}
	switch e.info.RefreshStyle {
	case "json":
		return e.refreshJSON(ctx, conn)
	case "form", "basic":
		return e.refreshOAuth2(ctx, conn)
	default:
		return nil, nil
	}
}

// refreshOAuth2 covers the form-encoded flows (Codex, Qwen, Google) and
// the Basic-auth flow (iFlow); the auth style decides whether the
// client credentials travel in the form body or an Authorization
// header.
func (e *defaultExecutor) refreshOAuth2(ctx context.Context, conn *credentials.Connection) (*credentials.Tokens, error) {
	style := oauth2.AuthStyleInParams
	if e.info.RefreshStyle == "basic" {
		style = oauth2.AuthStyleInHeader
	}
	cfg := &oauth2.Config{
		ClientID:     e.info.ClientID,
		ClientSecret: e.info.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  e.info.TokenURL,
			AuthStyle: style,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken}).Token()
	if err != nil {
		e.log.Warn("token refresh declined",
			"provider", e.info.ID,
			"connection", conn.ID,
			"error", err)
		return nil, nil
	}

	tokens := &credentials.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    time.Until(tok.Expiry),
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = id
	}
	return tokens, nil
}

// refreshJSON covers Anthropic's JSON-body token endpoint.
func (e *defaultExecutor) refreshJSON(ctx context.Context, conn *credentials.Connection) (*credentials.Tokens, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": conn.RefreshToken,
		"client_id":     e.info.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal refresh request: %w", err)
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if !postJSON(ctx, e.client, e.info.TokenURL, nil, payload, &out, e.log, e.info.ID, conn.ID) {
		return nil, nil
	}
	return &credentials.Tokens{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    time.Duration(out.ExpiresIn) * time.Second,
	}, nil
}

// postJSON posts a JSON body and decodes a JSON answer. Returns false
// on transport failure or non-2xx, logging the reason.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload []byte, out interface{}, log *slog.Logger, provider, connID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Warn("token refresh request build failed", "provider", provider, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Warn("token refresh failed", "provider", provider, "connection", connID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn("token refresh declined",
			"provider", provider,
			"connection", connID,
			"status", resp.StatusCode,
			"body", string(body))
		return false
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Warn("token refresh response malformed", "provider", provider, "error", err)
		return false
	}
	return true
}
