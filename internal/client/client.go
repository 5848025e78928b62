package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 4 << 10
)

// TokenSource yields the bearer token of the signed-in customer, "" when anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// base is the shared JSON-over-HTTP transport of the collaborator clients.
type base struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

func newBase(baseURL string, tokens TokenSource, timeout time.Duration) base {
	return base{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
	}
}

type request struct {
	method      string
	path        string
	body        any
	out         any
	requireAuth bool
	idempotent  bool
}

func (b base) do(ctx context.Context, r request) error {
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, b.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.idempotent {
		key, ok := domain.IdempotencyKey(ctx)
		if !ok {
			key = uuid.NewString()
		}
		req.Header.Set(idempotencyHeader, key)
	}

	if b.tokens != nil {
		token, err := b.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrAuthenticationRequired, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		} else if r.requireAuth {
			return domain.ErrAuthenticationRequired
		}
	} else if r.requireAuth {
		return domain.ErrAuthenticationRequired
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrNetwork, r.method, r.path, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrAuthenticationRequired
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrStockExceeded
	}
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
}

type tokenKey struct{}

// WithToken stores the customer's bearer token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// ContextToken reads the token placed by WithToken and falls back to Fallback.
type ContextToken struct {
	Fallback TokenSource
}

func (c ContextToken) Token(ctx context.Context) (string, error) {
	if token, ok := ctx.Value(tokenKey{}).(string); ok && token != "" {
		return token, nil
	}
	if c.Fallback != nil {
		return c.Fallback.Token(ctx)
	}
	return "", nil
}
