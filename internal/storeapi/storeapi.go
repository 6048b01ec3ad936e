// Package storeapi is the HTTP transport shared by the Schedule Store and
// Recipe Catalog clients: base URL handling, optional signed bearer tokens,
// outbound rate limiting and decoding of the store's error bodies.
package storeapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meal-scheduler/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// ErrNotFound matches any StatusError carrying a 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned when the store answers with a non-success status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("store api error: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("store api error: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is makes errors.Is(err, ErrNotFound) work for 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Transport performs JSON requests against the store's REST API.
type Transport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds a Transport from the store settings in cfg.
func New(cfg *config.Config) *Transport {
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.StoreRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.StoreRequestsPerSecond)
	}
	return &Transport{
		baseURL:    strings.TrimRight(cfg.StoreURL, "/"),
		apiKey:     cfg.StoreAPIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burstFor(cfg.StoreRequestsPerSecond)),
	}
}

func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// Do sends a request with an optional JSON body and decodes a JSON response
// into out when out is non-nil. Any status outside 2xx yields *StatusError.
func (t *Transport) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.apiKey != "" {
		token, err := t.createToken()
		if err != nil {
			return fmt.Errorf("failed to create api token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readDetail extracts the "detail" message the store puts in error bodies,
// falling back to the raw text.
func readDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch d := body.Detail.(type) {
		case string:
			return d
		case nil:
		default:
			b, _ := json.Marshal(d)
			return string(b)
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// createToken signs a short-lived HS256 token from an "id:secret" key, the
// secret being hex encoded.
func (t *Transport) createToken() (string, error) {
	id, secretHex, ok := strings.Cut(t.apiKey, ":")
	if !ok {
		return "", fmt.Errorf("invalid api key format: expected id:secret")
	}

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret hex: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"aud": "schedule-store",
	})
	token.Header["kid"] = id

	return token.SignedString(secret)
}
