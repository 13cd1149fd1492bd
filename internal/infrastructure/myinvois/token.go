package myinvois

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Margen antes del vencimiento en el que el token se considera caducado.
const tokenExpiryMargin = 60 * time.Second

// TokenCache guarda el access token compartido. Get devuelve ok=false si no hay.
type TokenCache interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Delete(ctx context.Context) error
}

// MemoryTokenCache caché en proceso (una sola réplica).
type MemoryTokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewMemoryTokenCache crea la caché en memoria.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{now: time.Now}
}

func (c *MemoryTokenCache) Get(_ context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.expires) {
		return "", false, nil
	}
	return c.token, true, nil
}

func (c *MemoryTokenCache) Set(_ context.Context, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.expires = token, c.now().Add(ttl)
	return nil
}

func (c *MemoryTokenCache) Delete(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	return nil
}

// TokenSource obtiene tokens client_credentials de /connect/token.
type TokenSource struct {
	endpoint   string
	clientID   string
	secrets    []string
	httpClient *http.Client
	cache      TokenCache
	mu         sync.Mutex
}

// NewTokenSource crea la fuente. Se prueban los secretos en orden.
func NewTokenSource(apiHost, clientID string, secrets []string, httpClient *http.Client, cache TokenCache) *TokenSource {
	var nonEmpty []string
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if cache == nil {
		cache = NewMemoryTokenCache()
	}
	return &TokenSource{
		endpoint:   strings.TrimRight(apiHost, "/") + "/connect/token",
		clientID:   clientID,
		secrets:    nonEmpty,
		httpClient: httpClient,
		cache:      cache,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token devuelve el token en caché o pide uno nuevo.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok, err := s.cache.Get(ctx); err == nil && ok {
		return tok, nil
	}
	return s.fetch(ctx)
}

// Refresh descarta el token en caché y pide uno nuevo.
func (s *TokenSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.cache.Delete(ctx)
	_, err := s.fetch(ctx)
	return err
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	if len(s.secrets) == 0 {
		return "", fmt.Errorf("token: no hay client secret configurado")
	}
	var lastErr error
	for _, secret := range s.secrets {
		tr, err := s.request(ctx, secret)
		if err != nil {
			lastErr = err
			continue
		}
		ttl := time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryMargin
		if ttl > 0 {
			_ = s.cache.Set(ctx, tr.AccessToken, ttl)
		}
		return tr.AccessToken, nil
	}
	return "", lastErr
}

func (s *TokenSource) request(ctx context.Context, secret string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":     {s.clientID},
		"client_secret": {secret},
		"grant_type":    {"client_credentials"},
		"scope":         {"InvoicingAPI"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("token: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token: HTTP %d: %s", resp.StatusCode, truncate(string(body), 300))
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return nil, fmt.Errorf("token: respuesta inválida")
	}
	return &tr, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
