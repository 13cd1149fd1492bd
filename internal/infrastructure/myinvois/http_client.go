package myinvois

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ClientConfig parámetros del cliente HTTP.
type ClientConfig struct {
	APIHost       string
	ClientID      string
	ClientSecrets []string
	Timeout       time.Duration
	RatePerSecond float64
	RateBurst     int
}

// HTTPClient implementa Transport contra el API MyInvois.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource
	limiter    *rate.Limiter
}

// NewHTTPClient crea el cliente. cache puede ser nil (caché en memoria).
func NewHTTPClient(cfg ClientConfig, cache TokenCache) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := &http.Client{Timeout: timeout}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	base := strings.TrimRight(cfg.APIHost, "/")
	return &HTTPClient{
		baseURL:    base,
		httpClient: hc,
		tokens:     NewTokenSource(base, cfg.ClientID, cfg.ClientSecrets, hc, cache),
		limiter:    rate.NewLimiter(limit, burst),
	}
}

var _ Transport = (*HTTPClient)(nil)

// ── Operaciones ────────────────────────────────────────────────────────────────

type submitDocument struct {
	Format       string `json:"format"`
	DocumentHash string `json:"documentHash"`
	CodeNumber   string `json:"codeNumber"`
	Document     string `json:"document"`
}

type submitResponse struct {
	SubmissionUID     string `json:"submissionUid"`
	AcceptedDocuments []struct {
		UUID              string `json:"uuid"`
		InvoiceCodeNumber string `json:"invoiceCodeNumber"`
	} `json:"acceptedDocuments"`
}

// Submit envía un documento. RemoteID sale del primer documento aceptado.
func (c *HTTPClient) Submit(ctx context.Context, documentHash, documentNo, documentBase64 string) (*SubmitResult, error) {
	body, err := json.Marshal(map[string][]submitDocument{
		"documents": {{
			Format:       "JSON",
			DocumentHash: documentHash,
			CodeNumber:   documentNo,
			Document:     documentBase64,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("myinvois submit: %w", err)
	}
	code, raw, err := c.do(ctx, http.MethodPost, "/api/v1.0/documentsubmissions/", body)
	if err != nil {
		return nil, fmt.Errorf("myinvois submit %s: %w", documentNo, err)
	}
	res := &SubmitResult{StatusCode: code, Body: raw}
	var sr submitResponse
	if json.Unmarshal([]byte(raw), &sr) == nil && len(sr.AcceptedDocuments) > 0 {
		res.RemoteID = sr.AcceptedDocuments[0].UUID
	}
	return res, nil
}

type detailsResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
	LongID string `json:"longId"`
}

// GetStatus consulta el detalle del documento remoto.
func (c *HTTPClient) GetStatus(ctx context.Context, remoteID string) (*StatusResult, error) {
	code, raw, err := c.do(ctx, http.MethodGet, "/api/v1.0/documents/"+url.PathEscape(remoteID)+"/details", nil)
	if err != nil {
		return nil, fmt.Errorf("myinvois status %s: %w", remoteID, err)
	}
	res := &StatusResult{StatusCode: code, Body: raw}
	var dr detailsResponse
	if code == http.StatusOK && json.Unmarshal([]byte(raw), &dr) == nil {
		res.Status, res.LongID = dr.Status, dr.LongID
	}
	return res, nil
}

// Cancel solicita la cancelación del documento remoto.
func (c *HTTPClient) Cancel(ctx context.Context, remoteID, reason string) (*CancelResult, error) {
	body, err := json.Marshal(map[string]string{"status": "cancelled", "reason": reason})
	if err != nil {
		return nil, fmt.Errorf("myinvois cancel: %w", err)
	}
	code, raw, err := c.do(ctx, http.MethodPut, "/api/v1.0/documents/state/"+url.PathEscape(remoteID)+"/state", body)
	if err != nil {
		return nil, fmt.Errorf("myinvois cancel %s: %w", remoteID, err)
	}
	return &CancelResult{Accepted: code == http.StatusOK, StatusCode: code, Body: raw}, nil
}

// ValidateTIN valida un TIN con su par de identificación.
func (c *HTTPClient) ValidateTIN(ctx context.Context, tin, idType, idValue string) (*TINResult, error) {
	q := url.Values{"idType": {idType}, "idValue": {idValue}}
	path := "/api/v1.0/taxpayer/validate/" + url.PathEscape(tin) + "?" + q.Encode()
	code, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("myinvois validate tin: %w", err)
	}
	return &TINResult{Valid: code == http.StatusOK, StatusCode: code, Body: raw}, nil
}

// RefreshToken fuerza un token nuevo.
func (c *HTTPClient) RefreshToken(ctx context.Context) error {
	return c.tokens.Refresh(ctx)
}

// ── HTTP ───────────────────────────────────────────────────────────────────────

// do ejecuta la llamada autenticada. Ante un 401 renueva el token y reintenta una vez.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (int, string, error) {
	code, raw, err := c.once(ctx, method, path, body)
	if err != nil || code != http.StatusUnauthorized {
		return code, raw, err
	}
	if err := c.tokens.Refresh(ctx); err != nil {
		return 0, "", err
	}
	return c.once(ctx, method, path, body)
}

func (c *HTTPClient) once(ctx context.Context, method, path string, body []byte) (int, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, "", err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, "", err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, "", fmt.Errorf("crear request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, "", fmt.Errorf("leer respuesta: %w", err)
	}
	return resp.StatusCode, string(raw), nil
}
