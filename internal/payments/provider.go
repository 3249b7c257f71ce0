package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/logging"

	"github.com/rs/zerolog"
)

// HTTPProviderClient talks to the external payment provider. The provider is
// an opaque boundary: its responses are the only source of settlement truth.
type HTTPProviderClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewHTTPProviderClient(baseURL, apiKey string, logger *zerolog.Logger) *HTTPProviderClient {
	return &HTTPProviderClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logging.Component(logger, "provider"),
	}
}

type createSessionRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type sessionResponse struct {
	SessionID     string `json:"session_id"`
	CheckoutURL   string `json:"checkout_url"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	FailureReason string `json:"failure_reason"`
}

func (c *HTTPProviderClient) CreateSession(ctx context.Context, bookingRef string, amount int64, currency string) (*domain.CheckoutSession, error) {
	body, err := json.Marshal(createSessionRequest{
		Reference: bookingRef,
		Amount:    amount,
		Currency:  currency,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" || resp.CheckoutURL == "" {
		return nil, fmt.Errorf("provider returned incomplete session: %w", domain.ErrExternalService)
	}

	return &domain.CheckoutSession{SessionID: resp.SessionID, CheckoutURL: resp.CheckoutURL}, nil
}

func (c *HTTPProviderClient) QuerySession(ctx context.Context, sessionID string) (*domain.SessionOutcome, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &resp); err != nil {
		return nil, err
	}

	return &domain.SessionOutcome{
		SessionID:     resp.SessionID,
		Status:        resp.Status,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		FailureReason: resp.FailureReason,
	}, nil
}

func (c *HTTPProviderClient) do(ctx context.Context, method, path string, body *bytes.Reader, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("provider request failed")
		return fmt.Errorf("provider request: %w: %w", err, domain.ErrExternalService)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("provider returned %d: %w", resp.StatusCode, domain.ErrExternalService)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider rejected request with %d: %w", resp.StatusCode, domain.ErrExternalService)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w: %w", err, domain.ErrExternalService)
	}
	return nil
}
