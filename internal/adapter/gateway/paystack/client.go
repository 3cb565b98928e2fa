// Package paystack is the card-payment gateway adapter.
package paystack

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

	"shipa-backend/config"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// minorUnits converts between the major-unit amounts used everywhere else
// and the gateway's integer cents.
var minorUnits = decimal.NewFromInt(100)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PaymentGateway against the Paystack REST API.
type Client struct {
	http      HTTPClient
	baseURL   string
	secretKey string
	log       zerolog.Logger
}

func NewClient(httpClient HTTPClient, cfg config.PaystackConfig, log zerolog.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		log:       log,
	}
}

// envelope is the wrapper around every Paystack response body.
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeBody struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

type verifyData struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"`
	PaidAt    *time.Time      `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
}

// Initialize opens a checkout. The amount is sent in minor units.
func (c *Client) Initialize(ctx context.Context, req ports.GatewayInitRequest) (*ports.GatewayCheckout, error) {
	body := initializeBody{
		Email:       req.Email,
		Amount:      req.Amount.Mul(minorUnits).Round(0).IntPart(),
		Metadata:    req.Metadata,
		CallbackURL: req.CallbackURL,
	}

	var out envelope[ports.GatewayCheckout]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("reference", out.Data.Reference).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("paystack checkout initialized")

	return &out.Data, nil
}

// Verify fetches the current state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*ports.GatewayVerification, error) {
	var out envelope[verifyData]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return nil, err
	}

	d := out.Data
	return &ports.GatewayVerification{
		Reference: d.Reference,
		Status:    d.Status,
		Amount:    decimal.NewFromInt(d.Amount).Div(minorUnits),
		Currency:  d.Currency,
		Channel:   d.Channel,
		PaidAt:    d.PaidAt,
		Metadata:  metadataMap(d.Metadata),
	}, nil
}

// metadataMap accepts metadata echoed back as an object or as an encoded
// string; anything else yields nil.
func metadataMap(raw json.RawMessage) map[string]any {
	var meta map[string]any
	if json.Unmarshal(raw, &meta) == nil {
		return meta
	}
	var encoded string
	if json.Unmarshal(raw, &encoded) == nil && encoded != "" {
		if json.Unmarshal([]byte(encoded), &meta) == nil {
			return meta
		}
	}
	return nil
}

// do sends one request and decodes the envelope into out. Transport
// failures, non-2xx responses and status=false all become GatewayError.
func (c *Client) do(ctx context.Context, method, path string, in any, out interface {
	ok() (bool, string)
}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("encode paystack request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build paystack request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("paystack request failed")
		return apperror.ErrGateway("", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperror.ErrGateway("", fmt.Errorf("read paystack response: %w", err))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return apperror.ErrGateway(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
		}
		return apperror.ErrGateway("", fmt.Errorf("decode paystack response: %w", err))
	}

	success, message := out.ok()
	if resp.StatusCode >= http.StatusBadRequest || !success {
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("message", message).
			Msg("paystack rejected request")
		return apperror.ErrGateway(message, nil)
	}
	return nil
}

func (e *envelope[T]) ok() (bool, string) {
	return e.Status, e.Message
}
