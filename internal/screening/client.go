package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/customs-screening-pipeline/internal/config"
)

const maxResponseBytes = 10 << 20

// API is the screening collaborator. Do re-issues a stored request as-is and
// is what the retry engine uses.
type API interface {
	ScreenPackage(ctx context.Context, req *ScreeningRequest) (*ScreeningResult, error)
	RegisterShipment(ctx context.Context, payload interface{}) (json.RawMessage, error)
	VerifyShipment(ctx context.Context, payload interface{}) (json.RawMessage, error)
	GetPlatforms(ctx context.Context) (json.RawMessage, error)
	PayDuty(ctx context.Context, payload interface{}) (json.RawMessage, error)
	SubmitAudit(ctx context.Context, payload interface{}) (json.RawMessage, error)
	Do(ctx context.Context, method, endpoint string, body json.RawMessage) (*Envelope, error)
}

// Client talks to the screening API over HTTP
type Client struct {
	baseURL     string
	apiKey      string
	environment string
	timeout     time.Duration
	http        *http.Client
	log         zerolog.Logger
}

// NewClient creates a screening API client
func NewClient(cfg *config.ScreeningConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		environment: cfg.Environment,
		timeout:     cfg.Timeout,
		http:        &http.Client{},
		log:         log.With().Str("component", "screening").Logger(),
	}
}

// ScreenPackage submits one package for customs screening
func (c *Client) ScreenPackage(ctx context.Context, req *ScreeningRequest) (*ScreeningResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal screening request: %w", err)
	}
	env, err := c.Do(ctx, http.MethodPost, EndpointScreenPackage, body)
	if err != nil {
		return nil, err
	}
	return DecodeScreeningResult(env)
}

// RegisterShipment registers a shipment manifest
func (c *Client) RegisterShipment(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, EndpointRegisterShipment, payload)
}

// VerifyShipment checks a registered shipment
func (c *Client) VerifyShipment(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, EndpointVerifyShipment, payload)
}

// GetPlatforms lists the platforms known to the screening API
func (c *Client) GetPlatforms(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, EndpointPlatforms, nil)
}

// PayDuty pays the duties assessed for a package
func (c *Client) PayDuty(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, EndpointPayDuty, payload)
}

// SubmitAudit answers an audit request
func (c *Client) SubmitAudit(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, EndpointSubmitAudit, payload)
}

func (c *Client) call(ctx context.Context, method, endpoint string, payload interface{}) (json.RawMessage, error) {
	var body json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		body = b
	}
	env, err := c.Do(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Do sends one request and decodes the envelope. Every call is bounded by
// the configured timeout. A non-2xx status, success=false or an unreadable
// body is returned as *APIError; transport failures are wrapped as-is.
func (c *Client) Do(ctx context.Context, method, endpoint string, body json.RawMessage) (*Envelope, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.environment != "" {
		req.Header.Set("X-Environment", c.environment)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("Screening request failed")
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, endpoint, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Screening request completed")

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if !ok {
			return nil, &APIError{StatusCode: resp.StatusCode, Code: CodeHTTPStatus, Message: statusMessage(resp.StatusCode, raw)}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: CodeMalformedResponse, Message: err.Error()}
	}
	env.Raw = json.RawMessage(raw)

	if !ok || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: CodeHTTPStatus, Message: statusMessage(resp.StatusCode, nil)}
		if ok {
			// a 2xx without success or an error body is not a real answer
			apiErr.Code = CodeMalformedResponse
			apiErr.Message = "response carries neither success nor an error"
			if env.Error != nil {
				apiErr.Code = ""
				apiErr.Message = "request was not successful"
			}
		}
		if env.Error != nil {
			if env.Error.Code != "" {
				apiErr.Code = env.Error.Code
			}
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
			apiErr.Details = env.Error.Details
		}
		return nil, apiErr
	}

	return &env, nil
}

func statusMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return http.StatusText(status)
	}
	return text
}

var _ API = (*Client)(nil)
