// Package payment drives the escrow flow: installing instruction tokens,
// verifying the gateway's signed callback and capturing the job cost.
package payment

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

	"github.com/recapturedocs/recapturedocs/internal/contract"
	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/retry"
)

var tokenSchema = contract.MustCompile("install_instruction_response.json", map[string]any{
	"type":     "object",
	"required": []any{"tokenId"},
	"properties": map[string]any{
		"tokenId": map[string]any{"type": "string", "minLength": 1},
	},
})

var verifySchema = contract.MustCompile("verify_signature_response.json", map[string]any{
	"type":     "object",
	"required": []any{"verificationStatus"},
	"properties": map[string]any{
		"verificationStatus": map[string]any{"enum": []any{"Success", "Failure"}},
	},
})

var paySchema = contract.MustCompile("pay_response.json", map[string]any{
	"type":     "object",
	"required": []any{"transactionId", "transactionStatus"},
	"properties": map[string]any{
		"transactionId":     map[string]any{"type": "string", "minLength": 1},
		"transactionStatus": map[string]any{"enum": []any{"Success", "Pending", "Failure", "Cancelled", "Reserved"}},
	},
})

// GatewayConfig holds HTTP gateway settings.
type GatewayConfig struct {
	Endpoint    string
	PipelineURL string
	AccessKey   string
	Timeout     time.Duration
	Retry       retry.Config
}

// HTTPGateway is a domain.PaymentGateway backed by the gateway REST API.
type HTTPGateway struct {
	endpoint    string
	pipelineURL string
	accessKey   string
	httpClient  *http.Client
	retry       retry.Config
	logger      *observability.Logger
}

// NewHTTPGateway creates a gateway client.
func NewHTTPGateway(cfg GatewayConfig, logger *observability.Logger) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		pipelineURL: cfg.PipelineURL,
		accessKey:   cfg.AccessKey,
		httpClient:  &http.Client{Timeout: timeout},
		retry:       cfg.Retry,
		logger:      logger,
	}
}

type installInstructionRequest struct {
	Role            string `json:"role"`
	TokenType       string `json:"tokenType"`
	CallerReference string `json:"callerReference"`
}

type tokenResponse struct {
	TokenID string `json:"tokenId"`
}

type verifyRequest struct {
	URLEndPoint    string `json:"urlEndPoint"`
	HTTPParameters string `json:"httpParameters"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verificationStatus"`
}

type payRequest struct {
	Amount          string `json:"transactionAmount"`
	CurrencyCode    string `json:"currencyCode"`
	SenderTokenID   string `json:"senderTokenId"`
	RecipientToken  string `json:"recipientTokenId"`
	CallerTokenID   string `json:"callerTokenId"`
	CallerReference string `json:"callerReference"`
}

type payResponse struct {
	TransactionID     string `json:"transactionId"`
	TransactionStatus string `json:"transactionStatus"`
}

// InstallCallerInstruction implements domain.PaymentGateway.
func (g *HTTPGateway) InstallCallerInstruction(ctx context.Context) (string, error) {
	return g.install(ctx, "caller")
}

// InstallRecipientInstruction implements domain.PaymentGateway.
func (g *HTTPGateway) InstallRecipientInstruction(ctx context.Context) (string, error) {
	return g.install(ctx, "recipient")
}

func (g *HTTPGateway) install(ctx context.Context, role string) (string, error) {
	body, err := json.Marshal(installInstructionRequest{
		Role:            role,
		TokenType:       "Unrestricted",
		CallerReference: role + "-" + time.Now().UTC().Format("20060102T150405.000000000"),
	})
	if err != nil {
		return "", domain.PaymentGatewayFailure("marshal instruction", err)
	}

	data, err := g.do(ctx, http.MethodPost, "/instructions/"+role, body, false)
	if err != nil {
		return "", domain.PaymentGatewayFailure(fmt.Sprintf("install %s instruction", role), err)
	}

	var resp tokenResponse
	if err := tokenSchema.Decode(data, &resp); err != nil {
		return "", domain.PaymentGatewayFailure(fmt.Sprintf("install %s instruction response", role), err)
	}
	return resp.TokenID, nil
}

// BuildRedirectURL appends params to the co-branded pipeline URL.
func (g *HTTPGateway) BuildRedirectURL(params url.Values) (string, error) {
	return buildRedirectURL(g.pipelineURL, params)
}

// VerifySignature asks the gateway to verify the callback signature.
func (g *HTTPGateway) VerifySignature(ctx context.Context, endpointURL, queryString string) (bool, error) {
	body, err := json.Marshal(verifyRequest{URLEndPoint: endpointURL, HTTPParameters: queryString})
	if err != nil {
		return false, domain.PaymentGatewayFailure("marshal verify request", err)
	}

	data, err := g.do(ctx, http.MethodPost, "/signatures/verify", body, true)
	if err != nil {
		return false, domain.PaymentGatewayFailure("verify signature", err)
	}

	var resp verifyResponse
	if err := verifySchema.Decode(data, &resp); err != nil {
		return false, domain.PaymentGatewayFailure("verify signature response", err)
	}
	return resp.VerificationStatus == "Success", nil
}

// Capture implements domain.PaymentGateway. Reference is sent as the caller
// reference, which the gateway uses to reject duplicate payments.
func (g *HTTPGateway) Capture(ctx context.Context, req domain.CaptureRequest) (*domain.CaptureResult, error) {
	body, err := json.Marshal(payRequest{
		Amount:          FormatAmount(req.AmountCents),
		CurrencyCode:    "USD",
		SenderTokenID:   req.SenderToken,
		RecipientToken:  req.RecipientToken,
		CallerTokenID:   req.CallerToken,
		CallerReference: req.Reference,
	})
	if err != nil {
		return nil, domain.PaymentGatewayFailure("marshal pay request", err)
	}

	data, err := g.do(ctx, http.MethodPost, "/pay", body, true)
	if err != nil {
		return nil, domain.PaymentGatewayFailure("pay", err)
	}

	var resp payResponse
	if err := paySchema.Decode(data, &resp); err != nil {
		return nil, domain.PaymentGatewayFailure("pay response", err)
	}

	g.logger.Info().
		Str("transaction_id", resp.TransactionID).
		Str("transaction_status", resp.TransactionStatus).
		Str("reference", req.Reference).
		Msg("Payment captured")

	return &domain.CaptureResult{TransactionID: resp.TransactionID, Status: resp.TransactionStatus}, nil
}

// do sends one gateway call. Only idempotent calls are retried on server
// errors: an install mints a new token each time it succeeds.
func (g *HTTPGateway) do(ctx context.Context, method, path string, body []byte, idempotent bool) ([]byte, error) {
	send := func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, g.endpoint+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if g.accessKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.accessKey)
		}
		if traceID := observability.TraceIDFromContext(ctx); traceID != "" {
			req.Header.Set("X-Request-ID", traceID)
		}
		return g.httpClient.Do(req)
	}

	start := time.Now()
	resp, err := retry.Do(ctx, g.retry, g.logger, idempotent, send)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	g.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Payment gateway call")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func buildRedirectURL(pipelineURL string, params url.Values) (string, error) {
	u, err := url.Parse(pipelineURL)
	if err != nil {
		return "", domain.PaymentGatewayFailure("parse pipeline url", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", domain.PaymentGatewayFailure(fmt.Sprintf("pipeline url %q is not absolute", pipelineURL), nil)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FormatAmount renders cents as a decimal dollar string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
