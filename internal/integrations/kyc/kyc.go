// internal/integrations/kyc/kyc.go
package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/util"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

const verificationsPath = "/v1/identity/verifications"

// Config holds the identity-verification partner settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the identity-verification partner over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient initializes a new verification client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type verificationRequest struct {
	UserID     int64  `json:"user_id"`
	DocumentID string `json:"document_id"`
}

// VerifyIdentity submits a document for a decision. Transport failures, non-200 answers and
// undecodable bodies are returned wrapping util.ErrUpstreamFailure.
func (c *Client) VerifyIdentity(ctx context.Context, userID int64, documentID string) (domain.VerificationResult, error) {
	var result domain.VerificationResult

	payload, err := json.Marshal(verificationRequest{UserID: userID, DocumentID: documentID})
	if err != nil {
		return result, fmt.Errorf("verify identity: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verificationsPath, bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("verify identity: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("%w: verify identity: request failed: %w", util.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return result, fmt.Errorf("%w: verify identity: failed to read response: %w", util.ErrUpstreamFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("%w: verify identity: unexpected status code %d", util.ErrUpstreamFailure, resp.StatusCode)
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("%w: verify identity: failed to decode response: %w", util.ErrUpstreamFailure, err)
	}

	c.logger.Debug("Identity verification response", "user_id", userID, "verified", result.Verified)
	return result, nil
}

// MinDocumentLength is the shortest document id the development verifier accepts.
const MinDocumentLength = 6

// DevVerifier approves any document id with at least MinDocumentLength non-blank characters.
// It never leaves the process and must not run in production.
type DevVerifier struct{}

// VerifyIdentity implements the development decision rule.
func (DevVerifier) VerifyIdentity(_ context.Context, _ int64, documentID string) (domain.VerificationResult, error) {
	if len([]rune(strings.TrimSpace(documentID))) < MinDocumentLength {
		return domain.VerificationResult{
			Verified: false,
			Reason:   fmt.Sprintf("document id must have at least %d characters", MinDocumentLength),
		}, nil
	}
	return domain.VerificationResult{Verified: true}, nil
}
