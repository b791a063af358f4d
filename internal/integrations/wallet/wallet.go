// internal/integrations/wallet/wallet.go
package wallet

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

	"github.com/shopspring/decimal"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/util"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Config holds the wallet partner settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client confirms deposits and withdrawals with the wallet partner.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient initializes a new wallet partner client.
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
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type transferRequest struct {
	Reference string          `json:"reference"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason"`
}

// ConfirmTransfer posts the transfer to {base}/v1/wallet/{direction}. The transfer reference
// doubles as the Idempotency-Key so a retried call is not applied twice by the partner.
// Anything short of an explicit confirmation is returned wrapping util.ErrUpstreamFailure.
func (c *Client) ConfirmTransfer(ctx context.Context, transfer domain.WalletTransfer) error {
	if !transfer.Direction.Valid() {
		return fmt.Errorf("confirm transfer: unknown direction %q: %w", transfer.Direction, util.ErrInvalidInput)
	}

	payload, err := json.Marshal(transferRequest{
		Reference: transfer.Reference,
		UserID:    transfer.UserID,
		Amount:    transfer.Amount,
	})
	if err != nil {
		return fmt.Errorf("confirm transfer: failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/wallet/%s", c.baseURL, transfer.Direction)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("confirm transfer: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", transfer.Reference)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: confirm transfer: request failed: %w", util.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: confirm transfer: failed to read response: %w", util.ErrUpstreamFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: confirm transfer: unexpected status code %d", util.ErrUpstreamFailure, resp.StatusCode)
	}

	var out transferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("%w: confirm transfer: failed to decode response: %w", util.ErrUpstreamFailure, err)
	}
	if !out.Confirmed {
		return fmt.Errorf("%w: confirm transfer: partner declined: %s", util.ErrUpstreamFailure, out.Reason)
	}

	c.logger.Debug("Wallet transfer confirmed", "reference", transfer.Reference, "direction", string(transfer.Direction))
	return nil
}
