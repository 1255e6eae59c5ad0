package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/Murudula29/Dosemate/internal/domain"
)

// Config SMS provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// Client talks to the outbound SMS provider over HTTP. The task's dedupe key
// is forwarded as an idempotency header, so the provider collapses retried
// attempts for the same task into a single message.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a provider client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// Send submits one message. Network failures, timeouts, provider 5xx and rate
// limiting are classified transient; any other rejection is permanent.
func (c *Client) Send(ctx context.Context, recipient, body, dedupeKey string) (*domain.SendResult, error) {
	payload, err := json.Marshal(sendRequest{
		From: c.cfg.From,
		To:   recipient,
		Body: body,
	})
	if err != nil {
		return nil, domain.PermanentSendError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, domain.PermanentSendError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Idempotency-Key", dedupeKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.TransientSendError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, domain.TransientSendError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result sendResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to decode provider response")
			return nil, domain.TransientSendError(err)
		}
		zlog.Logger.Debug().
			Str("provider_ref", result.MessageID).
			Str("recipient", recipient).
			Msg("sms accepted by provider")
		return &domain.SendResult{ProviderRef: result.MessageID}, nil
	}

	cause := fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(raw, 256))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.TransientSendError(cause)
	}
	return nil, domain.PermanentSendError(cause)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
