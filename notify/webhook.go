package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookSink posts events as JSON to a single configured endpoint. Each
// request carries an HMAC-SHA256 signature of the body so the receiver can
// verify origin.
type WebhookSink struct {
	url        string
	secret     []byte
	httpClient *http.Client
}

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// NewWebhookSink constructs a sink targeting the supplied URL.
func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:        strings.TrimSpace(cfg.URL),
		secret:     []byte(cfg.Secret),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Escrow-Signature"

// Deliver implements Sink.
func (s *WebhookSink) Deliver(ctx context.Context, evt Event) error {
	if s == nil || s.url == "" {
		return nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(s.secret, body))
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of the payload under the given secret.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
