package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	webhookUserAgent      = "identityapi-audit-feed/1"

	HeaderEventID   = "X-Identity-Event-Id"
	HeaderTopic     = "X-Identity-Topic"
	HeaderEntity    = "X-Identity-Entity"
	HeaderSignature = "X-Identity-Signature"
)

// WebhookPublisher POSTs audit feed envelopes to a receiver URL.
//
// With a secret configured every request carries
//
//	X-Identity-Signature: t=<unix seconds>,v1=<hex HMAC-SHA256 of "t.body">
//
// so receivers can reject replays outside their tolerance window.
// Any non-2xx answer is an error and the feed retries the event.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{url: url, secret: []byte(secret), client: &http.Client{Timeout: timeout}}
}

func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", topic, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	req.Header.Set(HeaderEventID, event.EventID)
	req.Header.Set(HeaderTopic, topic)
	req.Header.Set(HeaderEntity, event.EntityType+"/"+event.EntityKey)
	if len(p.secret) > 0 {
		req.Header.Set(HeaderSignature, Sign(p.secret, domain.Now(ctx), body))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", event.EventID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("deliver %s: receiver answered %d: %s", event.EventID, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// Sign renders the signature header value for body sent at ts.
func Sign(secret []byte, ts time.Time, body []byte) string {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + stamp + ",v1=" + digest(secret, stamp, body)
}

// VerifySignature checks a signature header against body. Signatures older
// or newer than tolerance relative to now are rejected.
func VerifySignature(secret []byte, header string, body []byte, now time.Time, tolerance time.Duration) bool {
	var stamp, mac string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return false
		}
		switch key {
		case "t":
			stamp = value
		case "v1":
			mac = value
		}
	}
	sec, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil || mac == "" {
		return false
	}
	if age := now.Sub(time.Unix(sec, 0)); age > tolerance || age < -tolerance {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(digest(secret, stamp, body)))
}

func digest(secret []byte, stamp string, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(stamp))
	h.Write([]byte{'.'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
