package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

// SignatureHeader carries "sha256=" plus the hex HMAC-SHA256 of the body.
const SignatureHeader = "X-Autofix-Signature"

// WebhookChannel posts events to a generic HTTP endpoint, signed when a
// secret is configured.
type WebhookChannel struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhook creates a WebhookChannel from cfg.
func NewWebhook(cfg config.WebhookNotifyConfig) *WebhookChannel {
	return &WebhookChannel{url: cfg.URL, secret: cfg.Secret, client: &http.Client{Timeout: channelTimeout}}
}

func (w *WebhookChannel) Name() string       { return "webhook" }
func (w *WebhookChannel) IsConfigured() bool { return w.url != "" }

type webhookPayload struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	RunID     string         `json:"run_id"`
	Backend   string         `json:"backend"`
	Fixed     []FixedFile    `json:"fixed"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"ts"`
}

func (w *WebhookChannel) Send(ctx context.Context, evt Event) error {
	payload := webhookPayload{
		Type:      evt.Type,
		Title:     evt.Title,
		Body:      evt.Body,
		RunID:     evt.RunID,
		Backend:   evt.Backend,
		Fixed:     evt.Fixed,
		Metadata:  evt.Metadata,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	var sign func(*http.Request, []byte)
	if w.secret != "" {
		sign = func(req *http.Request, body []byte) {
			req.Header.Set(SignatureHeader, "sha256="+Sign(w.secret, body))
		}
	}
	return postJSON(ctx, w.client, "webhook", w.url, payload, sign)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
