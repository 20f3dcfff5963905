package notify

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sentryops/bypassguard/internal/logger"
)

// GatewayConfig holds the WhatsApp messaging API configuration
type GatewayConfig struct {
	BaseURL string        // e.g. "https://api.example.com/v1"
	Token   string        // Bearer token; delivery is skipped when empty
	Timeout time.Duration // HTTP client timeout
}

// Gateway delivers text messages through the WhatsApp messaging API.
// Delivery is fire-and-forget: failures are logged, never returned.
type Gateway struct {
	config GatewayConfig
	client *http.Client
	logger logger.Logger
}

// NewGateway creates a new messaging gateway
func NewGateway(config GatewayConfig) *Gateway {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Gateway{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.New("whatsapp-gateway"),
	}
}

// sendMessageRequest mirrors the wire body expected by the messaging API
type sendMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send delivers one message. It never reports an error to the caller: a
// missing token, a non-2xx response or a transport failure is logged and
// swallowed. The gateway does not retry.
func (g *Gateway) Send(recipient, body string) {
	if g.config.Token == "" {
		g.logger.Warnw("no delivery token configured, skipping notification", "recipient", recipient)
		logger.NotificationTotal.WithLabelValues("skipped").Inc()
		return
	}

	to := normalizeRecipient(recipient)

	payload, err := json.Marshal(sendMessageRequest{To: to, Body: body})
	if err != nil {
		g.logger.Errorw("failed to encode notification", "recipient", to, "error", err)
		logger.NotificationTotal.WithLabelValues("failed").Inc()
		return
	}

	req, err := http.NewRequest(http.MethodPost, g.config.BaseURL+"/messages/text", bytes.NewReader(payload))
	if err != nil {
		g.logger.Errorw("failed to build notification request", "recipient", to, "error", err)
		logger.NotificationTotal.WithLabelValues("failed").Inc()
		return
	}
	req.Header.Set("Authorization", "Bearer "+g.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Errorw("notification delivery failed", "recipient", to, "error", err)
		logger.NotificationTotal.WithLabelValues("failed").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.Errorw("notification rejected by gateway",
			"recipient", to,
			"status", resp.StatusCode,
			"response", string(respBody),
		)
		logger.NotificationTotal.WithLabelValues("failed").Inc()
		return
	}

	g.logger.Debugw("notification delivered", "recipient", to)
	logger.NotificationTotal.WithLabelValues("sent").Inc()
}

// normalizeRecipient strips the leading "+" from an international number
func normalizeRecipient(recipient string) string {
	return strings.TrimPrefix(recipient, "+")
}
