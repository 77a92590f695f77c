package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

type WebhookPayload struct {
	Monitor   string  `json:"monitor"`
	Type      string  `json:"type"`
	Target    string  `json:"target"`
	Event     string  `json:"event"`
	Details   *string `json:"details"`
	Timestamp string  `json:"timestamp"`
}

type Webhook struct {
	client func(verifySSL bool) *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{client: utils.ChooseClient}
}

func (w *Webhook) Channel() model.Channel {
	return model.ChannelWebhook
}

func (w *Webhook) Enabled(s model.Settings) bool {
	return s.String(model.SettingWebhookURL) != ""
}

func (w *Webhook) payload(e *Event) WebhookPayload {
	p := WebhookPayload{
		Monitor:   e.Monitor.Name,
		Type:      string(e.Monitor.Kind),
		Target:    e.Monitor.Target,
		Event:     string(e.Kind),
		Details:   e.detailsPtr(),
		Timestamp: e.OccurredAt.UTC().Format(time.RFC3339),
	}
	if e.SSLWarning() {
		details := fmt.Sprintf("Certificate expires in %d days", e.DaysRemaining)
		p.Details = &details
	}
	return p
}

func (w *Webhook) Send(ctx context.Context, s model.Settings, e *Event) (string, error) {
	body, err := utils.Json.Marshal(w.payload(e))
	if err != nil {
		return "", err
	}
	payload := string(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.String(model.SettingWebhookURL), bytes.NewReader(body))
	if err != nil {
		return payload, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	headers, err := utils.GjsonParseStringMap(s.String(model.SettingWebhookHeaders))
	if err != nil {
		return payload, fmt.Errorf("%w: webhook_headers: %w", ErrDelivery, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client(s.Bool(model.SettingWebhookVerifySSL)).Do(req)
	if err != nil {
		return payload, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return payload, fmt.Errorf("%w: %d@%s %s", ErrDelivery, resp.StatusCode, resp.Status, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return payload, nil
}
