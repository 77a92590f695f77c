package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/lo"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

var ErrNoReceivers = errors.New("no push receivers registered")

type ReceiverProvider interface {
	PushReceivers(ctx context.Context) ([]*model.PushReceiver, error)
}

type PushData struct {
	MonitorID   uint64  `json:"monitor_id"`
	MonitorName string  `json:"monitor_name"`
	Status      string  `json:"status"`
	Details     *string `json:"details"`
}

type PushPayload struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Data  PushData `json:"data"`
	Badge int      `json:"badge"`
}

// Push broadcasts to every enabled receiver endpoint.
type Push struct {
	receivers ReceiverProvider
	client    *http.Client
}

func NewPush(receivers ReceiverProvider) *Push {
	return &Push{receivers: receivers, client: utils.HttpClient}
}

func (p *Push) Channel() model.Channel {
	return model.ChannelPush
}

func (p *Push) Enabled(s model.Settings) bool {
	return s.Bool(model.SettingPushAlertsEnabled)
}

func NewPushPayload(e *Event) PushPayload {
	status := string(e.Kind)
	body := fmt.Sprintf("%s is %s", e.Monitor.Name, status)
	if e.Details != "" {
		body += ": " + e.Details
	}
	badge := 0
	if e.Kind == model.AlertKindDown || e.Kind == model.AlertKindDegraded {
		badge = 1
	}
	return PushPayload{
		Title: "Monitor " + upper(e.Kind),
		Body:  body,
		Data: PushData{
			MonitorID:   e.Monitor.ID,
			MonitorName: e.Monitor.Name,
			Status:      status,
			Details:     e.detailsPtr(),
		},
		Badge: badge,
	}
}

func (p *Push) Send(ctx context.Context, s model.Settings, e *Event) (string, error) {
	data, err := utils.Json.Marshal(NewPushPayload(e))
	if err != nil {
		return "", err
	}
	payload := string(data)

	receivers, err := p.receivers.PushReceivers(ctx)
	if err != nil {
		return payload, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	receivers = lo.Filter(receivers, func(r *model.PushReceiver, _ int) bool {
		return r.Enabled && r.Endpoint != ""
	})
	if len(receivers) == 0 {
		return payload, fmt.Errorf("%w: %v", ErrDelivery, ErrNoReceivers)
	}

	var errs []error
	for _, r := range receivers {
		if err := p.deliver(ctx, r, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
		}
	}
	if len(errs) > 0 {
		return payload, fmt.Errorf("%w: %d/%d receivers failed: %v", ErrDelivery, len(errs), len(receivers), errors.Join(errs...))
	}
	return payload, nil
}

func (p *Push) deliver(ctx context.Context, r *model.PushReceiver, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%d@%s %s", resp.StatusCode, resp.Status, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
