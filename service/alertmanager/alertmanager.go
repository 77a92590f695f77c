package alertmanager

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/service/notifier"
)

const (
	// consecutive failures are counted over at most this many records
	failureScanLimit = 20
	historyWindow    = 24 * time.Hour
	historyMaxLines  = 100
	sendTimeout      = 30 * time.Second
)

// Store is what the alerter reads and writes. service/store implements it.
type Store interface {
	GetSettings(ctx context.Context) (model.Settings, error)
	GetRecentStatuses(ctx context.Context, monitorID uint64, limit int) ([]*model.StatusRecord, error)
	GetStatusesSince(ctx context.Context, monitorID uint64, since time.Time, limit int) ([]*model.StatusRecord, error)
	LastFailureAlert(ctx context.Context, monitorID uint64) (*model.AlertRecord, error)
	AppendAlerts(ctx context.Context, records []*model.AlertRecord) error
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
}

type Decision struct {
	Notify bool
	Reason string
	// ConsecutiveFailures includes the outcome being evaluated.
	ConsecutiveFailures int
}

type Alerter struct {
	store   Store
	senders []notifier.Sender
	clock   utils.Clock
	log     *zap.Logger
}

type Option func(*Alerter)

func WithClock(c utils.Clock) Option {
	return func(a *Alerter) { a.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Alerter) { a.log = l }
}

func New(store Store, senders []notifier.Sender, opts ...Option) *Alerter {
	a := &Alerter{
		store:   store,
		senders: senders,
		clock:   utils.SystemClock,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(zap.String("component", "alerter"))
	return a
}

func countFailing(history []*model.StatusRecord) int {
	n := 0
	for i, r := range history {
		if i >= failureScanLimit || !r.Status.Failing() {
			break
		}
		n++
	}
	return n
}

// Evaluate decides whether newStatus deserves a notification. It must run
// before the outcome is persisted: history is expected to end at the
// previous check.
func (a *Alerter) Evaluate(ctx context.Context, m *model.Monitor, newStatus model.Status, oldStatus *model.Status) (Decision, error) {
	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return Decision{Reason: "settings unavailable"}, err
	}
	d, err := a.evaluate(ctx, PolicyFrom(settings), m, newStatus, oldStatus)
	if err == nil {
		observeDecision(d)
		a.log.Debug("alert evaluated", zap.Uint64("monitor_id", m.ID), zap.String("status", string(newStatus)),
			zap.Bool("notify", d.Notify), zap.String("reason", d.Reason), zap.Int("consecutive", d.ConsecutiveFailures))
	}
	return d, err
}

func (a *Alerter) evaluate(ctx context.Context, p Policy, m *model.Monitor, newStatus model.Status, oldStatus *model.Status) (Decision, error) {
	if p.Type == AlertTypeNone {
		return Decision{Reason: "alerting disabled"}, nil
	}

	switch {
	case newStatus == model.StatusUp:
		if oldStatus == nil || !oldStatus.Failing() {
			return Decision{Reason: "no transition"}, nil
		}
		if !p.OnRestored {
			return Decision{Reason: "restore alerts disabled"}, nil
		}
		if p.DownOnly && *oldStatus == model.StatusDegraded {
			return Decision{Reason: "restored from degraded under down_only"}, nil
		}
		return Decision{Notify: true, Reason: "restored"}, nil

	case newStatus.Failing():
		if p.DownOnly && newStatus == model.StatusDegraded {
			return Decision{Reason: "degraded below severity threshold"}, nil
		}
		history, err := a.store.GetRecentStatuses(ctx, m.ID, failureScanLimit)
		if err != nil {
			return Decision{Reason: "history unavailable"}, err
		}
		d := Decision{ConsecutiveFailures: 1 + countFailing(history)}
		switch {
		case d.ConsecutiveFailures < p.FailureThreshold:
			d.Reason = "below failure threshold"
			return d, nil
		case d.ConsecutiveFailures == p.FailureThreshold:
			d.Notify, d.Reason = true, "failure threshold reached"
			return d, nil
		case p.Type != AlertTypeRepeated:
			d.Reason = "already alerted"
			return d, nil
		}
		last, err := a.store.LastFailureAlert(ctx, m.ID)
		if err != nil {
			return Decision{Reason: "alert log unavailable"}, err
		}
		if last == nil || a.clock.Now().Sub(last.SentAt) < p.RepeatEvery {
			d.Reason = "repeat interval not elapsed"
			return d, nil
		}
		d.Notify, d.Reason = true, "repeat interval elapsed"
		return d, nil
	}
	return Decision{Reason: "status not alertable"}, nil
}

// Notify fans out a status notification and records one AlertRecord per channel attempted.
func (a *Alerter) Notify(ctx context.Context, m *model.Monitor, status model.Status, details string) ([]*model.AlertRecord, error) {
	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	ev := &notifier.Event{
		Monitor:    m,
		Kind:       model.AlertKindOf(status),
		Details:    details,
		OccurredAt: now,
	}
	if PolicyFrom(settings).IncludeHistory {
		if ev.History, err = a.store.GetStatusesSince(ctx, m.ID, now.Add(-historyWindow), historyMaxLines); err != nil {
			a.log.Warn("status history unavailable", zap.Uint64("monitor_id", m.ID), zap.Error(err))
		}
	}
	ev.AgentName = a.agentName(ctx, m)
	return a.dispatch(ctx, settings, ev, a.senders)
}

// SendSSLWarning bypasses the state machine; the caller already decided a threshold was crossed.
func (a *Alerter) SendSSLWarning(ctx context.Context, m *model.Monitor, daysRemaining int) ([]*model.AlertRecord, error) {
	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	ev := &notifier.Event{
		Monitor:       m,
		Kind:          model.AlertKindSSLExpiring,
		DaysRemaining: daysRemaining,
		OccurredAt:    a.clock.Now(),
	}
	var senders []notifier.Sender
	for _, s := range a.senders {
		if s.Channel() != model.ChannelPush {
			senders = append(senders, s)
		}
	}
	return a.dispatch(ctx, settings, ev, senders)
}

func (a *Alerter) agentName(ctx context.Context, m *model.Monitor) string {
	if m.Local() {
		return ""
	}
	agent, err := a.store.GetAgent(ctx, *m.AgentID)
	if err != nil || agent == nil {
		return *m.AgentID
	}
	return agent.DisplayName()
}

func (a *Alerter) dispatch(ctx context.Context, settings model.Settings, ev *notifier.Event, senders []notifier.Sender) ([]*model.AlertRecord, error) {
	var enabled []notifier.Sender
	for _, s := range senders {
		if s.Enabled(settings) {
			enabled = append(enabled, s)
		}
	}
	if len(enabled) == 0 {
		a.log.Debug("no channel enabled", zap.Uint64("monitor_id", ev.Monitor.ID), zap.String("kind", string(ev.Kind)))
		return nil, nil
	}

	records := make([]*model.AlertRecord, len(enabled))
	var wg sync.WaitGroup
	for i, s := range enabled {
		wg.Add(1)
		go func(i int, s notifier.Sender) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()

			payload, err := s.Send(sendCtx, settings, ev)
			records[i] = &model.AlertRecord{
				MonitorID: ev.Monitor.ID,
				Kind:      ev.Kind,
				Channel:   s.Channel(),
				SentAt:    ev.OccurredAt,
				Payload:   payload,
				Success:   err == nil,
			}
			alertsSent.WithLabelValues(string(s.Channel()), string(ev.Kind), strconv.FormatBool(err == nil)).Inc()
			if err != nil {
				a.log.Warn("notification failed", zap.Uint64("monitor_id", ev.Monitor.ID),
					zap.String("channel", string(s.Channel())), zap.String("kind", string(ev.Kind)), zap.Error(err))
				return
			}
			a.log.Info("notification sent", zap.Uint64("monitor_id", ev.Monitor.ID),
				zap.String("channel", string(s.Channel())), zap.String("kind", string(ev.Kind)))
		}(i, s)
	}
	wg.Wait()

	if err := a.store.AppendAlerts(ctx, records); err != nil {
		a.log.Error("persist alert records", zap.Uint64("monitor_id", ev.Monitor.ID), zap.Error(err))
		return records, err
	}
	return records, nil
}
