package notifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JustinTDCT/onlineTracker/model"
)

// ErrDelivery wraps every failure reported by a channel.
var ErrDelivery = errors.New("delivery failed")

// Event is what a channel renders into its own message format.
type Event struct {
	Monitor   *model.Monitor
	AgentName string
	Kind      model.AlertKind
	Details   string
	// DaysRemaining is set for ssl_expiring events.
	DaysRemaining int
	// History is newest first and only filled when the settings ask for it.
	History    []*model.StatusRecord
	OccurredAt time.Time
}

func (e *Event) SSLWarning() bool {
	return e.Kind == model.AlertKindSSLExpiring
}

func (e *Event) detailsPtr() *string {
	if e.Details == "" {
		return nil
	}
	return &e.Details
}

// Sender delivers an event over one channel. The returned payload is stored
// on the AlertRecord whether or not delivery succeeded.
type Sender interface {
	Channel() model.Channel
	Enabled(s model.Settings) bool
	Send(ctx context.Context, s model.Settings, e *Event) (payload string, err error)
}

func upper(k model.AlertKind) string {
	return strings.ToUpper(string(k))
}
