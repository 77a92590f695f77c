package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

const (
	emailRule      = "========================================"
	emailSignature = "--\nOnlineTracker Monitoring System"
	emailTimeFmt   = "2006-01-02 15:04:05 UTC"
	smtpTimeout    = 30 * time.Second
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	From     string
	To       []string
}

func EmailConfigFrom(s model.Settings) EmailConfig {
	return EmailConfig{
		Host:     s.String(model.SettingSMTPHost),
		Port:     s.Int(model.SettingSMTPPort),
		Username: s.String(model.SettingSMTPUsername),
		Password: s.String(model.SettingSMTPPassword),
		UseTLS:   s.Bool(model.SettingSMTPUseTLS),
		From:     s.String(model.SettingAlertEmailFrom),
		To:       s.List(model.SettingAlertEmailTo),
	}
}

// MailFunc delivers a composed message.
type MailFunc func(ctx context.Context, conf EmailConfig, msg *mail.Msg) error

type Email struct {
	deliver MailFunc
}

func NewEmail() *Email {
	return &Email{deliver: SendMail}
}

func NewEmailWith(deliver MailFunc) *Email {
	return &Email{deliver: deliver}
}

func (m *Email) Channel() model.Channel {
	return model.ChannelEmail
}

func (m *Email) Enabled(s model.Settings) bool {
	return s.Bool(model.SettingEmailAlertsEnabled)
}

func agentLabel(e *Event) string {
	if e.AgentName != "" {
		return e.AgentName
	}
	return "Server"
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Subject is a single line; line breaks in names become spaces.
func Subject(e *Event) string {
	if e.SSLWarning() {
		return headerBreaks.Replace(fmt.Sprintf("SSL EXPIRING - %s - %d days", e.Monitor.Name, e.DaysRemaining))
	}
	return headerBreaks.Replace(fmt.Sprintf("%s - %s - %s - %s", upper(e.Kind), e.Monitor.Name, agentLabel(e), e.Monitor.Kind))
}

func historyBlock(history []*model.StatusRecord) string {
	if len(history) == 0 {
		return ""
	}
	lines := []string{"\n--- Status History (Last 24 Hours) ---\n"}
	for _, r := range history {
		line := r.CheckedAt.UTC().Format(emailTimeFmt) + ": " + strings.ToUpper(string(r.Status))
		if r.ResponseTimeMs != nil && *r.ResponseTimeMs > 0 {
			line += fmt.Sprintf(" (%dms)", *r.ResponseTimeMs)
		}
		if r.Details != "" {
			line += " - " + r.Details
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func Body(e *Event) string {
	m := e.Monitor
	ts := e.OccurredAt.UTC().Format(emailTimeFmt)
	if e.SSLWarning() {
		return strings.Join([]string{
			"OnlineTracker SSL Expiry Warning",
			emailRule,
			"",
			"Monitor: " + m.Name,
			"Target: " + m.Target,
			fmt.Sprintf("Certificate expires in: %d days", e.DaysRemaining),
			"Time: " + ts,
			"",
			emailSignature,
		}, "\n")
	}

	status := upper(e.Kind)
	lines := []string{
		fmt.Sprintf("OnlineTracker %s Report", status),
		emailRule,
		"",
		"Monitor: " + m.Name,
		"Type: " + string(m.Kind),
		"Target: " + m.Target,
		"Status: " + status,
		"Time: " + ts,
	}
	if e.Details != "" {
		lines = append(lines, "Details: "+e.Details)
	}
	if block := historyBlock(e.History); block != "" {
		lines = append(lines, block)
	}
	lines = append(lines, "", emailSignature)
	return strings.Join(lines, "\n")
}

// newMessage leaves header encoding to go-mail.
func newMessage(conf EmailConfig, subject, body string, date time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(conf.From); err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	if err := msg.To(conf.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(date)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

type emailPayload struct {
	Subject string   `json:"subject"`
	To      []string `json:"to,omitempty"`
}

func (m *Email) Send(ctx context.Context, s model.Settings, e *Event) (string, error) {
	conf := EmailConfigFrom(s)
	subject := Subject(e)

	p := emailPayload{Subject: subject}
	if !e.SSLWarning() {
		p.To = conf.To
	}
	data, err := utils.Json.Marshal(p)
	if err != nil {
		return "", err
	}
	payload := string(data)

	if conf.Host == "" || conf.From == "" || len(conf.To) == 0 {
		return payload, fmt.Errorf("%w: smtp host, sender or recipients not configured", ErrDelivery)
	}
	msg, err := newMessage(conf, subject, Body(e), e.OccurredAt)
	if err != nil {
		return payload, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if err := m.deliver(ctx, conf, msg); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return payload, nil
}

// SendMail delivers msg: implicit TLS on 465, mandatory STARTTLS when UseTLS is set.
func SendMail(ctx context.Context, conf EmailConfig, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(conf.Port),
		mail.WithTimeout(smtpTimeout),
		mail.WithTLSPolicy(mail.NoTLS),
	}
	switch {
	case conf.Port == 465:
		opts = append(opts, mail.WithSSL())
	case conf.UseTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if conf.Username != "" && conf.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(conf.Username),
			mail.WithPassword(conf.Password),
		)
	}
	c, err := mail.NewClient(conf.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, msg)
}
