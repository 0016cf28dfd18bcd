// Package mailer delivers disease alert emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"gaunroots/internal/metrics"
)

// Config defines SMTP connection and sender parameters.
type Config struct {
	Host     string
	Port     int
	Address  string // sender account, also used as SMTP username
	Password string
}

// Mailer sends formatted disease alerts. Without credentials it stays
// disabled and every send reports failure without attempting a connection.
type Mailer struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Mailer from the provided configuration.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Mailer {
	return &Mailer{
		cfg:     cfg,
		logger:  logger.With("component", "mailer"),
		metrics: metricRegistry,
	}
}

// Enabled reports whether credentials are configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Address != "" && m.cfg.Password != ""
}

// Send delivers a disease alert to recipient. It fails soft: any problem is
// logged and reported as false, never as an error.
func (m *Mailer) Send(ctx context.Context, recipient, disease, crop, location string) bool {
	if !m.Enabled() {
		m.logger.Warn("email credentials not configured, skipping alert", "recipient", recipient)
		return false
	}

	subject := fmt.Sprintf("Crop Disease Alert: %s detected in %s", disease, crop)
	body := fmt.Sprintf(`Disease Alert Notification - Gaun Roots

A disease outbreak has been reported in your area.

Disease: %s
Affected Crop: %s
Location: %s

Please inspect your crops immediately and take necessary preventive measures.

Stay safe,
Gaun Roots Team
`, disease, crop, location)

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Address); err != nil {
		m.fail("invalid sender address", err)
		return false
	}
	if err := msg.To(recipient); err != nil {
		m.fail("invalid recipient address", err)
		return false
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Address),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		m.fail("smtp client setup failed", err)
		return false
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.fail("email sending failed", err)
		return false
	}

	if m.metrics != nil {
		m.metrics.EmailsSent.WithLabelValues("sent").Inc()
	}
	m.logger.Info("alert email sent", "recipient", recipient, "disease", disease)
	return true
}

func (m *Mailer) fail(msg string, err error) {
	if m.metrics != nil {
		m.metrics.EmailsSent.WithLabelValues("failed").Inc()
		m.metrics.Errors.WithLabelValues("mailer").Inc()
	}
	m.logger.Error(msg, "error", err)
}
