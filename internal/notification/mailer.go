package notification

import (
	"context"
	"net/url"
	"strings"

	"safepath/internal/pkg/logging"
)

// Mailer delivers account emails. Delivery is fire-and-forget from the
// caller's side: errors are logged, never rolled back.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendPasswordChanged(ctx context.Context, email string) error
}

// DevConsoleMailer stands in for a real mail provider. It logs that a
// message would have gone out, with the recipient masked and the reset
// token reduced to a fingerprint.
type DevConsoleMailer struct {
	enabled      bool
	resetURLBase string
	log          logging.Logger
}

func NewDevConsoleMailer(enabled bool, resetURLBase string, log logging.Logger) *DevConsoleMailer {
	return &DevConsoleMailer{
		enabled:      enabled,
		resetURLBase: strings.TrimRight(resetURLBase, "/"),
		log:          log.With("component", "mailer"),
	}
}

// ResetLink builds the link a user follows to complete a reset.
func (m *DevConsoleMailer) ResetLink(token string) string {
	return m.resetURLBase + "/reset-password?token=" + url.QueryEscape(token)
}

func (m *DevConsoleMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if !m.enabled {
		return nil
	}
	fp := logging.Fingerprint(token)
	m.log.Info(ctx, "[DEV-EMAIL] password reset",
		"to", logging.MaskEmail(email),
		"token_fp", fp,
		"link", m.ResetLink("fp-"+fp),
	)
	return nil
}

func (m *DevConsoleMailer) SendPasswordChanged(ctx context.Context, email string) error {
	if !m.enabled {
		return nil
	}
	m.log.Info(ctx, "[DEV-EMAIL] password changed", "to", logging.MaskEmail(email))
	return nil
}
