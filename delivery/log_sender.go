// Package delivery carries issued codes to their owners. Actual transport
// (SMTP, provider API, template rendering) lives outside this service; the
// implementations here cover development and deployments where a separate
// mailer consumes the dispatch log.
package delivery

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/keeperfind/keeper-auth/domain"
)

// LogSender implements domain.Sender by logging the dispatch. The action URL
// embeds the plaintext code, so the log level is deliberately debug: enable
// it only where the log stream is as protected as the mailbox would be.
type LogSender struct{}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send implements domain.Sender.
func (s *LogSender) Send(_ context.Context, ownerID string, purpose domain.Purpose, actionURL string) error {
	log.Info().Str("owner_id", ownerID).Str("purpose", string(purpose)).
		Msg("Auth code dispatched for delivery")
	log.Debug().Str("owner_id", ownerID).Str("action_url", actionURL).
		Msg("Auth code action URL")
	return nil
}

var _ domain.Sender = (*LogSender)(nil)
