// Package identity provides stand-in identity collaborators for deployments
// where the real identity store is not wired in (memory and redis code store
// backends). The privileged action is logged instead of performed.
package identity

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/keeperfind/keeper-auth/domain"
)

// LogUpdater implements domain.IdentityUpdater by logging the action that
// would have been taken.
type LogUpdater struct{}

// NewLogUpdater creates a LogUpdater.
func NewLogUpdater() *LogUpdater {
	return &LogUpdater{}
}

// ConfirmEmail implements domain.IdentityUpdater.
func (u *LogUpdater) ConfirmEmail(_ context.Context, ownerID string) error {
	log.Info().Str("owner_id", ownerID).Msg("Identity updater stub: email would be confirmed")
	return nil
}

// SetPassword implements domain.IdentityUpdater.
func (u *LogUpdater) SetPassword(_ context.Context, ownerID, _ string) error {
	log.Info().Str("owner_id", ownerID).Msg("Identity updater stub: password would be updated")
	return nil
}

var _ domain.IdentityUpdater = (*LogUpdater)(nil)
