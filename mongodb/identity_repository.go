package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/keeperfind/keeper-auth/domain"
)

// IdentityRepository implements domain.IdentityUpdater over the users
// collection. It is the privileged side of a redemption: the completion
// handlers call it at most once per successfully validated code.
type IdentityRepository struct {
	users  *mongo.Collection
	hasher domain.PasswordHasher
}

// NewIdentityRepository creates an IdentityRepository.
func NewIdentityRepository(db *mongo.Database, hasher domain.PasswordHasher) *IdentityRepository {
	return &IdentityRepository{
		users:  db.Collection(UsersCollection),
		hasher: hasher,
	}
}

// ConfirmEmail marks the owner's email address as verified.
func (r *IdentityRepository) ConfirmEmail(ctx context.Context, ownerID string) error {
	update := bson.M{"$set": bson.M{
		"email_verified":    true,
		"email_verified_at": time.Now().UTC(),
	}}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": ownerID}, update)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Error confirming email")
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s not found", ownerID)
	}

	log.Info().Str("owner_id", ownerID).Msg("Email confirmed")
	return nil
}

// SetPassword replaces the owner's password hash.
func (r *IdentityRepository) SetPassword(ctx context.Context, ownerID, newPassword string) error {
	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"password_hash":       hash,
		"password_changed_at": time.Now().UTC(),
	}}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": ownerID}, update)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Error setting password")
		return fmt.Errorf("failed to set password: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s not found", ownerID)
	}

	log.Info().Str("owner_id", ownerID).Msg("Password updated")
	return nil
}

var _ domain.IdentityUpdater = (*IdentityRepository)(nil)
