package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/keeperfind/keeper-auth/domain"
)

// AuthCodeRepository implements domain.AuthCodeRepository on MongoDB.
//
// Two indexes carry the correctness obligations: a unique index on code_hash
// rejects the (astronomically unlikely) generator collision, and a partial
// unique index on (owner_id, purpose) over unused documents closes the race
// between two concurrent issuances for the same pair.
type AuthCodeRepository struct {
	codes *mongo.Collection
}

// NewAuthCodeRepository creates the repository and ensures its indexes.
func NewAuthCodeRepository(ctx context.Context, db *mongo.Database) (*AuthCodeRepository, error) {
	codes := db.Collection(CodesCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "purpose", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"used": false}),
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	}
	if _, err := codes.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create auth code indexes: %w", err)
	}

	return &AuthCodeRepository{codes: codes}, nil
}

// Insert implements domain.AuthCodeRepository. Supersession runs first: any
// outstanding unused code for the same owner and purpose is deleted, then
// the new record is inserted. If a concurrent issuance slips between the two
// steps, the partial unique index rejects the second insert.
func (r *AuthCodeRepository) Insert(ctx context.Context, code *domain.AuthCode) error {
	if code.CodeHash == "" {
		return fmt.Errorf("%w: code hash cannot be empty", domain.ErrStorage)
	}

	filter := bson.M{"owner_id": code.OwnerID, "purpose": code.Purpose, "used": false}
	if _, err := r.codes.DeleteMany(ctx, filter); err != nil {
		log.Error().Err(err).Str("owner_id", code.OwnerID).Msg("Error deleting superseded auth codes")
		return fmt.Errorf("%w: delete superseded codes: %v", domain.ErrStorage, err)
	}

	if _, err := r.codes.InsertOne(ctx, code); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: concurrent issuance for owner %s", domain.ErrStorage, code.OwnerID)
		}
		log.Error().Err(err).Str("id", code.ID).Msg("Error saving auth code")
		return fmt.Errorf("%w: insert auth code: %v", domain.ErrStorage, err)
	}

	log.Debug().Str("id", code.ID).Str("owner_id", code.OwnerID).Msg("Auth code saved")
	return nil
}

// Redeem implements domain.AuthCodeRepository. The used-flip is a single
// FindOneAndUpdate whose filter admits only a valid record of the expected
// purpose, so concurrent redemptions of one code have exactly one winner.
func (r *AuthCodeRepository) Redeem(ctx context.Context, codeHash string, purpose domain.Purpose, now time.Time) (*domain.AuthCode, error) {
	filter := bson.M{
		"code_hash":  codeHash,
		"purpose":    purpose,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"used": true, "used_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var code domain.AuthCode
	err := r.codes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&code)
	if err == nil {
		return &code, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		log.Error().Err(err).Msg("Error redeeming auth code")
		return nil, fmt.Errorf("%w: redeem auth code: %v", domain.ErrStorage, err)
	}

	// The swap matched nothing; read the record to say why, without
	// consuming anything.
	var found domain.AuthCode
	err = r.codes.FindOne(ctx, bson.M{"code_hash": codeHash}).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		log.Error().Err(err).Msg("Error classifying failed redemption")
		return nil, fmt.Errorf("%w: classify redemption: %v", domain.ErrStorage, err)
	}
	if rerr := found.RedeemError(purpose, now); rerr != nil {
		return nil, rerr
	}
	// The record was valid on the follow-up read, so a concurrent redemption
	// won the swap between our two statements.
	return nil, domain.ErrCodeUsed
}

// DeleteExpiredBefore implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.codes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired codes: %v", domain.ErrStorage, err)
	}
	return res.DeletedCount, nil
}

var _ domain.AuthCodeRepository = (*AuthCodeRepository)(nil)
