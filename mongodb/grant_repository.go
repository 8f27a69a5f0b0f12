package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/guestwifi/guestgate/domain"
	gerrors "github.com/guestwifi/guestgate/errors"
)

// GrantRepository persists access grants. Updates are compare-and-swap on
// the version counter so concurrent lifecycle changes cannot silently
// overwrite each other.
type GrantRepository struct {
	grants *mongo.Collection
}

func NewGrantRepository(db *mongo.Database) *GrantRepository {
	return &GrantRepository{
		grants: db.Collection(GrantsCollection),
	}
}

func (r *GrantRepository) Insert(ctx context.Context, grant *domain.AccessGrant) error {
	_, err := r.grants.InsertOne(ctx, grant)
	if mongo.IsDuplicateKeyError(err) {
		return gerrors.NewDuplicate("grant already exists")
	}
	return err
}

func (r *GrantRepository) GetByID(ctx context.Context, id string) (*domain.AccessGrant, error) {
	var grant domain.AccessGrant
	err := r.grants.FindOne(ctx, bson.M{"_id": id}).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gerrors.NewNotFound("grant not found")
		}
		return nil, err
	}
	return &grant, nil
}

// Update writes the grant back, matched on both id and the version it was
// read at. A zero match count means another writer got there first.
func (r *GrantRepository) Update(ctx context.Context, grant *domain.AccessGrant) error {
	filter := bson.M{"_id": grant.ID, "version": grant.Version}
	update := bson.M{
		"$set": bson.M{
			"end_utc":             grant.EndUTC,
			"status":              grant.Status,
			"controller_grant_id": grant.ControllerGrantID,
			"updated_utc":         grant.UpdatedUTC,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.grants.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return gerrors.NewConflict("grant was modified concurrently")
	}
	grant.Version++
	return nil
}

func (r *GrantRepository) FindActiveByMAC(ctx context.Context, mac string, now time.Time) ([]*domain.AccessGrant, error) {
	filter := bson.M{
		"mac":     mac,
		"status":  bson.M{"$ne": domain.GrantStatusRevoked},
		"end_utc": bson.M{"$gt": now},
	}
	return r.find(ctx, filter, 0)
}

func (r *GrantRepository) FindCurrentByBookingRef(ctx context.Context, bookingRef string, now time.Time) ([]*domain.AccessGrant, error) {
	filter := bson.M{
		"booking_ref": bookingRef,
		"status":      bson.M{"$ne": domain.GrantStatusRevoked},
		"end_utc":     bson.M{"$gt": now},
	}
	return r.find(ctx, filter, 0)
}

func (r *GrantRepository) List(ctx context.Context, limit int64) ([]*domain.AccessGrant, error) {
	return r.find(ctx, bson.M{}, limit)
}

func (r *GrantRepository) find(ctx context.Context, filter bson.M, limit int64) ([]*domain.AccessGrant, error) {
	opts := options.Find().SetSort(bson.M{"created_utc": -1})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.grants.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []*domain.AccessGrant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}
