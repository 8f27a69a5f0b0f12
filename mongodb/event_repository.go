package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/guestwifi/guestgate/domain"
	gerrors "github.com/guestwifi/guestgate/errors"
)

// caseInsensitive matches identifier values regardless of letter case while
// documents keep their original casing.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// RentalEventRepository reads the cached booking records the integration
// sync writes.
type RentalEventRepository struct {
	events *mongo.Collection
}

func NewRentalEventRepository(db *mongo.Database) *RentalEventRepository {
	return &RentalEventRepository{
		events: db.Collection(RentalEventsCollection),
	}
}

func (r *RentalEventRepository) FindByAttr(ctx context.Context, integrationID string, attr domain.IdentifierAttr, code string) (*domain.RentalEvent, error) {
	filter := bson.M{
		"integration_id": integrationID,
		string(attr):     code,
	}
	opts := options.FindOne().SetCollation(caseInsensitive)

	var event domain.RentalEvent
	err := r.events.FindOne(ctx, filter, opts).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gerrors.NewNotFound("rental event not found")
		}
		return nil, err
	}
	return &event, nil
}
