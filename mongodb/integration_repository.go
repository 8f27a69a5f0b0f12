package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/guestwifi/guestgate/domain"
	gerrors "github.com/guestwifi/guestgate/errors"
)

// IntegrationRepository reads the booking integration configuration. The
// portal supports exactly one integration per deployment.
type IntegrationRepository struct {
	integrations *mongo.Collection
}

func NewIntegrationRepository(db *mongo.Database) *IntegrationRepository {
	return &IntegrationRepository{
		integrations: db.Collection(IntegrationsCollection),
	}
}

func (r *IntegrationRepository) GetSingle(ctx context.Context) (*domain.IntegrationConfig, error) {
	var cfg domain.IntegrationConfig
	err := r.integrations.FindOne(ctx, bson.M{}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gerrors.NewNotFound("no integration configured")
		}
		return nil, err
	}
	return &cfg, nil
}
