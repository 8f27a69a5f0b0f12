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

// VoucherRepository persists vouchers. The voucher code is the document id,
// so the unique index on _id doubles as the collision check the code
// generator relies on.
type VoucherRepository struct {
	vouchers *mongo.Collection
}

func NewVoucherRepository(db *mongo.Database) *VoucherRepository {
	return &VoucherRepository{
		vouchers: db.Collection(VouchersCollection),
	}
}

func (r *VoucherRepository) Insert(ctx context.Context, voucher *domain.Voucher) error {
	_, err := r.vouchers.InsertOne(ctx, voucher)
	if mongo.IsDuplicateKeyError(err) {
		return gerrors.NewDuplicate("voucher code already exists")
	}
	return err
}

func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	var voucher domain.Voucher
	err := r.vouchers.FindOne(ctx, bson.M{"_id": code}).Decode(&voucher)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gerrors.NewNotFound("voucher not found")
		}
		return nil, err
	}
	return &voucher, nil
}

func (r *VoucherRepository) Update(ctx context.Context, voucher *domain.Voucher) error {
	result, err := r.vouchers.ReplaceOne(ctx, bson.M{"_id": voucher.Code}, voucher)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return gerrors.NewNotFound("voucher not found")
	}
	return nil
}

func (r *VoucherRepository) List(ctx context.Context, limit int64) ([]*domain.Voucher, error) {
	opts := options.Find().SetSort(bson.M{"created_utc": -1})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.vouchers.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vouchers []*domain.Voucher
	if err := cursor.All(ctx, &vouchers); err != nil {
		return nil, err
	}
	return vouchers, nil
}
