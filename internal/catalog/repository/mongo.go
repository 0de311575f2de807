package repository

import (
	"context"
	"errors"
	"time"

	catalogerrors "rentcore/internal/catalog/errors"
	mongotx "rentcore/pkg/db/mongo"
	"rentcore/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCatalogRepository struct {
	resources    *mongo.Collection
	partnerUsers *mongo.Collection
	timeout      time.Duration
}

func NewMongoCatalogRepository(db *mongo.Database, timeout time.Duration) CatalogRepository {
	return &mongoCatalogRepository{
		resources:    db.Collection(ResourcesCollection),
		partnerUsers: db.Collection(PartnerUsersCollection),
		timeout:      timeout,
	}
}

func (r *mongoCatalogRepository) FindResource(ctx context.Context, id string) (*model.Resource, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	var resource model.Resource
	err := r.resources.FindOne(ctx, bson.M{"_id": id}).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrResourceNotFound
		}
		return nil, err
	}
	return &resource, nil
}

func (r *mongoCatalogRepository) FindActivePartnerUser(ctx context.Context, partnerID, userID string) (*model.PartnerUser, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	var user model.PartnerUser
	filter := bson.M{"partner_id": partnerID, "user_id": userID, "active": true}
	err := r.partnerUsers.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrPartnerUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *mongoCatalogRepository) UpsertResource(ctx context.Context, resource *model.Resource) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.resources.ReplaceOne(ctx, bson.M{"_id": resource.ID}, resource, options.Replace().SetUpsert(true))
	return err
}

func (r *mongoCatalogRepository) UpsertPartnerUser(ctx context.Context, user *model.PartnerUser) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.partnerUsers.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, options.Replace().SetUpsert(true))
	return err
}
