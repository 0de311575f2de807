package repository

import (
	"context"

	"rentcore/pkg/model"
)

const (
	ResourcesCollection    = "Resources"
	PartnerUsersCollection = "Partner_users"
)

// CatalogRepository is the read model of vehicles and partner staff. The core
// only reads it; the upserts exist for seeding.
type CatalogRepository interface {
	FindResource(ctx context.Context, id string) (*model.Resource, error)
	FindActivePartnerUser(ctx context.Context, partnerID, userID string) (*model.PartnerUser, error)
	UpsertResource(ctx context.Context, resource *model.Resource) error
	UpsertPartnerUser(ctx context.Context, user *model.PartnerUser) error
}
