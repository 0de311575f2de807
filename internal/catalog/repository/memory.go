package repository

import (
	"context"

	catalogerrors "rentcore/internal/catalog/errors"
	"rentcore/pkg/db/memory"
	"rentcore/pkg/model"
)

type memoryCatalogRepository struct {
	resources    *memory.Table[*model.Resource]
	partnerUsers *memory.Table[*model.PartnerUser]
}

func NewMemoryCatalogRepository(store *memory.Store) CatalogRepository {
	return &memoryCatalogRepository{
		resources:    memory.NewTable(store, func(r *model.Resource) *model.Resource { c := *r; return &c }),
		partnerUsers: memory.NewTable(store, func(u *model.PartnerUser) *model.PartnerUser { c := *u; return &c }),
	}
}

func (r *memoryCatalogRepository) FindResource(ctx context.Context, id string) (*model.Resource, error) {
	resource, ok := r.resources.Get(ctx, id)
	if !ok {
		return nil, catalogerrors.ErrResourceNotFound
	}
	return resource, nil
}

func (r *memoryCatalogRepository) FindActivePartnerUser(ctx context.Context, partnerID, userID string) (*model.PartnerUser, error) {
	users := r.partnerUsers.Select(ctx, func(u *model.PartnerUser) bool {
		return u.PartnerID == partnerID && u.UserID == userID && u.Active
	}, nil)
	if len(users) == 0 {
		return nil, catalogerrors.ErrPartnerUserNotFound
	}
	return users[0], nil
}

func (r *memoryCatalogRepository) UpsertResource(ctx context.Context, resource *model.Resource) error {
	r.resources.Put(ctx, resource.ID, resource)
	return nil
}

func (r *memoryCatalogRepository) UpsertPartnerUser(ctx context.Context, user *model.PartnerUser) error {
	r.partnerUsers.Put(ctx, user.ID, user)
	return nil
}
