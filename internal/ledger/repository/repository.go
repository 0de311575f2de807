package repository

import (
	"context"

	"rentcore/pkg/interval"
	"rentcore/pkg/model"
)

const CollectionName = "Occupancy_blocks"

type BlockRepository interface {
	Insert(ctx context.Context, block *model.OccupancyBlock) error
	FindByID(ctx context.Context, id string) (*model.OccupancyBlock, error)
	Delete(ctx context.Context, id string) error
	DeleteByReservation(ctx context.Context, reservationID string) (int64, error)
	DeleteByReason(ctx context.Context, resourceID string, reason model.BlockReason) (int64, error)
	ListForResource(ctx context.Context, resourceID string) ([]*model.OccupancyBlock, error)
	OverlappingBlocks(ctx context.Context, resourceID string, window interval.Interval) ([]interval.Occupant, error)
}
