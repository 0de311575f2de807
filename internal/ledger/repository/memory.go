package repository

import (
	"context"

	ledgererrors "rentcore/internal/ledger/errors"
	"rentcore/pkg/db/memory"
	"rentcore/pkg/interval"
	"rentcore/pkg/model"
)

type memoryBlockRepository struct {
	blocks *memory.Table[*model.OccupancyBlock]
}

func NewMemoryBlockRepository(store *memory.Store) BlockRepository {
	return &memoryBlockRepository{
		blocks: memory.NewTable(store, func(b *model.OccupancyBlock) *model.OccupancyBlock { c := *b; return &c }),
	}
}

func byFrom(a, b *model.OccupancyBlock) bool {
	return a.From.Before(b.From)
}

func (r *memoryBlockRepository) Insert(ctx context.Context, block *model.OccupancyBlock) error {
	if !r.blocks.Insert(ctx, block.ID, block) {
		return ledgererrors.ErrBlockExists
	}
	return nil
}

func (r *memoryBlockRepository) FindByID(ctx context.Context, id string) (*model.OccupancyBlock, error) {
	block, ok := r.blocks.Get(ctx, id)
	if !ok {
		return nil, ledgererrors.ErrBlockNotFound
	}
	return block, nil
}

func (r *memoryBlockRepository) Delete(ctx context.Context, id string) error {
	if !r.blocks.Delete(ctx, id) {
		return ledgererrors.ErrBlockNotFound
	}
	return nil
}

func (r *memoryBlockRepository) DeleteByReservation(ctx context.Context, reservationID string) (int64, error) {
	n := r.blocks.DeleteWhere(ctx, func(b *model.OccupancyBlock) bool {
		return b.ReservationID == reservationID
	})
	return int64(n), nil
}

func (r *memoryBlockRepository) DeleteByReason(ctx context.Context, resourceID string, reason model.BlockReason) (int64, error) {
	n := r.blocks.DeleteWhere(ctx, func(b *model.OccupancyBlock) bool {
		return b.ResourceID == resourceID && b.Reason == reason
	})
	return int64(n), nil
}

func (r *memoryBlockRepository) ListForResource(ctx context.Context, resourceID string) ([]*model.OccupancyBlock, error) {
	return r.blocks.Select(ctx, func(b *model.OccupancyBlock) bool {
		return b.ResourceID == resourceID
	}, byFrom), nil
}

func (r *memoryBlockRepository) OverlappingBlocks(ctx context.Context, resourceID string, window interval.Interval) ([]interval.Occupant, error) {
	blocks := r.blocks.Select(ctx, func(b *model.OccupancyBlock) bool {
		return b.ResourceID == resourceID && interval.Overlaps(b.Interval(), window)
	}, byFrom)

	occupants := make([]interval.Occupant, 0, len(blocks))
	for _, b := range blocks {
		occupants = append(occupants, b.Occupant())
	}
	return occupants, nil
}
