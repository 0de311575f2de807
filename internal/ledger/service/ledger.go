package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	ledgererrors "rentcore/internal/ledger/errors"
	"rentcore/internal/ledger/repository"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	mongotx "rentcore/pkg/db/mongo"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/interval"
	"rentcore/pkg/model"

	"github.com/google/uuid"
)

// CommittedSource lists the reservations that must own a block on a resource.
type CommittedSource interface {
	Committed(ctx context.Context, resourceID string) ([]*model.Reservation, error)
}

// Ledger is the authoritative record of committed occupancy per resource.
// Callers hold the resource lock for every mutating call.
type Ledger interface {
	BlocksFor(ctx context.Context, resourceID string) ([]*model.OccupancyBlock, error)
	Commit(ctx context.Context, reservation *model.Reservation) (*model.OccupancyBlock, error)
	Release(ctx context.Context, reservationID string) error
	AddManualBlock(ctx context.Context, resourceID string, window interval.Interval, createdBy string) (*model.OccupancyBlock, error)
	RemoveManualBlock(ctx context.Context, resourceID, blockID string) error
	Rebuild(ctx context.Context, resourceID string) (int, error)
}

type ledger struct {
	blocks    repository.BlockRepository
	committed CommittedSource
	index     *interval.Index
	tx        mongotx.TransactionManager
	clock     clock.Clock
	cfg       *config.Config
}

func NewLedger(
	blocks repository.BlockRepository,
	committed CommittedSource,
	tx mongotx.TransactionManager,
	clk clock.Clock,
	cfg *config.Config,
) Ledger {
	return &ledger{
		blocks:    blocks,
		committed: committed,
		index:     interval.NewIndex(blocks, nil),
		tx:        tx,
		clock:     clk,
		cfg:       cfg,
	}
}

// ReservationBlockID derives a stable block id so a reservation can never own two blocks.
func ReservationBlockID(reservationID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("reservation:"+reservationID)).String()
}

func (l *ledger) BlocksFor(ctx context.Context, resourceID string) ([]*model.OccupancyBlock, error) {
	blocks, err := l.blocks.ListForResource(ctx, resourceID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list occupancy blocks", err)
	}
	return blocks, nil
}

// Commit records the reservation's interval as occupied. Committing the same
// reservation twice is a no-op.
func (l *ledger) Commit(ctx context.Context, reservation *model.Reservation) (*model.OccupancyBlock, error) {
	window := reservation.Interval()
	if err := window.Validate(); err != nil {
		return nil, apperrors.InvalidInterval(err.Error())
	}

	blockID := ReservationBlockID(reservation.ID)
	existing, err := l.blocks.FindByID(ctx, blockID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ledgererrors.ErrBlockNotFound) {
		return nil, apperrors.Internal("Failed to check occupancy block", err)
	}

	conflict, err := l.index.FirstConflict(ctx, interval.Query{
		ResourceID:           reservation.ResourceID,
		Window:               window,
		ExcludeReservationID: reservation.ID,
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to check occupancy", err)
	}
	if conflict != nil {
		return nil, conflictError(conflict)
	}

	block := &model.OccupancyBlock{
		ID:            blockID,
		ResourceID:    reservation.ResourceID,
		From:          window.From,
		To:            window.To,
		Reason:        model.ReasonReservation,
		ReservationID: reservation.ID,
		CreatedAt:     l.clock.Now(),
	}
	if err := l.blocks.Insert(ctx, block); err != nil {
		if errors.Is(err, ledgererrors.ErrBlockExists) {
			return block, nil
		}
		return nil, apperrors.Internal("Failed to commit occupancy block", err)
	}

	l.cfg.Log.Debug("Occupancy committed",
		"resource_id", block.ResourceID,
		"reservation_id", reservation.ID,
		"block_id", block.ID,
	)
	return block, nil
}

// Release drops the reservation's block. Releasing twice is a no-op.
func (l *ledger) Release(ctx context.Context, reservationID string) error {
	n, err := l.blocks.DeleteByReservation(ctx, reservationID)
	if err != nil {
		return apperrors.Internal("Failed to release occupancy block", err)
	}
	if n > 0 {
		l.cfg.Log.Debug("Occupancy released", "reservation_id", reservationID)
	}
	return nil
}

func (l *ledger) AddManualBlock(ctx context.Context, resourceID string, window interval.Interval, createdBy string) (*model.OccupancyBlock, error) {
	if err := window.Validate(); err != nil {
		return nil, apperrors.InvalidInterval(err.Error())
	}

	block := &model.OccupancyBlock{
		ID:         uuid.New().String(),
		ResourceID: resourceID,
		From:       window.From,
		To:         window.To,
		Reason:     model.ReasonManualBlock,
		CreatedBy:  createdBy,
		CreatedAt:  l.clock.Now(),
	}

	err := l.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		conflict, err := l.index.FirstConflict(ctx, interval.Query{ResourceID: resourceID, Window: window})
		if err != nil {
			return apperrors.Internal("Failed to check occupancy", err)
		}
		if conflict != nil {
			return conflictError(conflict)
		}
		if err := l.blocks.Insert(ctx, block); err != nil {
			return apperrors.Internal("Failed to add manual block", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.cfg.Log.Info("Manual block added",
		"resource_id", resourceID,
		"block_id", block.ID,
		"from", window.From,
		"to", window.To,
		"created_by", createdBy,
	)
	return block, nil
}

func (l *ledger) RemoveManualBlock(ctx context.Context, resourceID, blockID string) error {
	err := l.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		block, err := l.blocks.FindByID(ctx, blockID)
		if err != nil {
			if errors.Is(err, ledgererrors.ErrBlockNotFound) {
				return apperrors.NotFoundWithID("Block", blockID)
			}
			return apperrors.Internal("Failed to retrieve block", err)
		}
		if block.ResourceID != resourceID {
			return apperrors.NotFoundWithID("Block", blockID)
		}
		if block.Reason != model.ReasonManualBlock {
			return apperrors.InvalidState("Reservation blocks are released through the reservation")
		}
		if err := l.blocks.Delete(ctx, blockID); err != nil {
			return apperrors.Internal("Failed to remove block", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.cfg.Log.Info("Manual block removed", "resource_id", resourceID, "block_id", blockID)
	return nil
}

// Rebuild replaces every reservation block on the resource with one block per
// committed reservation. Manual blocks are left alone.
func (l *ledger) Rebuild(ctx context.Context, resourceID string) (int, error) {
	var rebuilt int
	err := l.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		rebuilt = 0
		reservations, err := l.committed.Committed(ctx, resourceID)
		if err != nil {
			return apperrors.Internal("Failed to list committed reservations", err)
		}
		if _, err := l.blocks.DeleteByReason(ctx, resourceID, model.ReasonReservation); err != nil {
			return apperrors.Internal("Failed to clear reservation blocks", err)
		}

		now := l.clock.Now()
		for _, r := range reservations {
			block := &model.OccupancyBlock{
				ID:            ReservationBlockID(r.ID),
				ResourceID:    r.ResourceID,
				From:          r.From,
				To:            r.To,
				Reason:        model.ReasonReservation,
				ReservationID: r.ID,
				CreatedAt:     now,
			}
			if err := l.blocks.Insert(ctx, block); err != nil {
				return apperrors.Internal("Failed to rebuild block", err)
			}
			rebuilt++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.cfg.Log.Info("Ledger rebuilt", "resource_id", resourceID, "blocks", rebuilt)
	return rebuilt, nil
}

func conflictError(o *interval.Occupant) *apperrors.AppError {
	return apperrors.Conflict(fmt.Sprintf(
		"Resource is occupied from %s to %s",
		o.Interval.From.Format(time.RFC3339),
		o.Interval.To.Format(time.RFC3339),
	)).WithDetails(map[string]any{"block_id": o.ID})
}
