package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	catalogservice "rentcore/internal/catalog/service"
	ledgerservice "rentcore/internal/ledger/service"
	reservationserrors "rentcore/internal/reservations/errors"
	"rentcore/internal/reservations/repository"
	"rentcore/internal/reservations/validator"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	mongotx "rentcore/pkg/db/mongo"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/interval"
	"rentcore/pkg/lock"
	"rentcore/pkg/model"
	"rentcore/pkg/sanitizer"
	"rentcore/pkg/validation"

	"github.com/google/uuid"
)

// TxStep runs inside the transaction of a payment transition, after the
// reservation has been written. A step error rolls the whole transition back.
type TxStep func(ctx context.Context, reservation *model.Reservation) error

type ReservationService interface {
	Create(ctx context.Context, req *model.CreateReservationRequest) (*model.Reservation, error)
	Confirm(ctx context.Context, id, confirmerID string) (*model.Reservation, error)
	Reject(ctx context.Context, id, confirmerID string) (*model.Reservation, error)
	Cancel(ctx context.Context, id, requesterID string) (*model.Reservation, error)
	Issue(ctx context.Context, id, confirmerID string) (*model.Reservation, error)
	Complete(ctx context.Context, id, confirmerID string) (*model.Reservation, error)

	MarkPaid(ctx context.Context, id, paymentRecordID string, steps ...TxStep) (*model.Reservation, error)
	MarkPaymentFailed(ctx context.Context, id, paymentRecordID string, steps ...TxStep) (*model.Reservation, error)

	// ExpireIfStale and CancelIfUnpaidStale are the sweeper's transitions. They
	// re-check the TTL under the resource lock and report whether they acted.
	ExpireIfStale(ctx context.Context, id string) (bool, error)
	CancelIfUnpaidStale(ctx context.Context, id string) (bool, error)

	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	List(ctx context.Context, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, int64, error)

	Availability(ctx context.Context, resourceID string, window interval.Interval, excludeReservationID string) (*model.Availability, error)
	Blocks(ctx context.Context, resourceID string) ([]*model.OccupancyBlock, error)
	AddBlock(ctx context.Context, resourceID string, req *model.ManualBlockRequest) (*model.OccupancyBlock, error)
	RemoveBlock(ctx context.Context, resourceID, blockID, partnerUserID string) error
	RebuildLedger(ctx context.Context, resourceID, partnerUserID string) (int, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	ledger    ledgerservice.Ledger
	catalog   catalogservice.CatalogService
	index     *interval.Index
	locker    lock.Locker
	tx        mongotx.TransactionManager
	validator *validator.ReservationValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	blocks interval.BlockSource,
	ledger ledgerservice.Ledger,
	catalog catalogservice.CatalogService,
	locker lock.Locker,
	tx mongotx.TransactionManager,
	validator *validator.ReservationValidator,
	clk clock.Clock,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		ledger:    ledger,
		catalog:   catalog,
		index:     interval.NewIndex(blocks, repo),
		locker:    locker,
		tx:        tx,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, req *model.CreateReservationRequest) (*model.Reservation, error) {
	req.ResourceID = sanitizer.NormalizeID(req.ResourceID)
	req.RequesterID = sanitizer.NormalizeID(req.RequesterID)
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, validationError("Reservation validation failed", err)
	}

	window := interval.New(req.From.Truncate(time.Millisecond), req.To.Truncate(time.Millisecond))
	if err := window.Validate(); err != nil {
		return nil, apperrors.InvalidInterval("to must be after from")
	}

	resource, err := s.catalog.ActiveResource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	reservation := &model.Reservation{
		ID:            uuid.New().String(),
		ResourceID:    resource.ID,
		PartnerID:     resource.PartnerID,
		RequesterID:   req.RequesterID,
		From:          window.From,
		To:            window.To,
		Quote:         s.catalog.Quote(resource, window),
		Currency:      resource.Currency,
		Status:        model.StatusPending,
		PaymentMarker: model.MarkerUnpaid,
	}

	err = s.withResourceLock(ctx, resource.ID, func(ctx context.Context) error {
		return s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
			now := s.now()
			conflict, err := s.index.FirstConflict(ctx, interval.Query{
				ResourceID:   resource.ID,
				Window:       window,
				IncludeHolds: true,
				FreshSince:   now.Add(-s.cfg.PendingHoldTTL),
			})
			if err != nil {
				return apperrors.Internal("Failed to check availability", err)
			}
			if conflict != nil {
				return overlapError(conflict)
			}

			reservation.CreatedAt = now
			reservation.UpdatedAt = now
			if err := s.repo.Insert(ctx, reservation); err != nil {
				return apperrors.Internal("Failed to create reservation", err)
			}
			return nil
		})
	})
	if err != nil {
		s.cfg.Log.Warn("Reservation not created",
			"resource_id", req.ResourceID,
			"requester_id", req.RequesterID,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created",
		"id", reservation.ID,
		"resource_id", reservation.ResourceID,
		"requester_id", reservation.RequesterID,
		"from", reservation.From,
		"to", reservation.To,
		"quote", reservation.Quote.String(),
	)
	return reservation, nil
}

func (s *reservationService) Confirm(ctx context.Context, id, confirmerID string) (*model.Reservation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Authorize(ctx, current.PartnerID, confirmerID); err != nil {
		return nil, err
	}

	var expired bool
	result, err := s.transition(ctx, current, func(ctx context.Context, r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusPending {
			return invalidState("confirm", r.Status)
		}
		if now.Sub(r.CreatedAt) >= s.cfg.PendingHoldTTL {
			expired = true
			r.Transition(model.StatusExpired, now)
			return nil
		}

		conflict, err := s.index.FirstConflict(ctx, interval.Query{
			ResourceID:           r.ResourceID,
			Window:               r.Interval(),
			ExcludeReservationID: r.ID,
		})
		if err != nil {
			return apperrors.Internal("Failed to check availability", err)
		}
		if conflict != nil {
			return overlapError(conflict)
		}

		r.Transition(model.StatusConfirmed, now)
		return nil
	}, func(ctx context.Context, r *model.Reservation) error {
		if r.Status != model.StatusConfirmed {
			return nil
		}
		_, err := s.ledger.Commit(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.cfg.Log.Info("Reservation expired on late confirm", "id", id, "confirmer_id", confirmerID)
		return nil, apperrors.TTLExpired("Reservation hold has expired").WithDetails(map[string]any{"id": id})
	}

	s.cfg.Log.Info("Reservation confirmed", "id", id, "confirmer_id", confirmerID)
	return result, nil
}

func (s *reservationService) Reject(ctx context.Context, id, confirmerID string) (*model.Reservation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Authorize(ctx, current.PartnerID, confirmerID); err != nil {
		return nil, err
	}

	result, err := s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusPending {
			return invalidState("reject", r.Status)
		}
		r.Transition(model.StatusRejected, now)
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Reservation rejected", "id", id, "confirmer_id", confirmerID)
	return result, nil
}

func (s *reservationService) Cancel(ctx context.Context, id, requesterID string) (*model.Reservation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requesterID == "" || current.RequesterID != requesterID {
		return nil, apperrors.Forbidden("Only the requester may cancel this reservation")
	}

	var released bool
	result, err := s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		switch r.Status {
		case model.StatusPending:
		case model.StatusConfirmed:
			if r.IsPaid() {
				return apperrors.InvalidState("A paid reservation cannot be canceled by the requester")
			}
			if now.Sub(r.UpdatedAt) < s.cfg.SelfCancelAfter {
				return apperrors.TooEarly("The partner's payment window is still open").WithDetails(map[string]any{
					"retry_after": r.UpdatedAt.Add(s.cfg.SelfCancelAfter).Format(time.RFC3339),
				})
			}
			released = true
		default:
			return invalidState("cancel", r.Status)
		}
		r.Transition(model.StatusCanceled, now)
		return nil
	}, func(ctx context.Context, r *model.Reservation) error {
		if !released {
			return nil
		}
		return s.ledger.Release(ctx, r.ID)
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Reservation canceled by requester", "id", id, "released_block", released)
	return result, nil
}

func (s *reservationService) Issue(ctx context.Context, id, confirmerID string) (*model.Reservation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Authorize(ctx, current.PartnerID, confirmerID); err != nil {
		return nil, err
	}

	result, err := s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusConfirmed {
			return invalidState("issue", r.Status)
		}
		if !r.IsPaid() {
			return apperrors.InvalidState("Reservation must be paid before the vehicle is issued")
		}
		r.Transition(model.StatusIssued, now)
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Reservation issued", "id", id, "confirmer_id", confirmerID)
	return result, nil
}

func (s *reservationService) Complete(ctx context.Context, id, confirmerID string) (*model.Reservation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Authorize(ctx, current.PartnerID, confirmerID); err != nil {
		return nil, err
	}

	result, err := s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusIssued {
			return invalidState("complete", r.Status)
		}
		r.Transition(model.StatusCompleted, now)
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Reservation completed", "id", id, "confirmer_id", confirmerID)
	return result, nil
}

// MarkPaid sets the payment marker on a confirmed reservation. A reservation
// that is already paid is returned as is and steps do not run.
func (s *reservationService) MarkPaid(ctx context.Context, id, paymentRecordID string, steps ...TxStep) (*model.Reservation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var replayed bool
	result, err := s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		if r.IsPaid() && r.Status.IsCommitted() {
			replayed = true
			return nil
		}
		if r.Status != model.StatusConfirmed {
			return invalidState("mark paid", r.Status)
		}
		r.PaymentMarker = model.MarkerPaid
		r.UpdatedAt = now
		return nil
	}, func(ctx context.Context, r *model.Reservation) error {
		if replayed {
			return nil
		}
		return runSteps(steps)(ctx, r)
	})
	if err != nil {
		s.cfg.Log.Warn("Mark paid failed", "id", id, "payment_id", paymentRecordID, "error", err)
		return nil, err
	}

	if !replayed {
		s.cfg.Log.Info("Reservation paid", "id", id, "payment_id", paymentRecordID)
	}
	return result, nil
}

// MarkPaymentFailed cancels a pending or unpaid confirmed reservation when the
// cancel-on-payment-failure policy is on. Otherwise the reservation is untouched.
func (s *reservationService) MarkPaymentFailed(ctx context.Context, id, paymentRecordID string, steps ...TxStep) (*model.Reservation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var canceled, released bool
	result, err := s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		if !s.cfg.CancelOnPaymentFailure {
			return nil
		}
		switch {
		case r.Status == model.StatusPending:
		case r.Status == model.StatusConfirmed && !r.IsPaid():
			released = true
		default:
			return nil
		}
		canceled = true
		r.Transition(model.StatusCanceled, now)
		return nil
	}, func(ctx context.Context, r *model.Reservation) error {
		if released {
			if err := s.ledger.Release(ctx, r.ID); err != nil {
				return err
			}
		}
		return runSteps(steps)(ctx, r)
	})
	if err != nil {
		s.cfg.Log.Warn("Mark payment failed did not apply", "id", id, "payment_id", paymentRecordID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Payment failure recorded",
		"id", id,
		"payment_id", paymentRecordID,
		"canceled", canceled,
	)
	return result, nil
}

func (s *reservationService) ExpireIfStale(ctx context.Context, id string) (bool, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	var acted bool
	_, err = s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusPending || now.Sub(r.CreatedAt) < s.cfg.PendingHoldTTL {
			return nil
		}
		acted = true
		r.Transition(model.StatusExpired, now)
		return nil
	}, nil)
	if err != nil {
		return false, err
	}
	return acted, nil
}

func (s *reservationService) CancelIfUnpaidStale(ctx context.Context, id string) (bool, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	var acted bool
	_, err = s.transition(ctx, current, func(_ context.Context, r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusConfirmed || r.IsPaid() || now.Sub(r.UpdatedAt) < s.cfg.UnpaidHoldTTL {
			return nil
		}
		acted = true
		r.Transition(model.StatusCanceled, now)
		return nil
	}, func(ctx context.Context, r *model.Reservation) error {
		if !acted {
			return nil
		}
		return s.ledger.Release(ctx, r.ID)
	})
	if err != nil {
		return false, err
	}
	return acted, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func (s *reservationService) List(ctx context.Context, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", err)
			errCount = apperrors.Internal("Failed to count reservations", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		reservations, err = s.repo.List(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list reservations", "limit", limit, "offset", offset, "error", err)
			errFind = apperrors.Internal("Failed to retrieve reservations", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return reservations, count, nil
}

// Availability answers whether Create would currently accept the window.
func (s *reservationService) Availability(ctx context.Context, resourceID string, window interval.Interval, excludeReservationID string) (*model.Availability, error) {
	if err := window.Validate(); err != nil {
		return nil, apperrors.InvalidInterval("to must be after from")
	}
	if _, err := s.catalog.ActiveResource(ctx, resourceID); err != nil {
		return nil, err
	}

	busy, err := s.index.HasOverlap(ctx, interval.Query{
		ResourceID:           resourceID,
		Window:               window,
		ExcludeReservationID: excludeReservationID,
		IncludeHolds:         true,
		FreshSince:           s.now().Add(-s.cfg.PendingHoldTTL),
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	return &model.Availability{ResourceID: resourceID, From: window.From, To: window.To, Available: !busy}, nil
}

func (s *reservationService) Blocks(ctx context.Context, resourceID string) ([]*model.OccupancyBlock, error) {
	return s.ledger.BlocksFor(ctx, resourceID)
}

func (s *reservationService) AddBlock(ctx context.Context, resourceID string, req *model.ManualBlockRequest) (*model.OccupancyBlock, error) {
	if err := s.validator.ValidateManualBlock(req); err != nil {
		return nil, validationError("Block validation failed", err)
	}
	window := interval.New(req.From.Truncate(time.Millisecond), req.To.Truncate(time.Millisecond))
	if err := window.Validate(); err != nil {
		return nil, apperrors.InvalidInterval("to must be after from")
	}
	if err := s.authorizeForResource(ctx, resourceID, req.PartnerUserID); err != nil {
		return nil, err
	}

	var block *model.OccupancyBlock
	err := s.withResourceLock(ctx, resourceID, func(ctx context.Context) error {
		var err error
		block, err = s.ledger.AddManualBlock(ctx, resourceID, window, req.PartnerUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (s *reservationService) RemoveBlock(ctx context.Context, resourceID, blockID, partnerUserID string) error {
	if err := s.authorizeForResource(ctx, resourceID, partnerUserID); err != nil {
		return err
	}
	return s.withResourceLock(ctx, resourceID, func(ctx context.Context) error {
		return s.ledger.RemoveManualBlock(ctx, resourceID, blockID)
	})
}

func (s *reservationService) RebuildLedger(ctx context.Context, resourceID, partnerUserID string) (int, error) {
	if err := s.authorizeForResource(ctx, resourceID, partnerUserID); err != nil {
		return 0, err
	}

	var n int
	err := s.withResourceLock(ctx, resourceID, func(ctx context.Context) error {
		var err error
		n, err = s.ledger.Rebuild(ctx, resourceID)
		return err
	})
	return n, err
}

// --- Helpers ---

type mutateFunc func(ctx context.Context, r *model.Reservation, now time.Time) error

// transition is the one path every status change takes: lock the resource,
// re-read inside a transaction, let mutate decide, write conditionally, then
// run after (ledger work, payment steps) in the same transaction.
func (s *reservationService) transition(ctx context.Context, current *model.Reservation, mutate mutateFunc, after TxStep) (*model.Reservation, error) {
	var result *model.Reservation
	err := s.withResourceLock(ctx, current.ResourceID, func(ctx context.Context) error {
		return s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
			r, err := s.repo.FindByID(ctx, current.ID)
			if err != nil {
				if errors.Is(err, reservationserrors.ErrNotFound) {
					return apperrors.NotFoundWithID("Reservation", current.ID)
				}
				return apperrors.Internal("Failed to retrieve reservation", err)
			}

			prev := repository.VersionOf(r)
			prevMarker := r.PaymentMarker
			if err := mutate(ctx, r, s.now()); err != nil {
				return err
			}

			if r.Status != prev.Status || r.PaymentMarker != prevMarker {
				if r.Status != prev.Status && !prev.Status.CanTransitionTo(r.Status) {
					return invalidState(string(r.Status), prev.Status)
				}
				if err := s.repo.UpdateIf(ctx, r, prev); err != nil {
					if errors.Is(err, reservationserrors.ErrStaleWrite) {
						return apperrors.Conflict("Reservation was modified concurrently, please retry")
					}
					return apperrors.Internal("Failed to update reservation", err)
				}
			}

			if after != nil {
				if err := after(ctx, r); err != nil {
					return err
				}
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *reservationService) withResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, lock.ResourceKey(resourceID))
	if err != nil {
		s.cfg.Log.Warn("Failed to acquire resource lock", "resource_id", resourceID, "error", err)
		return apperrors.Timeout("Resource is busy, please retry")
	}
	defer unlock()
	return fn(ctx)
}

func (s *reservationService) authorizeForResource(ctx context.Context, resourceID, partnerUserID string) error {
	resource, err := s.catalog.ActiveResource(ctx, resourceID)
	if err != nil {
		return err
	}
	return s.catalog.Authorize(ctx, resource.PartnerID, partnerUserID)
}

func (s *reservationService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func runSteps(steps []TxStep) TxStep {
	return func(ctx context.Context, r *model.Reservation) error {
		for _, step := range steps {
			if err := step(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}
}

func invalidState(action string, status model.ReservationStatus) *apperrors.AppError {
	return apperrors.InvalidState(fmt.Sprintf("Cannot %s a reservation in status %s", action, status)).
		WithDetails(map[string]any{"status": status})
}

func overlapError(o *interval.Occupant) *apperrors.AppError {
	return apperrors.Conflict(fmt.Sprintf(
		"Resource is already reserved from %s to %s",
		o.Interval.From.Format(time.RFC3339),
		o.Interval.To.Format(time.RFC3339),
	))
}

func validationError(message string, err error) *apperrors.AppError {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
