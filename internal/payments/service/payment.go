package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	paymentserrors "rentcore/internal/payments/errors"
	"rentcore/internal/payments/repository"
	"rentcore/internal/payments/validator"
	reservationservice "rentcore/internal/reservations/service"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	mongotx "rentcore/pkg/db/mongo"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/lock"
	"rentcore/pkg/model"
	"rentcore/pkg/sanitizer"
	"rentcore/pkg/validation"

	"github.com/google/uuid"
)

// Reservations is the slice of the reservation engine payments depend on.
type Reservations interface {
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	MarkPaid(ctx context.Context, id, paymentRecordID string, steps ...reservationservice.TxStep) (*model.Reservation, error)
	MarkPaymentFailed(ctx context.Context, id, paymentRecordID string, steps ...reservationservice.TxStep) (*model.Reservation, error)
}

type PaymentService interface {
	Initiate(ctx context.Context, req *model.InitiatePaymentRequest) (*model.PaymentRecord, error)
	Apply(ctx context.Context, event *model.PaymentEvent) (*model.PaymentResult, error)
	GetByID(ctx context.Context, id string) (*model.PaymentRecord, error)
	ListForReservation(ctx context.Context, reservationID string) ([]*model.PaymentRecord, error)
}

type paymentService struct {
	repo         repository.PaymentRepository
	reservations Reservations
	locker       lock.Locker
	tx           mongotx.TransactionManager
	validator    *validator.PaymentValidator
	clock        clock.Clock
	cfg          *config.Config
}

func NewPaymentService(
	repo repository.PaymentRepository,
	reservations Reservations,
	locker lock.Locker,
	tx mongotx.TransactionManager,
	validator *validator.PaymentValidator,
	clk clock.Clock,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:         repo,
		reservations: reservations,
		locker:       locker,
		tx:           tx,
		validator:    validator,
		clock:        clk,
		cfg:          cfg,
	}
}

// Initiate opens a payment attempt for a confirmed, unpaid reservation whose
// unpaid hold is still open. A previous pending attempt is superseded in the
// same transaction.
func (s *paymentService) Initiate(ctx context.Context, req *model.InitiatePaymentRequest) (*model.PaymentRecord, error) {
	req.ReservationID = sanitizer.NormalizeID(req.ReservationID)
	req.Provider = model.PaymentProvider(sanitizer.NormalizeProvider(string(req.Provider)))
	req.Currency = sanitizer.NormalizeCurrency(req.Currency)
	if err := s.validator.ValidateInitiate(req); err != nil {
		return nil, validationError("Payment validation failed", err)
	}

	var record *model.PaymentRecord
	err := s.withPaymentLock(ctx, req.ReservationID, func(ctx context.Context) error {
		current, err := s.reservations.GetByID(ctx, req.ReservationID)
		if err != nil {
			return err
		}

		return s.withResourceLock(ctx, current.ResourceID, func(ctx context.Context) error {
			return s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
				// re-read: the sweeper may have moved it since the lookup above
				reservation, err := s.reservations.GetByID(ctx, req.ReservationID)
				if err != nil {
					return err
				}

				now := s.now()
				if err := s.checkPayable(reservation, now); err != nil {
					return err
				}

				currency := req.Currency
				if currency == "" {
					currency = reservation.Currency
				}
				if currency != reservation.Currency {
					return apperrors.InvalidAmount(fmt.Sprintf("Reservation is priced in %s", reservation.Currency))
				}
				amount := reservation.Quote.MinorUnits()
				if amount <= 0 {
					return apperrors.InvalidAmount("Reservation has no payable amount")
				}

				id := uuid.New().String()
				record = &model.PaymentRecord{
					ID:            id,
					ReservationID: reservation.ID,
					Provider:      req.Provider,
					Amount:        amount,
					Currency:      currency,
					ExternalRef:   fmt.Sprintf("%s-%s-%d", req.Provider, id, now.Unix()),
					Status:        model.PaymentPending,
					CreatedAt:     now,
					UpdatedAt:     now,
				}

				if err := s.failPending(ctx, reservation.ID, "superseded_by", id, now); err != nil {
					return err
				}
				if err := s.repo.Insert(ctx, record); err != nil {
					return repoError("Failed to create payment", err)
				}
				return nil
			})
		})
	})
	if err != nil {
		s.cfg.Log.Warn("Payment not initiated", "reservation_id", req.ReservationID, "provider", req.Provider, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Payment initiated",
		"payment_id", record.ID,
		"reservation_id", record.ReservationID,
		"provider", record.Provider,
		"amount", record.Amount,
		"currency", record.Currency,
	)
	return record, nil
}

// Apply reconciles a normalized provider event with its PaymentRecord and the
// reservation behind it. Re-delivering an applied event returns the same
// result with Replayed set.
func (s *paymentService) Apply(ctx context.Context, event *model.PaymentEvent) (*model.PaymentResult, error) {
	event.MappingKey = sanitizer.NormalizeID(event.MappingKey)
	event.Currency = sanitizer.NormalizeCurrency(event.Currency)
	if err := s.validator.ValidateEvent(event); err != nil {
		return nil, validationError("Payment event validation failed", err)
	}

	record, err := s.resolve(ctx, event.MappingKey)
	if err != nil {
		return nil, err
	}

	var result *model.PaymentResult
	err = s.withPaymentLock(ctx, record.ReservationID, func(ctx context.Context) error {
		record, err := s.repo.FindByID(ctx, record.ID)
		if err != nil {
			return apperrors.Internal("Failed to reload payment", err)
		}
		if event.Amount != record.Amount || event.Currency != record.Currency {
			return apperrors.InvalidAmount("Payment amount does not match the record").WithDetails(map[string]any{
				"expected_amount":   record.Amount,
				"expected_currency": record.Currency,
				"amount":            event.Amount,
				"currency":          event.Currency,
			})
		}

		switch event.Outcome {
		case model.OutcomeSuccess:
			result, err = s.applySuccess(ctx, record, event)
		case model.OutcomeCancel:
			result, err = s.applyCancel(ctx, record, event)
		default:
			err = apperrors.InvalidInput(fmt.Sprintf("Unknown payment outcome %q", event.Outcome))
		}
		return err
	})
	if err != nil {
		s.cfg.Log.Warn("Payment event rejected",
			"mapping_key", event.MappingKey,
			"external_transaction_id", event.ExternalTransactionID,
			"outcome", event.Outcome,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Payment event applied",
		"payment_id", result.PaymentID,
		"reservation_id", result.ReservationID,
		"outcome", event.Outcome,
		"status", result.Status,
		"replayed", result.Replayed,
	)
	return result, nil
}

func (s *paymentService) applySuccess(ctx context.Context, record *model.PaymentRecord, event *model.PaymentEvent) (*model.PaymentResult, error) {
	if record.Status == model.PaymentPaid {
		return resultOf(record, true), nil
	}

	// Another record already settled this reservation. Callers hold the
	// payment lock, so the marker cannot change under us.
	reservation, err := s.reservations.GetByID(ctx, record.ReservationID)
	if err != nil {
		return nil, err
	}
	if reservation.IsPaid() {
		return nil, apperrors.InvalidState("Reservation is already paid by another payment").WithDetails(map[string]any{
			"payment_id":     record.ID,
			"payment_status": record.Status,
			"reservation_id": reservation.ID,
		})
	}

	expected := record.Status
	applied := false
	_, err = s.reservations.MarkPaid(ctx, record.ReservationID, record.ID, func(ctx context.Context, _ *model.Reservation) error {
		now := s.now()
		record.Status = model.PaymentPaid
		record.ExternalTransactionID = event.ExternalTransactionID
		record.UpdatedAt = now
		if expected == model.PaymentFailed {
			record.SetMeta("paid_after_failure", true)
			// the attempt that superseded this one can no longer settle
			if err := s.failPending(ctx, record.ReservationID, "superseded_by", record.ID, now); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateIf(ctx, record, expected); err != nil {
			return repoError("Failed to update payment", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperrors.InvalidState("Reservation is already paid by another payment").
			WithDetails(map[string]any{"payment_id": record.ID, "reservation_id": record.ReservationID})
	}
	return resultOf(record, false), nil
}

// checkPayable reports why reservation cannot take a new payment attempt at now.
func (s *paymentService) checkPayable(reservation *model.Reservation, now time.Time) error {
	if reservation.Status != model.StatusConfirmed || reservation.IsPaid() {
		return apperrors.InvalidState("Only a confirmed, unpaid reservation can be paid for").
			WithDetails(map[string]any{"status": reservation.Status, "payment_marker": reservation.PaymentMarker})
	}
	if now.Sub(reservation.UpdatedAt) >= s.cfg.UnpaidHoldTTL {
		return apperrors.TTLExpired("Unpaid hold has expired").WithDetails(map[string]any{
			"reservation_id": reservation.ID,
			"expired_at":     reservation.UpdatedAt.Add(s.cfg.UnpaidHoldTTL),
		})
	}
	return nil
}

// failPending moves the reservation's pending attempt, if any, to failed and
// records why under metaKey.
func (s *paymentService) failPending(ctx context.Context, reservationID, metaKey, by string, now time.Time) error {
	previous, err := s.repo.FindPendingByReservation(ctx, reservationID)
	if errors.Is(err, paymentserrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Internal("Failed to look up pending payment", err)
	}

	previous.Status = model.PaymentFailed
	previous.SetMeta(metaKey, by)
	previous.UpdatedAt = now
	if err := s.repo.UpdateIf(ctx, previous, model.PaymentPending); err != nil {
		return repoError("Failed to supersede payment", err)
	}
	s.cfg.Log.Info("Pending payment superseded",
		"payment_id", previous.ID,
		"superseded_by", by,
		"reservation_id", reservationID,
	)
	return nil
}

func (s *paymentService) applyCancel(ctx context.Context, record *model.PaymentRecord, event *model.PaymentEvent) (*model.PaymentResult, error) {
	if record.Status == model.PaymentPaid || record.Status == model.PaymentFailed {
		return resultOf(record, true), nil
	}

	expected := record.Status
	_, err := s.reservations.MarkPaymentFailed(ctx, record.ReservationID, record.ID, func(ctx context.Context, _ *model.Reservation) error {
		record.Status = model.PaymentFailed
		record.ExternalTransactionID = event.ExternalTransactionID
		record.SetMeta("canceled_by_provider", true)
		record.UpdatedAt = s.now()
		return repoError("Failed to update payment", s.repo.UpdateIf(ctx, record, expected))
	})
	if err != nil {
		return nil, err
	}
	return resultOf(record, false), nil
}

func (s *paymentService) GetByID(ctx context.Context, id string) (*model.PaymentRecord, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Payment ID cannot be empty")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, paymentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", id)
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}
	return record, nil
}

func (s *paymentService) ListForReservation(ctx context.Context, reservationID string) ([]*model.PaymentRecord, error) {
	if reservationID == "" {
		return nil, apperrors.InvalidInput("reservation_id is required")
	}
	records, err := s.repo.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list payments", err)
	}
	return records, nil
}

// resolve finds the record an event refers to, by id first and external reference second.
func (s *paymentService) resolve(ctx context.Context, key string) (*model.PaymentRecord, error) {
	record, err := s.repo.FindByID(ctx, key)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, paymentserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to resolve payment", err)
	}

	record, err = s.repo.FindByExternalRef(ctx, key)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, paymentserrors.ErrNotFound) {
		return nil, apperrors.AccountNotFound("No payment matches the event").WithDetails(map[string]any{"mapping_key": key})
	}
	return nil, apperrors.Internal("Failed to resolve payment", err)
}

func (s *paymentService) withPaymentLock(ctx context.Context, reservationID string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, lock.PaymentKey(reservationID))
	if err != nil {
		s.cfg.Log.Warn("Failed to acquire payment lock", "reservation_id", reservationID, "error", err)
		return apperrors.Timeout("Payment is being processed, please retry")
	}
	defer unlock()
	return fn(ctx)
}

func (s *paymentService) withResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, lock.ResourceKey(resourceID))
	if err != nil {
		s.cfg.Log.Warn("Failed to acquire resource lock", "resource_id", resourceID, "error", err)
		return apperrors.Timeout("Resource is busy, please retry")
	}
	defer unlock()
	return fn(ctx)
}

func (s *paymentService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func resultOf(record *model.PaymentRecord, replayed bool) *model.PaymentResult {
	return &model.PaymentResult{
		PaymentID:     record.ID,
		ReservationID: record.ReservationID,
		Status:        record.Status,
		Replayed:      replayed,
	}
}

func repoError(message string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, paymentserrors.ErrDuplicate):
		return apperrors.Conflict("A pending payment already exists for this reservation")
	case errors.Is(err, paymentserrors.ErrStaleWrite):
		return apperrors.Conflict("Payment was modified concurrently, please retry")
	default:
		return apperrors.Internal(message, err)
	}
}

func validationError(message string, err error) *apperrors.AppError {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
