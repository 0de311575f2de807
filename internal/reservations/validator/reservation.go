package validator

import (
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
	"rentcore/pkg/validation"
)

type ReservationValidator struct {
	v *validation.Validator
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	return &ReservationValidator{v: validation.New(log)}
}

// ValidateCreate checks field presence. Interval ordering is reported
// separately as InvalidInterval by the service.
func (r *ReservationValidator) ValidateCreate(req *model.CreateReservationRequest) error {
	return r.v.Struct(req)
}

func (r *ReservationValidator) ValidatePartnerAction(req *model.PartnerActionRequest) error {
	return r.v.Struct(req)
}

func (r *ReservationValidator) ValidateCancel(req *model.CancelRequest) error {
	return r.v.Struct(req)
}

func (r *ReservationValidator) ValidateManualBlock(req *model.ManualBlockRequest) error {
	return r.v.Struct(req)
}
