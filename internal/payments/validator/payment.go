package validator

import (
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
	"rentcore/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type PaymentValidator struct {
	v *validation.Validator
}

func NewPaymentValidator(log *logger.Logger) *PaymentValidator {
	v := validation.New(log)
	v.Register("currency", validateCurrency)
	return &PaymentValidator{v: v}
}

func (p *PaymentValidator) ValidateInitiate(req *model.InitiatePaymentRequest) error {
	return p.v.Struct(req)
}

func (p *PaymentValidator) ValidateEvent(event *model.PaymentEvent) error {
	return p.v.Struct(event)
}

func validateCurrency(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
