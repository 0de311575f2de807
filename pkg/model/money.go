package model

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Money is a decimal amount in major currency units. It is stored in Mongo as
// its canonical string so no precision is lost to float64.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return Money{Decimal: d}, nil
}

// MinorUnits converts to the integer amount payment providers expect (x100).
func (m Money) MinorUnits() int64 {
	return m.Shift(2).Round(0).IntPart()
}

func (m Money) Add(other Money) Money {
	return Money{Decimal: m.Decimal.Add(other.Decimal)}
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.String())
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var s string
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&s); err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decode money %q: %w", s, err)
	}
	m.Decimal = d
	return nil
}
