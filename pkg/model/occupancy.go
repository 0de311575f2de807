package model

import (
	"time"

	"rentcore/pkg/interval"
)

type BlockReason string

const (
	ReasonReservation BlockReason = "reservation"
	ReasonManualBlock BlockReason = "manual-block"
)

// OccupancyBlock is a committed period during which a resource is unavailable.
type OccupancyBlock struct {
	ID            string      `json:"id" bson:"_id"`
	ResourceID    string      `json:"resource_id" bson:"resource_id"`
	From          time.Time   `json:"from" bson:"from"`
	To            time.Time   `json:"to" bson:"to"`
	Reason        BlockReason `json:"reason" bson:"reason"`
	ReservationID string      `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	CreatedBy     string      `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at" bson:"created_at"`
}

func (b *OccupancyBlock) Interval() interval.Interval {
	return interval.Interval{From: b.From, To: b.To}
}

func (b *OccupancyBlock) Occupant() interval.Occupant {
	return interval.Occupant{ID: b.ID, OwnerID: b.ReservationID, Interval: b.Interval()}
}
