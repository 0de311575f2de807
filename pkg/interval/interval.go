// Package interval answers whether a resource has committed or provisionally
// held occupancy overlapping a half-open time range [From, To).
package interval

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidInterval = errors.New("interval end must be after its start")

type Interval struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func New(from, to time.Time) Interval {
	return Interval{From: from.UTC(), To: to.UTC()}
}

// Validate rejects degenerate intervals. Callers run it before any overlap query.
func (i Interval) Validate() error {
	if i.From.IsZero() || i.To.IsZero() || !i.To.After(i.From) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps reports whether [a.From, a.To) and [b.From, b.To) intersect.
func Overlaps(a, b Interval) bool {
	return a.From.Before(b.To) && b.From.Before(a.To)
}

func (i Interval) Duration() time.Duration {
	return i.To.Sub(i.From)
}

// Occupant is anything that occupies a resource for an interval: a committed
// block or a provisional hold. OwnerID is the reservation behind it, empty for
// manual blocks.
type Occupant struct {
	ID       string
	OwnerID  string
	Interval Interval
}

// BlockSource lists committed occupancy overlapping a window.
type BlockSource interface {
	OverlappingBlocks(ctx context.Context, resourceID string, window Interval) ([]Occupant, error)
}

// HoldSource lists reservations that provisionally hold a resource: committed
// reservations, and pending ones created after freshSince.
type HoldSource interface {
	OverlappingHolds(ctx context.Context, resourceID string, window Interval, freshSince time.Time) ([]Occupant, error)
}

type Index struct {
	blocks BlockSource
	holds  HoldSource
}

func NewIndex(blocks BlockSource, holds HoldSource) *Index {
	return &Index{blocks: blocks, holds: holds}
}

// Query parameterizes a single overlap check.
type Query struct {
	ResourceID           string
	Window               Interval
	ExcludeReservationID string
	// IncludeHolds extends the check to reservations returned by the HoldSource.
	IncludeHolds bool
	// FreshSince bounds which pending reservations still count as live holds.
	FreshSince time.Time
}

// HasOverlap is a pure read. The window must already be valid.
func (x *Index) HasOverlap(ctx context.Context, q Query) (bool, error) {
	conflict, err := x.FirstConflict(ctx, q)
	if err != nil {
		return false, err
	}
	return conflict != nil, nil
}

// FirstConflict returns the first occupant overlapping the query window, or nil.
func (x *Index) FirstConflict(ctx context.Context, q Query) (*Occupant, error) {
	blocks, err := x.blocks.OverlappingBlocks(ctx, q.ResourceID, q.Window)
	if err != nil {
		return nil, err
	}
	if o := firstOverlap(blocks, q); o != nil {
		return o, nil
	}

	if !q.IncludeHolds || x.holds == nil {
		return nil, nil
	}

	holds, err := x.holds.OverlappingHolds(ctx, q.ResourceID, q.Window, q.FreshSince)
	if err != nil {
		return nil, err
	}
	return firstOverlap(holds, q), nil
}

func firstOverlap(occupants []Occupant, q Query) *Occupant {
	for i := range occupants {
		o := occupants[i]
		if q.ExcludeReservationID != "" && o.OwnerID == q.ExcludeReservationID {
			continue
		}
		if Overlaps(o.Interval, q.Window) {
			return &o
		}
	}
	return nil
}
