package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

func TestReservationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ReservationStatus
		to   ReservationStatus
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusCanceled, true},
		{StatusPending, StatusIssued, false},
		{StatusConfirmed, StatusCanceled, true},
		{StatusConfirmed, StatusIssued, true},
		{StatusConfirmed, StatusExpired, false},
		{StatusConfirmed, StatusPending, false},
		{StatusIssued, StatusCompleted, true},
		{StatusIssued, StatusCanceled, false},
		{StatusRejected, StatusConfirmed, false},
		{StatusExpired, StatusConfirmed, false},
		{StatusCanceled, StatusPending, false},
		{StatusCompleted, StatusIssued, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReservationStatus_Classification(t *testing.T) {
	committed := map[ReservationStatus]bool{StatusConfirmed: true, StatusIssued: true, StatusCompleted: true}
	terminal := map[ReservationStatus]bool{StatusRejected: true, StatusExpired: true, StatusCanceled: true, StatusCompleted: true}

	for _, s := range []ReservationStatus{StatusPending, StatusConfirmed, StatusRejected, StatusExpired, StatusCanceled, StatusIssued, StatusCompleted} {
		if s.IsCommitted() != committed[s] {
			t.Errorf("%s.IsCommitted() = %v", s, s.IsCommitted())
		}
		if s.IsTerminal() != terminal[s] {
			t.Errorf("%s.IsTerminal() = %v", s, s.IsTerminal())
		}
	}
}

func TestParseReservationStatus(t *testing.T) {
	if s, err := ParseReservationStatus("issued"); err != nil || s != StatusIssued {
		t.Errorf("ParseReservationStatus(issued) = %q, %v", s, err)
	}
	if _, err := ParseReservationStatus("paid"); err == nil {
		t.Errorf("paid is a payment marker, not a status")
	}
}

func TestMoney_MinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"450000", 45000000},
		{"12.34", 1234},
		{"0.005", 1},
		{"0", 0},
	}
	for _, tt := range tests {
		m, err := MoneyFromString(tt.in)
		if err != nil {
			t.Fatalf("MoneyFromString(%s): %v", tt.in, err)
		}
		if got := m.MinorUnits(); got != tt.want {
			t.Errorf("MinorUnits(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMoney_BSONKeepsPrecision(t *testing.T) {
	type doc struct {
		Quote Money `bson:"quote"`
	}
	in := doc{Quote: NewMoney(decimal.RequireFromString("1234567.89"))}

	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got := bson.Raw(raw).Lookup("quote").StringValue(); got != "1234567.89" {
		t.Errorf("stored quote = %q", got)
	}

	var out doc
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Quote.Equal(in.Quote.Decimal) {
		t.Errorf("round trip = %s, want %s", out.Quote, in.Quote)
	}
}
