package model

import "time"

// Resource is a rentable vehicle as seen by the reservation core.
type Resource struct {
	ID          string    `json:"id" bson:"_id"`
	PartnerID   string    `json:"partner_id" bson:"partner_id"`
	Name        string    `json:"name" bson:"name"`
	DailyRate   Money     `json:"daily_rate" bson:"daily_rate"`
	WeekendRate Money     `json:"weekend_rate" bson:"weekend_rate"`
	Currency    string    `json:"currency" bson:"currency"`
	Active      bool      `json:"active" bson:"active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// PartnerUser links a user to the partner whose resources they may manage.
type PartnerUser struct {
	ID        string    `json:"id" bson:"_id"`
	PartnerID string    `json:"partner_id" bson:"partner_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
