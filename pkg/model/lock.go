package model

import "time"

// Lock is an advisory lock document. Its _id is the lock key, so a second
// insert for a held key fails with a duplicate key error.
type Lock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
