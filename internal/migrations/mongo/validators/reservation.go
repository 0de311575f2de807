package validators

import "go.mongodb.org/mongo-driver/bson"

var reservationStatuses = []string{
	"pending",
	"confirmed",
	"rejected",
	"expired",
	"canceled",
	"issued",
	"completed",
}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"resource_id",
			"partner_id",
			"requester_id",
			"from",
			"to",
			"quote",
			"currency",
			"status",
			"payment_marker",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":          bson.M{"bsonType": "string", "minLength": 1},
			"resource_id":  bson.M{"bsonType": "string", "minLength": 1},
			"partner_id":   bson.M{"bsonType": "string", "minLength": 1},
			"requester_id": bson.M{"bsonType": "string", "minLength": 1},
			"from":         bson.M{"bsonType": "date"},
			"to":           bson.M{"bsonType": "date"},
			// decimal string in major units
			"quote": bson.M{
				"bsonType": "string",
				"pattern":  `^-?[0-9]+(\.[0-9]+)?$`,
			},
			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     reservationStatuses,
			},
			"notified_status": bson.M{
				"bsonType": "string",
				"enum":     append([]string{""}, reservationStatuses...),
			},
			"payment_marker": bson.M{
				"bsonType": "string",
				"enum":     []string{"unpaid", "paid"},
			},
			"notified_marker": bson.M{
				"bsonType": "string",
				"enum":     []string{"", "unpaid", "paid"},
			},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
