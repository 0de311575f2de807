package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentRecordValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"reservation_id",
			"provider",
			"amount",
			"currency",
			"external_ref",
			"status",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":            bson.M{"bsonType": "string", "minLength": 1},
			"reservation_id": bson.M{"bsonType": "string", "minLength": 1},
			"provider": bson.M{
				"bsonType": "string",
				"enum":     []string{"click", "payme"},
			},
			// minor units
			"amount": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  1,
			},
			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},
			"external_ref": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 256,
			},
			"external_transaction_id": bson.M{"bsonType": "string"},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"new", "pending", "paid", "failed"},
			},
			"raw_meta":   bson.M{"bsonType": "object"},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
