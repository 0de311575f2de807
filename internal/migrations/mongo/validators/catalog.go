package validators

import "go.mongodb.org/mongo-driver/bson"

var ResourceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "partner_id", "daily_rate", "currency", "active"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string", "minLength": 1},
			"partner_id": bson.M{"bsonType": "string", "minLength": 1},
			"name":       bson.M{"bsonType": "string", "maxLength": 200},
			"daily_rate": bson.M{
				"bsonType": "string",
				"pattern":  `^[0-9]+(\.[0-9]+)?$`,
			},
			"weekend_rate": bson.M{
				"bsonType": "string",
				"pattern":  `^[0-9]+(\.[0-9]+)?$`,
			},
			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},
			"active":     bson.M{"bsonType": "bool"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}

var PartnerUserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "partner_id", "user_id", "active"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string", "minLength": 1},
			"partner_id": bson.M{"bsonType": "string", "minLength": 1},
			"user_id":    bson.M{"bsonType": "string", "minLength": 1},
			"active":     bson.M{"bsonType": "bool"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}

var LockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string", "minLength": 1},
			"owner":      bson.M{"bsonType": "string", "minLength": 1},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
