package validators

import "go.mongodb.org/mongo-driver/bson"

var OccupancyBlockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "resource_id", "from", "to", "reason", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string", "minLength": 1},
			"resource_id": bson.M{"bsonType": "string", "minLength": 1},
			"from":        bson.M{"bsonType": "date"},
			"to":          bson.M{"bsonType": "date"},
			"reason": bson.M{
				"bsonType": "string",
				"enum":     []string{"reservation", "manual-block"},
			},
			"reservation_id": bson.M{"bsonType": "string"},
			"created_by":     bson.M{"bsonType": "string"},
			"created_at":     bson.M{"bsonType": "date"},
		},
	},
}
