package validators

import "go.mongodb.org/mongo-driver/bson"

const clockPattern = "^([01]?[0-9]|2[0-3]):[0-5][0-9]$"

var AvailabilityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"seller_id",
			"day_of_week",
			"start_time",
			"end_time",
			"is_active",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":       bson.M{"bsonType": "objectId"},
			"seller_id": bson.M{"bsonType": "string"},
			"day_of_week": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  6,
			},
			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},
			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},
			"is_active":  bson.M{"bsonType": "bool"},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
