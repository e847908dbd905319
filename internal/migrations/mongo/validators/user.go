package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"email"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":   bson.M{"bsonType": "objectId"},
			"email": bson.M{"bsonType": "string"},
			"name":  bson.M{"bsonType": "string"},
			"image": bson.M{"bsonType": "string"},
			"role": bson.M{
				"bsonType": "string",
				"enum":     []string{"buyer", "seller"},
			},
			"google_id":          bson.M{"bsonType": "string"},
			"access_token":       bson.M{"bsonType": "string"},
			"refresh_token":      bson.M{"bsonType": "string"},
			"token_expiry":       bson.M{"bsonType": "date"},
			"calendar_connected": bson.M{"bsonType": "bool"},
			"created_at":         bson.M{"bsonType": "date"},
			"updated_at":         bson.M{"bsonType": "date"},
		},
	},
}
