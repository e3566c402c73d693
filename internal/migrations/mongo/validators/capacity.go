package validators

import "go.mongodb.org/mongo-driver/bson"

var CapacityBucketValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "category", "date", "count"},

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"category": bson.M{
				"bsonType": "string",
			},
			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},
			"count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
		},
	},
}
