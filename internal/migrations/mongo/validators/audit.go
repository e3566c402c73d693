package validators

import "go.mongodb.org/mongo-driver/bson"

var AuditLogValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"event_id", "action", "entity", "protocol", "created_at"},

		"additionalProperties": true,

		"properties": bson.M{
			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"action": bson.M{
				"enum": []string{"SCHEDULE_CREATE", "SCHEDULE_COMPLETE", "SCHEDULE_DELETE"},
			},
			"entity": bson.M{
				"bsonType": "string",
			},
			"protocol": bson.M{
				"bsonType": "string",
			},
			"before": bson.M{
				"bsonType": []string{"object", "null"},
			},
			"after": bson.M{
				"bsonType": []string{"object", "null"},
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
