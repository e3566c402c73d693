package validators

import "go.mongodb.org/mongo-driver/bson"

var ScheduleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"protocol",
			"category",
			"date",
			"address_id",
			"address_text",
			"requester_name",
			"tax_id",
			"phone",
			"status",
			"qr_payload",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"protocol": bson.M{
				"bsonType": "string",
				"pattern":  "^[0-9]{17,}$",
			},

			"category": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"date": bson.M{
				"bsonType": "date",
			},

			"address_id": bson.M{
				"bsonType": "objectId",
			},

			"neighborhood_name": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},

			"address_text": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 400,
			},

			"requester_name": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 120,
			},

			"tax_id": bson.M{
				"bsonType": "string",
				"pattern":  "^[0-9]{11}$|^[0-9]{14}$",
			},

			"phone": bson.M{
				"bsonType":  "string",
				"minLength": 10,
				"maxLength": 16,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"status": bson.M{
				"enum": []string{"Scheduled", "Completed"},
			},

			"monthly_key": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"completed_at": bson.M{
				"bsonType": []string{"date", "null"},
			},

			"deleted_at": bson.M{
				"bsonType": []string{"date", "null"},
			},
		},
	},
}
