package validators

import "go.mongodb.org/mongo-driver/bson"

// Bounds are nullable: a null lower or upper is unbounded.
var nullableDate = bson.M{"bsonType": []string{"date", "null"}}

var periodSchema = bson.M{
	"bsonType": "object",
	"required": []string{"lower", "upper"},
	"properties": bson.M{
		"lower": nullableDate,
		"upper": nullableDate,
	},
}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"kind",
			"resource_id",
			"pool_id",
			"users",
			"period",
			"actual",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"kind": bson.M{
				"bsonType": "string",
				"enum":     []string{"lane", "locker"},
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"pool_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"users": bson.M{
				"bsonType": []string{"array", "null"},
				"items": bson.M{
					"bsonType":  "string",
					"minLength": 1,
					"maxLength": 64,
				},
			},

			"period": periodSchema,
			"actual": periodSchema,

			"cancelled": nullableDate,

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
