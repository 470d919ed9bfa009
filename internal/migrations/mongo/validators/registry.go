package validators

import "go.mongodb.org/mongo-driver/bson"

var intRangeSchema = bson.M{
	"bsonType": "object",
	"properties": bson.M{
		"lower": bson.M{"bsonType": []string{"int", "long", "null"}},
		"upper": bson.M{"bsonType": []string{"int", "long", "null"}},
	},
}

var PoolValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "address", "depth", "business_hours"},
		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"address": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},
			"depth":          intRangeSchema,
			"business_hours": intRangeSchema,
		},
	},
}

var LaneValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"pool_id", "name", "max_swimmers", "per_hour_cost"},
		"properties": bson.M{
			"pool_id": bson.M{"bsonType": "string"},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 50,
			},
			"max_swimmers": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  32767,
			},
			// decimal string, e.g. "12.50"
			"per_hour_cost": bson.M{"bsonType": "string"},
		},
	},
}

var LockerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"pool_id", "number", "per_hour_cost"},
		"properties": bson.M{
			"pool_id": bson.M{"bsonType": "string"},
			"number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 20,
			},
			"per_hour_cost": bson.M{"bsonType": "string"},
		},
	},
}

var ClosureValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"pool_id", "dates", "reason"},
		"properties": bson.M{
			"pool_id": bson.M{"bsonType": "string"},
			"dates":   periodSchema,
			"reason": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
		},
	},
}
