package validators

import "go.mongodb.org/mongo-driver/bson"

var StudioValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "kind", "active"},
		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"kind": bson.M{
				"bsonType": "string",
				"enum":     studioKinds,
			},
			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}

var PackageValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"studio_id", "name", "base_price", "base_duration_minutes", "active"},
		"properties": bson.M{
			"studio_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"category_id": bson.M{
				"bsonType": "string",
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"base_price": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"base_duration_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  1440,
			},
			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}

var PackageCategoryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"studio_id", "name", "active"},
		"properties": bson.M{
			"studio_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}

var AdditionalServiceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"studio_id", "name", "unit_price", "per_unit", "active"},
		"properties": bson.M{
			"studio_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"unit_price": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"per_unit": bson.M{
				"bsonType": "bool",
			},
			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
