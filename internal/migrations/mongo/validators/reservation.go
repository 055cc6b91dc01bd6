package validators

import "go.mongodb.org/mongo-driver/bson"

var reservationStatuses = []string{
	"pending",
	"confirmed",
	"installment",
	"paid",
	"completed",
	"cancelled",
	"expired",
	"failed",
}

var studioKinds = []string{"self_photo", "regular"}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"studio_id",
			"studio_kind",
			"package_id",
			"quantity",
			"start_instant",
			"end_instant",
			"base_duration_minutes",
			"extra_minutes",
			"total_amount",
			"status",
			"is_walk_in",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"studio_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"studio_kind": bson.M{
				"bsonType": "string",
				"enum":     studioKinds,
			},

			"package_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"quantity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"start_instant": bson.M{
				"bsonType": "date",
			},

			"end_instant": bson.M{
				"bsonType": "date",
			},

			"base_duration_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"extra_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"selected_services": bson.M{
				"bsonType": []string{"array", "null"},
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"service_id", "quantity"},
					"properties": bson.M{
						"service_id": bson.M{"bsonType": "string"},
						"quantity": bson.M{
							"bsonType": []string{"int", "long"},
							"minimum":  1,
						},
					},
				},
			},

			"total_amount": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     reservationStatuses,
			},

			"is_walk_in": bson.M{
				"bsonType": "bool",
			},

			"pending_invoice": bson.M{
				"bsonType": "object",
				"required": []string{"invoice_id", "amount", "installment_number"},
			},

			"settled_invoices": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"voided_invoices": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var InstallmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reservation_id",
			"amount",
			"installment_number",
			"paid_at",
			"payment_method",
			"voided",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},
			"amount": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},
			"installment_number": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},
			"paid_at": bson.M{
				"bsonType": "date",
			},
			"payment_method": bson.M{
				"bsonType": "string",
			},
			"voided": bson.M{
				"bsonType": "bool",
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
