package repository

import (
	"context"
	"fmt"
	"time"

	"studiobook/pkg/config"
	"studiobook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const InstallmentsCollection = "Installments"

type InstallmentRepository interface {
	Create(ctx context.Context, installment *model.Installment) (*model.Installment, error)
	ListByReservation(ctx context.Context, reservationID string) ([]*model.Installment, error)
}

type mongoInstallmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoInstallmentRepository(cfg *config.Config) InstallmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoInstallmentRepository{
		cfg:        cfg,
		collection: db.Collection(InstallmentsCollection),
	}
}

// Create fails with a duplicate key error when the installment number is
// already taken for the reservation.
func (r *mongoInstallmentRepository) Create(ctx context.Context, installment *model.Installment) (*model.Installment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if installment.CreatedAt.IsZero() {
		installment.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	result, err := r.collection.InsertOne(ctx, installment)
	if err != nil {
		return nil, fmt.Errorf("failed to create installment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		installment.ID = oid.Hex()
	}
	return installment, nil
}

func (r *mongoInstallmentRepository) ListByReservation(ctx context.Context, reservationID string) ([]*model.Installment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "installment_number", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"reservation_id": reservationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find installments: %w", err)
	}
	defer cursor.Close(ctx)

	var installments []*model.Installment
	if err = cursor.All(ctx, &installments); err != nil {
		return nil, fmt.Errorf("failed to decode installments: %w", err)
	}
	return installments, nil
}
