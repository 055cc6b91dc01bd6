package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studiobook/internal/bookings/repository"
	"studiobook/internal/migrations/mongo/validators"
	"studiobook/pkg/lock"
	"studiobook/pkg/logger"
)

var (
	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "studio_id", Value: 1},
			{Key: "start_instant", Value: 1},
			{Key: "end_instant", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "start_instant", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "customer_id", Value: 1},
			{Key: "start_instant", Value: -1},
		}},
		{
			Keys:    bson.D{{Key: "pending_invoice.invoice_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{Keys: bson.D{{Key: "settled_invoices", Value: 1}}},
		{Keys: bson.D{{Key: "voided_invoices", Value: 1}}},
	}

	InstallmentsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "reservation_id", Value: 1},
				{Key: "installment_number", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	StudiosIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "active", Value: 1}}},
	}

	PackagesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "studio_id", Value: 1}, {Key: "category_id", Value: 1}}},
	}

	PackageCategoriesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "studio_id", Value: 1}}},
	}

	AdditionalServicesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "studio_id", Value: 1}, {Key: "active", Value: 1}}},
	}

	// Expired locks are taken over on acquire; the TTL index only clears
	// leftovers of crashed holders.
	LocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		repository.ReservationsCollection: {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		repository.InstallmentsCollection: {
			Indexes:   InstallmentsIndexes,
			Validator: validators.InstallmentValidator,
		},
		repository.StudiosCollection: {
			Indexes:   StudiosIndexes,
			Validator: validators.StudioValidator,
		},
		repository.PackagesCollection: {
			Indexes:   PackagesIndexes,
			Validator: validators.PackageValidator,
		},
		repository.PackageCategoriesCollection: {
			Indexes:   PackageCategoriesIndexes,
			Validator: validators.PackageCategoryValidator,
		},
		repository.AdditionalServicesCollection: {
			Indexes:   AdditionalServicesIndexes,
			Validator: validators.AdditionalServiceValidator,
		},
		lock.LocksCollection: {
			Indexes: LocksIndexes,
		},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
		log.Info("Ensured indexes", "collection", name, "count", len(def.Indexes))
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}
	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	return err
}
