package repository

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/pkg/config"
	"studiobook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	StudiosCollection            = "Studios"
	PackagesCollection           = "Packages"
	PackageCategoriesCollection  = "Package_categories"
	AdditionalServicesCollection = "Additional_services"
)

// CatalogRepository supplies the studio, package, category and add-on records
// bookings are priced and placed from. The catalog is maintained elsewhere.
type CatalogRepository interface {
	Studio(ctx context.Context, id string) (*model.Studio, error)
	Package(ctx context.Context, id string) (*model.Package, error)
	Category(ctx context.Context, id string) (*model.PackageCategory, error)
	Services(ctx context.Context, studioID string, ids []string) ([]*model.AdditionalService, error)
}

type mongoCatalogRepository struct {
	cfg        *config.Config
	studios    *mongo.Collection
	packages   *mongo.Collection
	categories *mongo.Collection
	services   *mongo.Collection
}

func NewMongoCatalogRepository(cfg *config.Config) CatalogRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCatalogRepository{
		cfg:        cfg,
		studios:    db.Collection(StudiosCollection),
		packages:   db.Collection(PackagesCollection),
		categories: db.Collection(PackageCategoriesCollection),
		services:   db.Collection(AdditionalServicesCollection),
	}
}

// idValues accepts both ObjectID and plain string identifiers, since catalog
// records are imported from outside the service.
func idValues(id string) []any {
	values := []any{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		values = append(values, oid)
	}
	return values
}

func findCatalogEntry[T any](ctx context.Context, r *mongoCatalogRepository, c *mongo.Collection, id string) (*T, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var entry T
	err := c.FindOne(ctx, bson.M{"_id": bson.M{"$in": idValues(id)}, "active": true}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s %s", bookingserrors.ErrCatalogNotFound, c.Name(), id)
		}
		return nil, fmt.Errorf("failed to find %s: %w", c.Name(), err)
	}
	return &entry, nil
}

func (r *mongoCatalogRepository) Studio(ctx context.Context, id string) (*model.Studio, error) {
	return findCatalogEntry[model.Studio](ctx, r, r.studios, id)
}

func (r *mongoCatalogRepository) Package(ctx context.Context, id string) (*model.Package, error) {
	return findCatalogEntry[model.Package](ctx, r, r.packages, id)
}

func (r *mongoCatalogRepository) Category(ctx context.Context, id string) (*model.PackageCategory, error) {
	return findCatalogEntry[model.PackageCategory](ctx, r, r.categories, id)
}

func (r *mongoCatalogRepository) Services(ctx context.Context, studioID string, ids []string) ([]*model.AdditionalService, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var values []any
	for _, id := range ids {
		values = append(values, idValues(id)...)
	}

	filter := bson.M{
		"_id":       bson.M{"$in": values},
		"studio_id": studioID,
		"active":    true,
	}
	cursor, err := r.services.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find additional services: %w", err)
	}
	defer cursor.Close(ctx)

	var services []*model.AdditionalService
	if err = cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode additional services: %w", err)
	}
	return services, nil
}
