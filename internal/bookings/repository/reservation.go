package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/pkg/config"
	mongotx "studiobook/pkg/db/mongo"
	"studiobook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReservationsCollection = "Reservations"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*model.Reservation, error)
	List(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error)
	Count(ctx context.Context, filter model.ReservationFilter) (int64, error)
	Update(ctx context.Context, id string, patch model.ReservationPatch) (*model.Reservation, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)

	var txManager mongotx.TransactionManager = mongotx.NoTransaction{}
	if cfg.MongoTransactions {
		txManager = mongotx.NewTransactionManager(cfg.Client.Mongo.Client)
	}

	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(ReservationsCollection),
		txManager:  txManager,
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext cannot be wrapped without losing the session.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoReservationRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"$or": []bson.M{
		{"pending_invoice.invoice_id": invoiceID},
		{"settled_invoices": invoiceID},
		{"voided_invoices": invoiceID},
	}})
}

func (r *mongoReservationRepository) findOne(ctx context.Context, filter bson.M) (*model.Reservation, error) {
	var reservation model.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) List(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_instant", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}

	cursor, err := r.collection.Find(ctx, buildReservationFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) Count(ctx context.Context, filter model.ReservationFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildReservationFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

// buildReservationFilter matches reservations whose [start, end) range
// intersects [From, To).
func buildReservationFilter(f model.ReservationFilter) bson.M {
	filter := bson.M{}

	if f.StudioID != "" {
		filter["studio_id"] = f.StudioID
	}
	if f.CategoryID != "" {
		filter["package_category_id"] = f.CategoryID
	}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.To != nil {
		filter["start_instant"] = bson.M{"$lt": *f.To}
	}
	if f.From != nil {
		filter["end_instant"] = bson.M{"$gt": *f.From}
	}

	return filter
}

func (r *mongoReservationRepository) Update(ctx context.Context, id string, patch model.ReservationPatch) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	if patch.ExpectedStatus != nil {
		filter["status"] = *patch.ExpectedStatus
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Reservation
	err = r.collection.FindOneAndUpdate(ctx, filter, buildUpdate(patch), opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}

	if patch.ExpectedStatus != nil {
		n, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if countErr != nil {
			return nil, fmt.Errorf("failed to check reservation: %w", countErr)
		}
		if n > 0 {
			return nil, bookingserrors.ErrStaleStatus
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func buildUpdate(p model.ReservationPatch) bson.M {
	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}

	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.StartInstant != nil {
		set["start_instant"] = *p.StartInstant
	}
	if p.EndInstant != nil {
		set["end_instant"] = *p.EndInstant
	}
	if p.ExtraMinutes != nil {
		set["extra_minutes"] = *p.ExtraMinutes
	}
	if p.SelectedServices != nil {
		set["selected_services"] = *p.SelectedServices
	}
	if p.TotalAmount != nil {
		set["total_amount"] = *p.TotalAmount
	}
	if p.PendingInvoice != nil {
		set["pending_invoice"] = p.PendingInvoice
	}
	if p.PaymentMethod != "" {
		set["payment_method"] = p.PaymentMethod
	}
	if p.PaidAt != nil {
		set["paid_at"] = *p.PaidAt
	}
	if p.CancelledAt != nil {
		set["cancelled_at"] = *p.CancelledAt
	}
	if p.CancellationReason != "" {
		set["cancellation_reason"] = p.CancellationReason
	}

	update := bson.M{"$set": set}
	if p.ClearPendingInvoice && p.PendingInvoice == nil {
		update["$unset"] = bson.M{"pending_invoice": ""}
	}
	addToSet := bson.M{}
	if p.SettledInvoice != "" {
		addToSet["settled_invoices"] = p.SettledInvoice
	}
	if p.VoidedInvoice != "" {
		addToSet["voided_invoices"] = p.VoidedInvoice
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	return update
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
