package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	apperrors "studiobook/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TransactionFunc runs inside a session; the context it receives is the
// session context and must be passed to every store call.
type TransactionFunc = func(ctx context.Context) error

const transientTransactionLabel = "TransientTransactionError"

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

// NewTransactionManager runs transactions with snapshot reads and majority
// writes, so a conflict check and the insert that follows it see one
// consistent view of a studio's reservations.
func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
		opts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()),
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "Reservation store is temporarily unavailable", http.StatusServiceUnavailable)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, m.opts)
	if err == nil {
		return nil
	}

	if apperrors.IsAppError(err) {
		return err
	}
	// WithTransaction already retried transient failures until its deadline.
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorLabel(transientTransactionLabel) {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "Reservation store is busy, retry the request", http.StatusServiceUnavailable)
	}
	return fmt.Errorf("transaction failed: %w", err)
}

// NoTransaction runs fn directly. Used when the deployment has no replica set.
type NoTransaction struct{}

func (NoTransaction) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(ctx)
}
