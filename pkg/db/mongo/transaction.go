package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "rentcore/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TransactionFunc runs inside a transaction. Repositories called with the ctx
// it receives take part in that transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

// NewTransactionManager runs transactions with snapshot reads and majority
// writes on the primary, so a committed reservation transition is never
// rolled back by a failover.
func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
		opts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()).
			SetReadPreference(readpref.Primary()),
	}
}

// ExecuteTransaction joins the transaction already carried by ctx, or starts
// one. The driver retries transient commit failures; when it gives up on a
// write conflict the caller gets a Conflict it can retry.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	if InSession(ctx) {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, m.opts)

	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case isWriteConflict(err):
		return apperrors.Conflict("Concurrent update, please retry")
	default:
		return fmt.Errorf("transaction failed: %w", err)
	}
}

// InSession reports whether ctx already carries a Mongo session.
func InSession(ctx context.Context) bool {
	return mongo.SessionFromContext(ctx) != nil
}

// WithTimeout bounds a single operation. Inside a transaction the session's own
// deadline applies, so ctx is returned unchanged. A shorter caller deadline
// always wins over timeout.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if InSession(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// transientTransactionLabel is the server label for a transaction that can be retried whole.
const transientTransactionLabel = "TransientTransactionError"

func isWriteConflict(err error) bool {
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionLabel) {
		return true
	}
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == 112
}
