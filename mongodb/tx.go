package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// TxRunner executes functions inside a MongoDB transaction when the
// deployment supports them (replica set or sharded cluster). Standalone
// servers cannot run transactions, so the runner can be created disabled
// and will execute the function directly.
type TxRunner struct {
	client  *mongo.Client
	enabled bool
}

// NewTxRunner creates a transaction runner. With enabled false the runner
// degrades to plain execution.
func NewTxRunner(client *mongo.Client, enabled bool) *TxRunner {
	return &TxRunner{client: client, enabled: enabled}
}

// WithTransaction runs fn transactionally when enabled. The session rides
// on the context, so repositories participate without changes.
func (t *TxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}
