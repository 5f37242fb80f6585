package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// transactionClient is the slice of the shared mongodb client the runner uses
type transactionClient interface {
	WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error
}

// TxRunner adapts the shared client's session transaction to the application
// TransactionRunner contract. The session context is handed to fn as a plain
// context, so every repository call made with it joins the transaction.
type TxRunner struct {
	client transactionClient
}

func NewTxRunner(client transactionClient) *TxRunner {
	return &TxRunner{client: client}
}

func (r *TxRunner) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}
