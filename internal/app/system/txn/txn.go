// internal/app/system/txn/txn.go

// Package txn wraps multi-document work in a MongoDB transaction. Callers
// pass a function that performs all reads and writes with the session
// context; the driver retries transient transaction errors internally.
//
// Single-document compare-and-set updates do not need this package — Mongo
// document writes are already atomic. It exists for the read-then-write
// sequences that span collections, like the binding authority's
// active-guardian count followed by a link insert.
package txn

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// WithTransaction runs fn inside a transaction on client. fn must use the
// provided context for every store call it makes.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	return err
}
