// Package mongo implements store.Store using the MongoDB driver.
// Suitable for deployments that already run MongoDB and want the job
// table in the same place.
//
// Claims ride on FindOneAndUpdate, which MongoDB applies atomically per
// document, so the exactly-one-winner guarantee holds without
// transactions. Dedupe keys live in a sparse unique index on the jobs
// collection.
//
// The caller owns the client lifecycle -- mongo never disconnects it.
// Pass a database handle through the constructor:
//
//	import (
//	    "go.mongodb.org/mongo-driver/v2/mongo"
//	    "go.mongodb.org/mongo-driver/v2/mongo/options"
//
//	    mongostore "github.com/xraph/foreman/store/mongo"
//	)
//
//	client, _ := mongo.Connect(options.Client().ApplyURI(dsn))
//	store := mongostore.New(client.Database("foreman"))
//	store.Migrate(ctx)
package mongo
