// Package storage opens the kv.Store engine selected by configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/config"
	"stealthcompany.com/wardbook/internal/couchbase"
	"stealthcompany.com/wardbook/internal/dynamo"
	"stealthcompany.com/wardbook/internal/kv"
)

// tableWait bounds how long setup waits for a new DynamoDB table to turn active
const tableWait = 5 * time.Minute

// Engine is an open store plus the handle that releases it
type Engine struct {
	Store kv.Store
	Name  string

	closer func() error
}

// Close releases the engine's connections
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	log.Info().Str("engine", e.Name).Msg("Closing store connection")
	return e.closer()
}

// Open connects to the configured engine. The returned store records metrics
// and debug logs for every operation.
func Open(ctx context.Context, cfg *config.Config) (*Engine, error) {
	switch cfg.StoreEngine {
	case config.EngineMemory:
		log.Warn().Msg("Using the in-memory store; records are lost on exit")
		return &Engine{Store: kv.Instrument(kv.NewMemoryStore(), cfg.StoreEngine), Name: cfg.StoreEngine}, nil

	case config.EngineCouchbase:
		conn, err := couchbase.NewConnectionManager(couchbaseOptions(cfg))
		if err != nil {
			return nil, err
		}
		return &Engine{
			Store:  kv.Instrument(couchbase.NewDocumentManager(conn), cfg.StoreEngine),
			Name:   cfg.StoreEngine,
			closer: conn.Close,
		}, nil

	case config.EngineDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		return &Engine{
			Store: kv.Instrument(dynamo.NewStore(client, cfg.TableName), cfg.StoreEngine),
			Name:  cfg.StoreEngine,
		}, nil
	}
	return nil, fmt.Errorf("unknown store engine %q", cfg.StoreEngine)
}

// Setup creates the keyspace and indexes (Couchbase) or the table and its
// secondary indexes (DynamoDB). It is safe to run repeatedly.
func Setup(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreEngine {
	case config.EngineMemory:
		log.Info().Msg("In-memory store needs no setup")
		return nil

	case config.EngineCouchbase:
		conn, err := couchbase.NewConnectionManager(couchbaseOptions(cfg))
		if err != nil {
			return err
		}
		defer conn.Close()
		return conn.EnsureKeyspace(ctx)

	case config.EngineDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return err
		}
		return dynamo.EnsureTable(ctx, client, cfg.TableName, tableWait)
	}
	return fmt.Errorf("unknown store engine %q", cfg.StoreEngine)
}

func couchbaseOptions(cfg *config.Config) couchbase.ConnectionOptions {
	return couchbase.ConnectionOptions{
		URL:        cfg.CouchbaseURL,
		Username:   cfg.CouchbaseUsername,
		Password:   cfg.CouchbasePassword,
		Bucket:     cfg.CouchbaseBucket,
		Scope:      cfg.CouchbaseScope,
		Collection: cfg.CouchbaseCollection,
	}
}
