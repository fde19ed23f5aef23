package couchbase

import (
	"context"
	"fmt"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// queryIndexes are the GSI indexes the query paths rely on: the primary-key
// range for prefix queries and scans, one per classification key
var queryIndexes = []struct {
	name   string
	fields string
}{
	{"idx_pk_sk", "pk, sk"},
	{"idx_department_status", "department_status, pk, sk"},
	{"idx_department_role", "department_role, pk, sk"},
}

// EnsureKeyspace creates the scope, collection and query indexes when missing
func (cm *ConnectionManager) EnsureKeyspace(ctx context.Context) error {
	if cm.scopeName != "_default" {
		stmt := fmt.Sprintf("CREATE SCOPE `%s`.`%s` IF NOT EXISTS", cm.bucketName, cm.scopeName)
		if _, err := cm.cluster.Query(stmt, &gocb.QueryOptions{Context: ctx}); err != nil {
			return fmt.Errorf("failed to create scope %s: %w", cm.scopeName, err)
		}
	}
	if cm.collName != "_default" {
		stmt := fmt.Sprintf("CREATE COLLECTION %s IF NOT EXISTS", cm.Keyspace())
		if _, err := cm.cluster.Query(stmt, &gocb.QueryOptions{Context: ctx}); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", cm.collName, err)
		}
	}

	for _, idx := range queryIndexes {
		stmt := fmt.Sprintf("CREATE INDEX `%s` IF NOT EXISTS ON %s(%s)", idx.name, cm.Keyspace(), idx.fields)
		if _, err := cm.cluster.Query(stmt, &gocb.QueryOptions{Context: ctx}); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
		log.Info().
			Str("keyspace", cm.Keyspace()).
			Str("index", idx.name).
			Msg("Index ensured")
	}
	return nil
}
