package couchbase

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// ConnectionManager handles Couchbase cluster, bucket and collection handles
type ConnectionManager struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
	bucketName string
	scopeName  string
	collName   string
}

// ConnectionOptions selects the cluster and keyspace holding the record table
type ConnectionOptions struct {
	URL        string
	Username   string
	Password   string
	Bucket     string
	Scope      string
	Collection string
	Timeout    time.Duration
}

// connectionString normalizes bare hosts and http:// URLs into a couchbase:// connection string
func connectionString(url string) string {
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	}
	return "couchbase://" + url
}

// NewConnectionManager connects to the cluster and waits for the KV and query services
func NewConnectionManager(opts ConnectionOptions) (*ConnectionManager, error) {
	if opts.Scope == "" {
		opts.Scope = "_default"
	}
	if opts.Collection == "" {
		opts.Collection = "_default"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	log.Info().
		Str("url", opts.URL).
		Str("bucket", opts.Bucket).
		Str("scope", opts.Scope).
		Str("collection", opts.Collection).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(connectionString(opts.URL), gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(opts.Bucket)
	err = bucket.WaitUntilReady(opts.Timeout, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("bucket %q is not accessible: %w", opts.Bucket, err)
	}

	log.Info().Msg("Couchbase connection created successfully")
	return &ConnectionManager{
		cluster:    cluster,
		bucket:     bucket,
		collection: bucket.Scope(opts.Scope).Collection(opts.Collection),
		bucketName: opts.Bucket,
		scopeName:  opts.Scope,
		collName:   opts.Collection,
	}, nil
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	return cm.cluster.Close(nil)
}

// GetCluster returns the cluster instance
func (cm *ConnectionManager) GetCluster() *gocb.Cluster {
	return cm.cluster
}

// GetCollection returns the collection holding every record
func (cm *ConnectionManager) GetCollection() *gocb.Collection {
	return cm.collection
}

// Keyspace returns the fully qualified N1QL keyspace of the record collection
func (cm *ConnectionManager) Keyspace() string {
	return fmt.Sprintf("`%s`.`%s`.`%s`", cm.bucketName, cm.scopeName, cm.collName)
}
