// Package kv defines the storage-engine-agnostic key-value contract every
// entity store is written against. Engines (memory, Couchbase, DynamoDB)
// implement Store; nothing above this package talks to an engine directly.
//
// All records share one logical table addressed by a partition key (pk) and a
// sort key (sk). Preconditions are evaluated atomically with the write by the
// engine.
package kv

import (
	"context"
	"errors"
)

const (
	// AttrPK and AttrSK are present on every stored item.
	AttrPK = "pk"
	AttrSK = "sk"
)

var (
	// ErrNotFound is returned when the addressed item does not exist
	ErrNotFound = errors.New("kv: item not found")
	// ErrPreconditionFailed is returned when a write's condition does not hold
	ErrPreconditionFailed = errors.New("kv: precondition failed")
)

// Key is the composite primary key of an item
type Key struct {
	PK string `json:"pk"`
	SK string `json:"sk"`
}

// Less orders keys by partition then sort key
func (k Key) Less(o Key) bool {
	if k.PK != o.PK {
		return k.PK < o.PK
	}
	return k.SK < o.SK
}

// Item is a flat attribute map. It always carries pk and sk.
type Item map[string]any

// Key returns the primary key stored on the item
func (it Item) Key() Key {
	pk, _ := it[AttrPK].(string)
	sk, _ := it[AttrSK].(string)
	return Key{PK: pk, SK: sk}
}

// Page is one slice of a range query. Next is nil on the last page.
type Page struct {
	Items []Item
	Next  *Key
}

// PrefixQuery selects the items of one partition whose sort key starts with SKPrefix
type PrefixQuery struct {
	PK         string
	SKPrefix   string
	Limit      int
	After      *Key
	Descending bool
}

// IndexQuery selects items whose classification attribute Index equals Value.
// Results are ordered by primary key.
type IndexQuery struct {
	Index string
	Value string
	Limit int
	After *Key
}

// ScanQuery selects items across partitions whose pk starts with PKPrefix and
// whose sk equals SK. Results are ordered by primary key.
type ScanQuery struct {
	PKPrefix string
	SK       string
	Limit    int
	After    *Key
}

// Store is the key-value adapter contract
type Store interface {
	Get(ctx context.Context, key Key) (Item, error)
	Put(ctx context.Context, item Item, cond *Condition) error
	Update(ctx context.Context, key Key, upd Update, cond *Condition) (Item, error)
	QueryPrefix(ctx context.Context, q PrefixQuery) (Page, error)
	QueryIndex(ctx context.Context, q IndexQuery) (Page, error)
	Scan(ctx context.Context, q ScanQuery) (Page, error)
}
