package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/kv"
)

// maxCASAttempts bounds the read-evaluate-write loop of a conditioned write.
// Losing this many CAS races in a row is reported as an engine error.
const maxCASAttempts = 16

// DocumentManager is the Couchbase kv.Store engine. Each item is one JSON
// document keyed "<pk>::<sk>". Conditions are evaluated against the document
// read in the same CAS cycle as the write, so a concurrent writer always
// invalidates the evaluation.
type DocumentManager struct {
	conn *ConnectionManager
	col  *gocb.Collection
}

// NewDocumentManager creates the engine on top of an open connection
func NewDocumentManager(conn *ConnectionManager) *DocumentManager {
	return &DocumentManager{
		conn: conn,
		col:  conn.GetCollection(),
	}
}

// DocID returns the document id of a primary key
func DocID(key kv.Key) string {
	return key.PK + "::" + key.SK
}

// read fetches a document with its CAS; a missing document yields a nil item
func (dm *DocumentManager) read(ctx context.Context, key kv.Key) (kv.Item, gocb.Cas, error) {
	res, err := dm.col.Get(DocID(key), &gocb.GetOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get document %s: %w", DocID(key), err)
	}

	var item kv.Item
	if err := res.Content(&item); err != nil {
		return nil, 0, fmt.Errorf("failed to parse document content: %w", err)
	}
	return item, res.Cas(), nil
}

func (dm *DocumentManager) Get(ctx context.Context, key kv.Key) (kv.Item, error) {
	item, _, err := dm.read(ctx, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, kv.ErrNotFound
	}
	return item, nil
}

func (dm *DocumentManager) Put(ctx context.Context, item kv.Item, cond *kv.Condition) error {
	key := item.Key()
	docID := DocID(key)

	if cond == nil {
		if _, err := dm.col.Upsert(docID, item, &gocb.UpsertOptions{Context: ctx}); err != nil {
			return fmt.Errorf("failed to upsert document %s: %w", docID, err)
		}
		return nil
	}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, cas, err := dm.read(ctx, key)
		if err != nil {
			return err
		}
		if !cond.Eval(current) {
			return kv.ErrPreconditionFailed
		}

		if current == nil {
			_, err = dm.col.Insert(docID, item, &gocb.InsertOptions{Context: ctx})
		} else {
			_, err = dm.col.Replace(docID, item, &gocb.ReplaceOptions{Cas: cas, Context: ctx})
		}
		if err == nil {
			return nil
		}
		if !isCASRace(err) {
			return fmt.Errorf("failed to write document %s: %w", docID, err)
		}

		log.Debug().
			Str("doc_id", docID).
			Int("attempt", attempt).
			Msg("CAS race on conditioned put, re-evaluating")
	}
	return fmt.Errorf("document %s: gave up after %d CAS attempts", docID, maxCASAttempts)
}

func (dm *DocumentManager) Update(ctx context.Context, key kv.Key, upd kv.Update, cond *kv.Condition) (kv.Item, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	docID := DocID(key)

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, cas, err := dm.read(ctx, key)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, kv.ErrNotFound
		}
		if !cond.Eval(current) {
			return nil, kv.ErrPreconditionFailed
		}

		next := upd.Apply(current)
		start := time.Now()
		_, err = dm.col.Replace(docID, next, &gocb.ReplaceOptions{Cas: cas, Context: ctx})
		if err == nil {
			log.Debug().
				Str("doc_id", docID).
				Int("attempt", attempt).
				Dur("duration", time.Since(start)).
				Msg("Document updated")
			return next, nil
		}
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, kv.ErrNotFound
		}
		if !isCASRace(err) {
			return nil, fmt.Errorf("failed to replace document %s: %w", docID, err)
		}
	}
	return nil, fmt.Errorf("document %s: gave up after %d CAS attempts", docID, maxCASAttempts)
}

// isCASRace reports errors that mean another writer got in between our read and write
func isCASRace(err error) bool {
	return errors.Is(err, gocb.ErrCasMismatch) ||
		errors.Is(err, gocb.ErrDocumentExists) ||
		errors.Is(err, gocb.ErrDocumentNotFound)
}
