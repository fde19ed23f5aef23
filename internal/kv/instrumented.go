package kv

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/metrics"
)

// Instrumented decorates a Store with debug logging and store metrics
type Instrumented struct {
	next   Store
	engine string
}

// Instrument wraps next; engine labels every metric and log line
func Instrument(next Store, engine string) *Instrumented {
	return &Instrumented{next: next, engine: engine}
}

func (s *Instrumented) observe(op string, key Key, start time.Time, err error) {
	outcome := outcomeOf(err)
	metrics.RecordStoreOperation(s.engine, op, outcome, start)

	ev := log.Debug()
	if outcome == "error" {
		ev = log.Error().Err(err)
	}
	ev.Str("engine", s.engine).
		Str("operation", op).
		Str("pk", key.PK).
		Str("sk", key.SK).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("Store operation")
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}

func (s *Instrumented) Get(ctx context.Context, key Key) (Item, error) {
	start := time.Now()
	item, err := s.next.Get(ctx, key)
	s.observe("get", key, start, err)
	return item, err
}

func (s *Instrumented) Put(ctx context.Context, item Item, cond *Condition) error {
	start := time.Now()
	err := s.next.Put(ctx, item, cond)
	s.observe("put", item.Key(), start, err)
	return err
}

func (s *Instrumented) Update(ctx context.Context, key Key, upd Update, cond *Condition) (Item, error) {
	start := time.Now()
	item, err := s.next.Update(ctx, key, upd, cond)
	s.observe("update", key, start, err)
	return item, err
}

func (s *Instrumented) QueryPrefix(ctx context.Context, q PrefixQuery) (Page, error) {
	start := time.Now()
	page, err := s.next.QueryPrefix(ctx, q)
	s.observe("query_prefix", Key{PK: q.PK, SK: q.SKPrefix}, start, err)
	return page, err
}

func (s *Instrumented) QueryIndex(ctx context.Context, q IndexQuery) (Page, error) {
	start := time.Now()
	page, err := s.next.QueryIndex(ctx, q)
	s.observe("query_index", Key{PK: q.Index, SK: q.Value}, start, err)
	return page, err
}

func (s *Instrumented) Scan(ctx context.Context, q ScanQuery) (Page, error) {
	start := time.Now()
	page, err := s.next.Scan(ctx, q)
	s.observe("scan", Key{PK: q.PKPrefix, SK: q.SK}, start, err)
	return page, err
}
