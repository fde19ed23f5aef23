package dal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/metrics"
)

// ReconcileLease is the lease name that serializes sweeps
const ReconcileLease = "reconcile"

// Reconciler re-derives every classification key and repairs stale ones
type Reconciler struct {
	*base
	Workers  int
	PageSize int
	LeaseTTL time.Duration
}

// SweepStats counts what one entity kind went through
type SweepStats struct {
	Scanned  int64 `json:"scanned"`
	Repaired int64 `json:"repaired"`
	Skipped  int64 `json:"skipped"`
}

// Report is the outcome of a sweep, keyed by entity
type Report map[string]*SweepStats

type sweepTarget struct {
	entity   string
	pkPrefix string
	cls      classifier
}

var sweepTargets = []sweepTarget{
	{entity: codec.EntityPatient, pkPrefix: codec.PatientPrefix, cls: patientIndex},
	{entity: codec.EntityDoctor, pkPrefix: codec.DoctorPrefix, cls: doctorIndex},
}

// Sweep scans patient and doctor profiles under the reconcile lease. Repairs
// are conditioned on the classifying attributes they were derived from; a
// record that changed in between is skipped, since its own write already
// carried a fresh key.
func (r *Reconciler) Sweep(ctx context.Context, owner string) (Report, error) {
	ttl := r.LeaseTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	lease, err := AcquireLease(ctx, r.store, ReconcileLease, owner, ttl, r.now())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("Failed to release reconcile lease")
		}
	}()

	report := Report{}
	for _, t := range sweepTargets {
		stats, err := r.sweep(ctx, t)
		report[t.entity] = stats
		metrics.RecordIndexRepairs(t.entity, int(stats.Repaired))
		if err != nil {
			return report, fmt.Errorf("sweep %s: %w", t.entity, err)
		}
		log.Info().
			Str("entity", t.entity).
			Int64("scanned", stats.Scanned).
			Int64("repaired", stats.Repaired).
			Int64("skipped", stats.Skipped).
			Msg("Index sweep finished")
	}
	return report, nil
}

func (r *Reconciler) sweep(ctx context.Context, t sweepTarget) (*SweepStats, error) {
	var scanned, repaired, skipped atomic.Int64
	workers := max(r.Workers, 1)
	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var after *kv.Key
	for {
		page, err := r.store.Scan(ctx, kv.ScanQuery{PKPrefix: t.pkPrefix, SK: codec.ProfileSK, Limit: pageSize, After: after})
		if err != nil {
			return snapshot(&scanned, &repaired, &skipped), err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, it := range page.Items {
			scanned.Add(1)
			want := t.cls.expected(it)
			if kv.String(it[t.cls.attr]) == want {
				continue
			}
			g.Go(func() error {
				fixed, err := r.repair(gctx, it, t.cls, want)
				switch {
				case err != nil:
					return err
				case fixed:
					repaired.Add(1)
				default:
					skipped.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return snapshot(&scanned, &repaired, &skipped), err
		}

		if page.Next == nil {
			return snapshot(&scanned, &repaired, &skipped), nil
		}
		after = page.Next
	}
}

// repair rewrites the classification key of one stale record
func (r *Reconciler) repair(ctx context.Context, it kv.Item, cls classifier, want string) (bool, error) {
	_, observed := cls.observe(nil, it)
	var upd kv.Update
	cls.setKey(&upd, want)

	key := it.Key()
	_, err := r.store.Update(ctx, key, upd, kv.And(kv.ItemExists(), observed))
	if errors.Is(err, kv.ErrPreconditionFailed) || errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log.Warn().
		Str("pk", key.PK).
		Str("attr", cls.attr).
		Str("stale", kv.String(it[cls.attr])).
		Str("repaired", want).
		Msg("Repaired stale index key")
	return true, nil
}

func snapshot(scanned, repaired, skipped *atomic.Int64) *SweepStats {
	return &SweepStats{Scanned: scanned.Load(), Repaired: repaired.Load(), Skipped: skipped.Load()}
}
