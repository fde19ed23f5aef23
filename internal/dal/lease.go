package dal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
)

// ErrLeaseHeld is returned when another owner holds an unexpired lease
var ErrLeaseHeld = errors.New("lease is held by another owner")

// Lease is an expiring exclusive claim stored as an ordinary record, so it
// works the same on every engine
type Lease struct {
	Name      string
	Owner     string
	ExpiresAt time.Time

	store kv.Store
}

// AcquireLease claims name for owner until ttl elapses. It succeeds when the
// lease is free, expired, or already held by owner.
func AcquireLease(ctx context.Context, store kv.Store, name, owner string, ttl time.Duration, now time.Time) (*Lease, error) {
	if owner == "" || ttl <= 0 {
		return nil, fmt.Errorf("lease %s: owner and a positive ttl are required", name)
	}
	now = now.UTC()
	expires := now.Add(ttl)
	key := codec.LeaseKey(name)
	item := kv.Item{
		kv.AttrPK:           key.PK,
		kv.AttrSK:           key.SK,
		codec.AttrEntity:    codec.EntityLease,
		codec.AttrOwner:     owner,
		codec.AttrExpiresAt: codec.FormatTime(expires),
		codec.AttrCreatedAt: codec.FormatTime(now),
	}
	cond := kv.Or(
		kv.ItemNotExists(),
		kv.LessThan(codec.AttrExpiresAt, codec.FormatTime(now)),
		kv.Equals(codec.AttrOwner, owner),
	)

	err := store.Put(ctx, item, cond)
	if errors.Is(err, kv.ErrPreconditionFailed) {
		return nil, ErrLeaseHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}

	log.Info().Str("lease", name).Str("owner", owner).Time("expires_at", expires).Msg("Lease acquired")
	return &Lease{Name: name, Owner: owner, ExpiresAt: expires, store: store}, nil
}

// Release expires the lease immediately if it is still held by its owner
func (l *Lease) Release(ctx context.Context) error {
	upd := kv.Update{Set: map[string]any{codec.AttrExpiresAt: codec.FormatTime(time.Unix(0, 0))}}
	_, err := l.store.Update(ctx, codec.LeaseKey(l.Name), upd, kv.Equals(codec.AttrOwner, l.Owner))
	if errors.Is(err, kv.ErrPreconditionFailed) || errors.Is(err, kv.ErrNotFound) {
		log.Warn().Str("lease", l.Name).Str("owner", l.Owner).Msg("Lease was taken over before release")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.Name, err)
	}

	log.Info().Str("lease", l.Name).Str("owner", l.Owner).Msg("Lease released")
	return nil
}
