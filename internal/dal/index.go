package dal

import (
	"context"
	"errors"
	"fmt"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/metrics"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// maxIndexAttempts bounds how often a patch re-reads the classifying
// attributes after losing a race to a concurrent writer
const maxIndexAttempts = 3

// classifier derives one classification key from a record's source attributes
type classifier struct {
	attr    string
	sources []string
	derive  func(values map[string]any) string
}

var patientIndex = classifier{
	attr:    codec.AttrDepartmentStatus,
	sources: []string{codec.AttrDepartment, codec.AttrStatus},
	derive: func(v map[string]any) string {
		return codec.ClassificationKey(kv.String(v[codec.AttrDepartment]), kv.String(v[codec.AttrStatus]))
	},
}

var doctorIndex = classifier{
	attr:    codec.AttrDepartmentRole,
	sources: []string{codec.AttrDepartment, codec.AttrRole, codec.AttrActive},
	derive: func(v map[string]any) string {
		return codec.DoctorIndexKey(kv.String(v[codec.AttrDepartment]), model.Role(kv.String(v[codec.AttrRole])), kv.Bool(v[codec.AttrActive]))
	},
}

// touches reports whether a patch changes any source attribute
func (c classifier) touches(patched map[string]any) bool {
	for _, src := range c.sources {
		if _, ok := patched[src]; ok {
			return true
		}
	}
	return false
}

// needsRead reports whether some source keeps its stored value
func (c classifier) needsRead(patched map[string]any) bool {
	for _, src := range c.sources {
		if _, ok := patched[src]; !ok {
			return true
		}
	}
	return false
}

// expected derives the key a stored item should carry
func (c classifier) expected(item kv.Item) string {
	return c.derive(map[string]any(item))
}

// observe returns the key after applying patched over current, together with
// the condition that the unpatched sources still hold the values it was
// computed from
func (c classifier) observe(patched map[string]any, current kv.Item) (string, *kv.Condition) {
	values := make(map[string]any, len(c.sources))
	var terms []*kv.Condition
	for _, src := range c.sources {
		if v, ok := patched[src]; ok {
			values[src] = v
			continue
		}
		v, present := current[src]
		values[src] = v
		if present {
			terms = append(terms, kv.Equals(src, v))
		} else {
			terms = append(terms, kv.NotExists(src))
		}
	}
	return c.derive(values), kv.And(terms...)
}

// setKey adds the classification key clause to upd; an empty key removes it
func (c classifier) setKey(upd *kv.Update, key string) {
	if key == "" {
		upd.Remove = append(upd.Remove, c.attr)
		return
	}
	if upd.Set == nil {
		upd.Set = map[string]any{}
	}
	upd.Set[c.attr] = key
}

// updateClassified applies build() to the item at key and keeps the
// classification key in the same write. When a patch changes only some of
// the sources, the others are read first and the write is conditioned on
// them being unchanged; a lost race re-reads and retries.
func (b *base) updateClassified(ctx context.Context, key kv.Key, cls classifier, patched map[string]any, build func() kv.Update, entity, id string) (kv.Item, error) {
	for attempt := 1; attempt <= maxIndexAttempts; attempt++ {
		upd := build()
		cond := kv.ItemExists()

		if cls.touches(patched) {
			var current kv.Item
			if cls.needsRead(patched) {
				var err error
				current, err = b.store.Get(ctx, key)
				if err != nil {
					return nil, translate(err, entity, id)
				}
			}
			indexKey, observed := cls.observe(patched, current)
			cls.setKey(&upd, indexKey)
			cond = kv.And(cond, observed)
		}

		item, err := b.store.Update(ctx, key, upd, cond)
		if errors.Is(err, kv.ErrPreconditionFailed) {
			metrics.RecordConflict(entity, "retried")
			continue
		}
		return item, translate(err, entity, id)
	}

	metrics.RecordConflict(entity, "surfaced")
	return nil, apperrors.Conflict("index_conflict",
		fmt.Sprintf("%s %s kept changing while its index key was updated, retry the request", entity, id))
}
