package kv

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. Every write evaluates its condition and
// applies its mutation under one lock, so it honours the same atomicity
// contract as the networked engines.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Key]Item
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Key]Item)}
}

func (m *MemoryStore) Get(ctx context.Context, key Key) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, item Item, cond *Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := item.Key()
	if key.PK == "" || key.SK == "" {
		return fmt.Errorf("kv: put requires pk and sk")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !cond.Eval(m.items[key]) {
		return ErrPreconditionFailed
	}
	m.items[key] = item.Clone()
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, key Key, upd Update, cond *Condition) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !cond.Eval(current) {
		return nil, ErrPreconditionFailed
	}
	next := upd.Apply(current)
	m.items[key] = next
	return next.Clone(), nil
}

func (m *MemoryStore) QueryPrefix(ctx context.Context, q PrefixQuery) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	return m.collect(func(k Key, _ Item) bool {
		return k.PK == q.PK && strings.HasPrefix(k.SK, q.SKPrefix)
	}, q.After, q.Limit, q.Descending), nil
}

func (m *MemoryStore) QueryIndex(ctx context.Context, q IndexQuery) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	return m.collect(func(_ Key, it Item) bool {
		v, ok := it[q.Index].(string)
		return ok && v == q.Value
	}, q.After, q.Limit, false), nil
}

func (m *MemoryStore) Scan(ctx context.Context, q ScanQuery) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	return m.collect(func(k Key, _ Item) bool {
		return strings.HasPrefix(k.PK, q.PKPrefix) && (q.SK == "" || k.SK == q.SK)
	}, q.After, q.Limit, false), nil
}

// Len returns the number of stored items
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) collect(match func(Key, Item) bool, after *Key, limit int, desc bool) Page {
	m.mu.RLock()
	keys := make([]Key, 0)
	for k, it := range m.items {
		if !match(k, it) {
			continue
		}
		if after != nil {
			if !desc && !after.Less(k) {
				continue
			}
			if desc && !k.Less(*after) {
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if desc {
			return keys[j].Less(keys[i])
		}
		return keys[i].Less(keys[j])
	})

	var page Page
	for i, k := range keys {
		if limit > 0 && i == limit {
			last := keys[i-1]
			page.Next = &last
			break
		}
		page.Items = append(page.Items, m.items[k].Clone())
	}
	m.mu.RUnlock()
	return page
}
