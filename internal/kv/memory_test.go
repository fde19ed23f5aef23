package kv

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutConditions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	item := Item{"pk": "PATIENT#M1", "sk": "PROFILE", "name": "A"}
	require.NoError(t, s.Put(ctx, item, ItemNotExists()))

	err := s.Put(ctx, Item{"pk": "PATIENT#M1", "sk": "PROFILE", "name": "B"}, ItemNotExists())
	require.ErrorIs(t, err, ErrPreconditionFailed)

	got, err := s.Get(ctx, Key{PK: "PATIENT#M1", SK: "PROFILE"})
	require.NoError(t, err)
	assert.Equal(t, "A", got["name"])

	// mutating the returned copy never reaches the store
	got["name"] = "C"
	again, _ := s.Get(ctx, Key{PK: "PATIENT#M1", SK: "PROFILE"})
	assert.Equal(t, "A", again["name"])

	require.Error(t, s.Put(ctx, Item{"pk": "x"}, nil))
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{PK: "PATIENT#M1", SK: "PROFILE"}

	_, err := s.Update(ctx, key, Update{Set: map[string]any{"a": 1}}, ItemExists())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Put(ctx, Item{"pk": key.PK, "sk": key.SK, "status": "ACTIVE"}, nil))

	_, err = s.Update(ctx, key, Update{Set: map[string]any{"a": 1}}, Equals("status", "INACTIVE"))
	require.ErrorIs(t, err, ErrPreconditionFailed)

	out, err := s.Update(ctx, key, Update{Increment: map[string]int64{"n": 2}}, Equals("status", "ACTIVE"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), out["n"])
}

func TestMemoryStoreConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{PK: "DOCTOR#d1", SK: "PROFILE"}
	require.NoError(t, s.Put(ctx, Item{"pk": key.PK, "sk": key.SK}, nil))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, key, Update{Increment: map[string]int64{"points": 1}}, ItemExists())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	n, _ := Int64(got["points"])
	assert.Equal(t, int64(50), n)
}

func TestMemoryStoreQueryPrefixPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, Item{"pk": "PATIENT#M1", "sk": fmt.Sprintf("NOTE#%02d", i)}, nil))
	}
	require.NoError(t, s.Put(ctx, Item{"pk": "PATIENT#M1", "sk": "PROFILE"}, nil))
	require.NoError(t, s.Put(ctx, Item{"pk": "PATIENT#M2", "sk": "NOTE#99"}, nil))

	first, err := s.QueryPrefix(ctx, PrefixQuery{PK: "PATIENT#M1", SKPrefix: "NOTE#", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.Next)
	assert.Equal(t, "NOTE#01", first.Next.SK)

	rest, err := s.QueryPrefix(ctx, PrefixQuery{PK: "PATIENT#M1", SKPrefix: "NOTE#", Limit: 10, After: first.Next})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 3)
	assert.Nil(t, rest.Next)

	desc, err := s.QueryPrefix(ctx, PrefixQuery{PK: "PATIENT#M1", SKPrefix: "NOTE#", Limit: 2, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, "NOTE#04", desc.Items[0].Key().SK)
	assert.Equal(t, "NOTE#03", desc.Items[1].Key().SK)

	tail, err := s.QueryPrefix(ctx, PrefixQuery{PK: "PATIENT#M1", SKPrefix: "NOTE#", Descending: true, After: desc.Next})
	require.NoError(t, err)
	require.Len(t, tail.Items, 3)
	assert.Equal(t, "NOTE#02", tail.Items[0].Key().SK)
}

func TestMemoryStoreIndexAndScan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, Item{"pk": "PATIENT#A", "sk": "PROFILE", "department_status": "Cardio#ACTIVE"}, nil))
	require.NoError(t, s.Put(ctx, Item{"pk": "PATIENT#B", "sk": "PROFILE", "department_status": "Cardio#INACTIVE"}, nil))
	require.NoError(t, s.Put(ctx, Item{"pk": "PATIENT#C", "sk": "PROFILE"}, nil))
	require.NoError(t, s.Put(ctx, Item{"pk": "PATIENT#C", "sk": "DOCUMENTS"}, nil))

	idx, err := s.QueryIndex(ctx, IndexQuery{Index: "department_status", Value: "Cardio#ACTIVE"})
	require.NoError(t, err)
	require.Len(t, idx.Items, 1)
	assert.Equal(t, "PATIENT#A", idx.Items[0].Key().PK)

	all, err := s.Scan(ctx, ScanQuery{PKPrefix: "PATIENT#", SK: "PROFILE"})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)
}
