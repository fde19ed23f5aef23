package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/wardbook/internal/config"
	"stealthcompany.com/wardbook/internal/kv"
)

func TestOpenMemoryEngine(t *testing.T) {
	ctx := context.Background()
	engine, err := Open(ctx, &config.Config{StoreEngine: config.EngineMemory})
	require.NoError(t, err)
	defer engine.Close()

	item := kv.Item{kv.AttrPK: "PATIENT#1", kv.AttrSK: "PROFILE", "name": "Ada"}
	require.NoError(t, engine.Store.Put(ctx, item, kv.ItemNotExists()))
	assert.ErrorIs(t, engine.Store.Put(ctx, item, kv.ItemNotExists()), kv.ErrPreconditionFailed)

	got, err := engine.Store.Get(ctx, item.Key())
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])
	assert.NoError(t, engine.Close())
}

func TestUnknownEngine(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreEngine: "etcd"})
	assert.Error(t, err)
	assert.Error(t, Setup(context.Background(), &config.Config{StoreEngine: "etcd"}))
	assert.NoError(t, Setup(context.Background(), &config.Config{StoreEngine: config.EngineMemory}))
}
