package main

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "sweep", "migrate"}, names)
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(config.PostgresConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", DBName: "inv", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=inv sslmode=disable", dsn)
}

func TestNormalizePort(t *testing.T) {
	assert.Equal(t, ":8083", normalizePort("8083"))
	assert.Equal(t, ":8083", normalizePort(":8083"))
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Inventory: config.InventoryConfig{StoreBackend: "memory", LockBackend: "memory"}}

	store, closeStore, err := openStore(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &repository.MemoryRepository{}, store)

	locker, closeLocker, err := openLocker(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer closeLocker()
	assert.IsType(t, &lock.KeyedMutex{}, locker)

	cfg.Inventory.StoreBackend = "cassandra"
	_, _, err = openStore(ctx, cfg, logger.NewNop())
	assert.Error(t, err)

	cfg.Inventory.LockBackend = "zookeeper"
	_, _, err = openLocker(ctx, cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestBuildEngineMemory(t *testing.T) {
	cfg := &config.Config{Inventory: config.InventoryConfig{StoreBackend: "memory", LockBackend: "memory"}}
	eng, err := buildEngine(context.Background(), cfg, logger.NewNop(), nil)
	require.NoError(t, err)
	defer eng.Close()

	res, err := eng.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
}
