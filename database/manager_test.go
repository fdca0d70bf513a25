/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/webdb/capacity"
	"github.com/tomoncle/webdb/types"
)

// memLogger keeps every message so tests can assert on them.
type memLogger struct {
	mu       sync.Mutex
	messages map[LogLevel][]string
}

func newMemLogger() *memLogger {
	return &memLogger{messages: make(map[LogLevel][]string)}
}

func (l *memLogger) add(level LogLevel, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages[level] = append(l.messages[level], msg)
}

func (l *memLogger) get(level LogLevel) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages[level]...)
}

func (l *memLogger) SetLevel(LogLevel)                  {}
func (l *memLogger) Debug(msg string, _ ...interface{}) { l.add(LogLevelDebug, msg) }
func (l *memLogger) Info(msg string, _ ...interface{})  { l.add(LogLevelInfo, msg) }
func (l *memLogger) Warn(msg string, _ ...interface{})  { l.add(LogLevelWarn, msg) }
func (l *memLogger) Error(msg string, _ ...interface{}) { l.add(LogLevelError, msg) }

const gb = 1024 * capacity.BytesPerMB

var plenty = capacity.StaticEstimator{Quota: 8 * gb, Usage: gb}

func testConfig(t *testing.T, engine string) *Config {
	t.Helper()
	cfg := &Config{
		Name:        "test",
		Version:     1,
		MinCapacity: 1024,
		Stores:      []StoreConfig{{Topic: "todos"}},
		Connection:  ConnectionConfig{Type: engine, Dir: t.TempDir()},
	}
	cfg.ApplyDefaults()
	return cfg
}

func forEachEngine(t *testing.T, fn func(t *testing.T, engine string)) {
	for _, engine := range []string{EngineSQLite, EngineBolt} {
		t.Run(engine, func(t *testing.T) { fn(t, engine) })
	}
}

func TestManager_ConnectsLazily(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		cfg := testConfig(t, engine)
		var infos []Info
		m := NewDatabaseManager(cfg, WithEstimator(plenty), WithLogger(newMemLogger()),
			WithOnSuccess(func(info Info) { infos = append(infos, info) }))
		defer m.Close()

		_, ok := m.Info()
		assert.False(t, ok)
		_, err := os.Stat(cfg.DataFile())
		assert.True(t, os.IsNotExist(err))

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			repo, release, err := m.Acquire(ctx)
			require.NoError(t, err)
			_, err = repo.Add(ctx, "todos", types.Record{"n": i})
			release()
			require.NoError(t, err)
		}

		require.Len(t, infos, 1)
		info, ok := m.Info()
		require.True(t, ok)
		assert.Equal(t, infos[0].ConnectionID, info.ConnectionID)
		assert.NotEmpty(t, info.ConnectionID)
		assert.Equal(t, "test", info.Name)
		assert.Equal(t, int64(1), info.Version)
		require.Len(t, info.Collections, 1)
		assert.Equal(t, "todos", info.Collections[0].Topic)
	})
}

func TestManager_InsufficientCapacity(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		cfg := testConfig(t, engine)
		var reported error
		m := NewDatabaseManager(cfg,
			WithEstimator(capacity.StaticEstimator{Quota: 1024 * capacity.BytesPerMB, Usage: 512 * capacity.BytesPerMB}),
			WithLogger(newMemLogger()),
			WithOnSuccess(func(Info) { t.Error("success callback must not run") }),
			WithOnError(func(err error) { reported = err }))
		defer m.Close()

		_, _, err := m.Acquire(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientCapacity)
		assert.Same(t, err, reported)

		var capErr *CapacityError
		require.True(t, errors.As(err, &capErr))
		assert.False(t, capErr.Report.IsCapable)
		assert.Equal(t, "storage doesn't have enough space, requested: 1 GB, capacity: 1 GB, used: 512 MB", err.Error())

		_, statErr := os.Stat(cfg.DataFile())
		assert.True(t, os.IsNotExist(statErr), "no engine file may be created")
	})
}

func TestManager_CapacityCheckDisabled(t *testing.T) {
	cfg := testConfig(t, EngineBolt)
	cfg.MinCapacity = -1
	m := NewDatabaseManager(cfg,
		WithEstimator(capacity.StaticEstimator{Quota: 1, Usage: 1}),
		WithLogger(newMemLogger()))
	defer m.Close()
	assert.NoError(t, m.Connect(context.Background()))
}

func TestManager_Unsupported(t *testing.T) {
	cfg := testConfig(t, "indexeddb")
	logger := newMemLogger()
	m := NewDatabaseManager(cfg, WithLogger(logger))
	defer m.Close()

	_, _, err := m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotEmpty(t, logger.get(LogLevelError))
}

func TestManager_ServerEngineCapacity(t *testing.T) {
	cfg := testConfig(t, EnginePostgres)
	m := NewDatabaseManager(cfg, WithLogger(newMemLogger()))
	defer m.Close()

	_, err := m.CheckCapacity(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NoError(t, m.preCheckCapacity(context.Background()))

	m = NewDatabaseManager(cfg, WithLogger(newMemLogger()), WithEstimator(plenty))
	report, err := m.CheckCapacity(context.Background())
	require.NoError(t, err)
	assert.True(t, report.IsCapable)
}

func TestManager_VersionNegotiation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		cfg := testConfig(t, engine)

		m := NewDatabaseManager(cfg, WithEstimator(plenty), WithLogger(newMemLogger()))
		require.NoError(t, m.Connect(ctx))
		require.NoError(t, m.Close())

		upgraded := *cfg
		upgraded.Version = 2
		upgraded.Stores = append([]StoreConfig{{Topic: "tags"}}, cfg.Stores...)
		m = NewDatabaseManager(&upgraded, WithEstimator(plenty), WithLogger(newMemLogger()))
		require.NoError(t, m.Connect(ctx))
		info, _ := m.Info()
		assert.Len(t, info.Collections, 2)
		require.NoError(t, m.Close())

		downgraded := *cfg
		m = NewDatabaseManager(&downgraded, WithEstimator(plenty), WithLogger(newMemLogger()))
		defer m.Close()
		err := m.Connect(ctx)
		assert.ErrorIs(t, err, ErrVersion)
	})
}

func TestManager_MissingStoreAtSameVersion(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, EngineBolt)
	m := NewDatabaseManager(cfg, WithEstimator(plenty), WithLogger(newMemLogger()))
	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Close())

	same := *cfg
	same.Stores = append([]StoreConfig{{Topic: "tags"}}, cfg.Stores...)
	logger := newMemLogger()
	m = NewDatabaseManager(&same, WithEstimator(plenty), WithLogger(logger))
	defer m.Close()
	require.NoError(t, m.Connect(ctx))

	assert.Contains(t, logger.get(LogLevelWarn), "Object store is not created, bump the version to create it")
	repo, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	defer release()
	_, err = repo.Add(ctx, "tags", types.Record{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_NoStores(t *testing.T) {
	cfg := testConfig(t, EngineBolt)
	cfg.Stores = nil
	logger := newMemLogger()
	m := NewDatabaseManager(cfg, WithEstimator(plenty), WithLogger(logger))
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	assert.Contains(t, logger.get(LogLevelWarn), "No object stores found!")
}

func TestManager_CloseRejectsOperations(t *testing.T) {
	m := NewDatabaseManager(testConfig(t, EngineBolt), WithEstimator(plenty), WithLogger(newMemLogger()))
	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, _, err := m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Connect(context.Background()), ErrClosed)
}

func TestManager_DisconnectAndReconnect(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		m := NewDatabaseManager(testConfig(t, engine), WithEstimator(plenty), WithLogger(newMemLogger()))
		defer m.Close()

		require.NoError(t, m.Connect(ctx))
		first, _ := m.Info()

		require.NoError(t, m.Disconnect())
		_, ok := m.Info()
		assert.False(t, ok)
		assert.Error(t, m.Ping(ctx))

		repo, release, err := m.Acquire(ctx)
		require.NoError(t, err)
		assert.NoError(t, repo.Ping(ctx))
		release()

		second, _ := m.Info()
		assert.NotEqual(t, first.ConnectionID, second.ConnectionID)

		require.NoError(t, m.Reconnect(ctx))
		third, ok := m.Info()
		require.True(t, ok)
		assert.NotEqual(t, second.ConnectionID, third.ConnectionID)
	})
}

func TestManager_ReconnectStopsOnPermanentError(t *testing.T) {
	cfg := testConfig(t, "indexeddb")
	attempts := 0
	m := NewDatabaseManager(cfg, WithLogger(newMemLogger()), WithOnError(func(error) { attempts++ }))
	defer m.Close()

	err := m.Reconnect(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, 1, attempts)
}

func TestManager_HealthCheck(t *testing.T) {
	ctx := context.Background()
	m := NewDatabaseManager(testConfig(t, EngineSQLite), WithEstimator(plenty), WithLogger(newMemLogger()))
	defer m.Close()

	status := m.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.False(t, status.Connected)

	require.NoError(t, m.Connect(ctx))
	status = m.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Empty(t, status.LastError)

	stats := m.GetStats()
	assert.Equal(t, "sqlite", stats.Engine)
	assert.Equal(t, 1, stats.MaxOpenConns)
}

func TestManager_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	opened := 0
	m := NewDatabaseManager(testConfig(t, EngineBolt), WithEstimator(plenty), WithLogger(newMemLogger()),
		WithOnSuccess(func(Info) {
			mu.Lock()
			opened++
			mu.Unlock()
		}))
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			repo, release, err := m.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			_, err = repo.Add(ctx, "todos", types.Record{"n": i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	repo, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	defer release()
	n, err := repo.Count(ctx, "todos")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}
