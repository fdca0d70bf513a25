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

package webdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/webdb"
	"github.com/tomoncle/webdb/capacity"
	"github.com/tomoncle/webdb/types"
)

const mb = capacity.BytesPerMB

var plenty = capacity.StaticEstimator{Quota: 4096 * mb, Usage: 0}

func newDatabase(t *testing.T, engine string, opts ...webdb.Option) *webdb.Database {
	t.Helper()
	off := false
	cfg := webdb.Config{
		Name: "todo",
		Stores: []webdb.StoreConfig{
			{Topic: "todos"},
			{Topic: "users", KeyPath: "email", AutoIncrement: &off},
		},
		Connection: webdb.ConnectionConfig{Type: engine, Dir: t.TempDir()},
	}
	db, err := webdb.New(cfg, append([]webdb.Option{webdb.WithEstimator(plenty)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func forEachEngine(t *testing.T, fn func(t *testing.T, db *webdb.Database)) {
	for _, engine := range []string{"sqlite", "bolt"} {
		t.Run(engine, func(t *testing.T) { fn(t, newDatabase(t, engine)) })
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_DIR", t.TempDir())
	var info webdb.Info
	db, err := webdb.New(webdb.Config{}, webdb.WithEstimator(plenty),
		webdb.WithOnSuccess(func(i webdb.Info) { info = i }))
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", got.Name)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "sqlite", got.Engine)
	assert.Equal(t, got, info)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := webdb.New(webdb.Config{Stores: []webdb.StoreConfig{{Topic: "a"}, {Topic: "a"}}})
	assert.Error(t, err)
}

func TestCreate_GeneratesDistinctKeys(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db *webdb.Database) {
		ctx := context.Background()
		keys := map[any]bool{}
		for _, task := range []string{"play", "watch", "read"} {
			key, err := db.Create(ctx, "todos", webdb.Record{"task": task})
			require.NoError(t, err)
			assert.False(t, keys[key])
			keys[key] = true
		}

		key, err := db.Create(ctx, "todos", webdb.Record{"id": 1, "task": "explicit id is dropped"})
		require.NoError(t, err)
		assert.False(t, keys[key])
	})
}

func TestRead_ReturnsEveryRecord(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db *webdb.Database) {
		ctx := context.Background()
		var created []any
		for _, task := range []string{"play", "watch", "read"} {
			key, err := db.Create(ctx, "todos", webdb.Record{"task": task})
			require.NoError(t, err)
			created = append(created, key)
		}

		records, err := db.Read(ctx, "todos")
		require.NoError(t, err)
		require.Len(t, records, 3)
		for i, r := range records {
			assert.Equal(t, created[i], r["id"])
		}

		one, err := db.ReadOne(ctx, "todos", created[1])
		require.NoError(t, err)
		assert.Equal(t, "watch", one["task"])
	})
}

func TestUpdate_Upserts(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db *webdb.Database) {
		ctx := context.Background()
		key, err := db.Update(ctx, "todos", webdb.Record{"id": 41, "task": "inserted"})
		require.NoError(t, err)
		assert.Equal(t, int64(41), key)

		_, err = db.Update(ctx, "todos", webdb.Record{"id": 41, "task": "replaced"})
		require.NoError(t, err)

		rec, err := db.ReadOne(ctx, "todos", 41)
		require.NoError(t, err)
		assert.Equal(t, "replaced", rec["task"])

		_, err = db.Update(ctx, "todos", webdb.Record{"task": "no key"})
		assert.ErrorIs(t, err, webdb.ErrData)
	})
}

func TestDelete_Idempotent(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db *webdb.Database) {
		ctx := context.Background()
		assert.NoError(t, db.Delete(ctx, "todos", 999))

		key, err := db.Create(ctx, "todos", webdb.Record{"task": "gone"})
		require.NoError(t, err)
		require.NoError(t, db.Delete(ctx, "todos", key))
		require.NoError(t, db.Delete(ctx, "todos", key))

		n, err := db.Count(ctx, "todos")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestKeyedStore(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db *webdb.Database) {
		ctx := context.Background()
		key, err := db.Create(ctx, "users", webdb.Record{"email": "a@b.c", "name": "A"})
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", key)

		_, err = db.Create(ctx, "users", webdb.Record{"email": "a@b.c", "name": "B"})
		assert.ErrorIs(t, err, webdb.ErrConstraint)

		rec, err := db.ReadOne(ctx, "users", "a@b.c")
		require.NoError(t, err)
		assert.Equal(t, webdb.Record{"email": "a@b.c", "name": "A"}, rec)

		missing, err := db.ReadOne(ctx, "users", "x@y.z")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestUnknownTopic(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db *webdb.Database) {
		_, err := db.Read(context.Background(), "nope")
		assert.ErrorIs(t, err, webdb.ErrNotFound)
	})
}

func TestClearAndPage(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db *webdb.Database) {
		ctx := context.Background()
		for i := 0; i < 7; i++ {
			_, err := db.Create(ctx, "todos", webdb.Record{"n": i})
			require.NoError(t, err)
		}
		page, err := db.Page(ctx, "todos", types.NewPageRequest(2, 3))
		require.NoError(t, err)
		assert.Equal(t, 7, page.Total)
		require.Len(t, page.Items, 3)
		assert.EqualValues(t, 3, page.Items[0]["n"])

		require.NoError(t, db.Clear(ctx, "todos"))
		records, err := db.Read(ctx, "todos")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestInsufficientCapacity(t *testing.T) {
	var callbackErr error
	cfg := webdb.Config{Connection: webdb.ConnectionConfig{Type: "bolt", Dir: t.TempDir()}}
	db, err := webdb.New(cfg,
		webdb.WithEstimator(capacity.StaticEstimator{Quota: 1024 * mb, Usage: 512 * mb}),
		webdb.WithOnError(func(err error) { callbackErr = err }))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Create(context.Background(), "todos", webdb.Record{})
	assert.ErrorIs(t, err, webdb.ErrInsufficientCapacity)
	assert.Equal(t, err, callbackErr)

	var capErr *webdb.CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "512 MB", capErr.Report.Used)

	report, err := db.CheckCapacity(context.Background())
	require.NoError(t, err)
	assert.False(t, report.IsCapable)
}

func TestUnsupportedEngine(t *testing.T) {
	db, err := webdb.New(webdb.Config{Connection: webdb.ConnectionConfig{Type: "indexeddb"}})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Read(context.Background(), "todos")
	assert.ErrorIs(t, err, webdb.ErrUnsupported)
}

func TestClose(t *testing.T) {
	db := newDatabase(t, "bolt")
	ctx := context.Background()
	_, err := db.Create(ctx, "todos", webdb.Record{})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Create(ctx, "todos", webdb.Record{})
	assert.ErrorIs(t, err, webdb.ErrClosed)
}

func TestHealthAndStats(t *testing.T) {
	db := newDatabase(t, "sqlite")
	ctx := context.Background()
	assert.False(t, db.Health(ctx).Healthy)

	_, err := db.Info(ctx)
	require.NoError(t, err)
	assert.True(t, db.Health(ctx).Healthy)
	assert.Equal(t, "sqlite", db.Stats().Engine)
}
