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
)

func TestSettle(t *testing.T) {
	ok := webdb.Settle(42, nil)
	assert.True(t, ok.Ok())
	assert.Equal(t, 42, ok.Data)

	boom := errors.New("boom")
	failed := webdb.Settle(42, boom)
	assert.False(t, failed.Ok())
	assert.Zero(t, failed.Data)
	data, err := failed.Unwrap()
	assert.Zero(t, data)
	assert.Same(t, boom, err)
}

func TestAsync_DeliversOnce(t *testing.T) {
	ch := webdb.Async(context.Background(), func(ctx context.Context) (string, error) {
		return "done", nil
	})
	res, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, webdb.Result[string]{Data: "done"}, res)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the result")
}

func TestAsync_Panic(t *testing.T) {
	res := <-webdb.Async(context.Background(), func(ctx context.Context) (int, error) {
		panic("bad")
	})
	assert.False(t, res.Ok())
	assert.Contains(t, res.Error.Error(), "bad")
}

func TestAsync_Operations(t *testing.T) {
	db := newDatabase(t, "bolt")
	ctx := context.Background()

	created := <-webdb.Async(ctx, func(ctx context.Context) (any, error) {
		return db.Create(ctx, "todos", webdb.Record{"task": "async"})
	})
	require.True(t, created.Ok())

	read := <-webdb.Async(ctx, func(ctx context.Context) (webdb.Record, error) {
		return db.ReadOne(ctx, "todos", created.Data)
	})
	require.NoError(t, read.Error)
	assert.Equal(t, "async", read.Data["task"])

	missing := <-webdb.Async(ctx, func(ctx context.Context) ([]webdb.Record, error) {
		return db.Read(ctx, "missing")
	})
	assert.ErrorIs(t, missing.Error, webdb.ErrNotFound)
	assert.Nil(t, missing.Data)
}
