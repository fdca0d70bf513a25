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

package webdb

import (
	"context"

	"github.com/tomoncle/webdb/capacity"
	"github.com/tomoncle/webdb/database"
	"github.com/tomoncle/webdb/repository"
	"github.com/tomoncle/webdb/types"
)

type (
	Config           = database.Config
	StoreConfig      = database.StoreConfig
	ConnectionConfig = database.ConnectionConfig
	Info             = database.Info
	HealthStatus     = database.HealthStatus
	DBStats          = database.DBStats
	Logger           = database.Logger
	CapacityError    = database.CapacityError
	Record           = types.Record
)

var (
	ErrUnsupported          = database.ErrUnsupported
	ErrInsufficientCapacity = database.ErrInsufficientCapacity
	ErrVersion              = database.ErrVersion
	ErrClosed               = database.ErrClosed
	ErrNotFound             = database.ErrNotFound
	ErrConstraint           = database.ErrConstraint
	ErrData                 = database.ErrData
)

// Database exposes record operations over the collections of one host
// database. The connection is opened on first use and reused until Close.
type Database struct {
	manager *database.Manager
}

// New validates cfg, applies its defaults and environment overrides and
// returns a Database. It does not connect.
func New(cfg Config, opts ...Option) (*Database, error) {
	manager, err := database.NewDatabaseFactory().CreateFromConfig(&cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Database{manager: manager}, nil
}

// Open is New followed by an eager connect, so configuration and capacity
// failures surface immediately.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Database, error) {
	db, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := db.manager.Connect(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func run[T any](ctx context.Context, d *Database, fn func(repository.Repository) (T, error)) (T, error) {
	repo, release, err := d.manager.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer release()
	return fn(repo)
}

// Create inserts record into topic and returns its key. Auto-increment
// collections ignore the key field and generate a new key.
func (d *Database) Create(ctx context.Context, topic string, record Record) (any, error) {
	return run(ctx, d, func(repo repository.Repository) (any, error) {
		return repo.Add(ctx, topic, record)
	})
}

// Read returns every record of topic in key order.
func (d *Database) Read(ctx context.Context, topic string) ([]Record, error) {
	return run(ctx, d, func(repo repository.Repository) ([]Record, error) {
		return repo.GetAll(ctx, topic)
	})
}

// ReadOne returns the record stored under key, or nil when there is none.
func (d *Database) ReadOne(ctx context.Context, topic string, key any) (Record, error) {
	return run(ctx, d, func(repo repository.Repository) (Record, error) {
		return repo.Get(ctx, topic, key)
	})
}

// Update inserts or replaces record. Its key field must be set.
func (d *Database) Update(ctx context.Context, topic string, record Record) (any, error) {
	return run(ctx, d, func(repo repository.Repository) (any, error) {
		return repo.Put(ctx, topic, record)
	})
}

// Delete removes the record stored under key. Missing keys are not an error.
func (d *Database) Delete(ctx context.Context, topic string, key any) error {
	_, err := run(ctx, d, func(repo repository.Repository) (struct{}, error) {
		return struct{}{}, repo.Delete(ctx, topic, key)
	})
	return err
}

func (d *Database) Count(ctx context.Context, topic string) (int, error) {
	return run(ctx, d, func(repo repository.Repository) (int, error) {
		return repo.Count(ctx, topic)
	})
}

// Clear removes every record of topic. Generated keys are not reused.
func (d *Database) Clear(ctx context.Context, topic string) error {
	_, err := run(ctx, d, func(repo repository.Repository) (struct{}, error) {
		return struct{}{}, repo.Clear(ctx, topic)
	})
	return err
}

func (d *Database) Page(ctx context.Context, topic string, page *types.PageRequest) (*types.Pagination[Record], error) {
	return run(ctx, d, func(repo repository.Repository) (*types.Pagination[Record], error) {
		return repo.Page(ctx, topic, page)
	})
}

// CheckCapacity reports whether the host has more free space than the
// configured minimum. It does not connect.
func (d *Database) CheckCapacity(ctx context.Context) (capacity.Report, error) {
	return d.manager.CheckCapacity(ctx)
}

// Info connects when needed and describes the open database.
func (d *Database) Info(ctx context.Context) (Info, error) {
	return run(ctx, d, func(repository.Repository) (Info, error) {
		info, _ := d.manager.Info()
		return info, nil
	})
}

func (d *Database) Health(ctx context.Context) *HealthStatus {
	return d.manager.HealthCheck(ctx)
}

func (d *Database) Stats() *DBStats {
	return d.manager.GetStats()
}

// Close releases the connection. Later operations fail with ErrClosed.
func (d *Database) Close() error {
	return d.manager.Close()
}
