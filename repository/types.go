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

package repository

import (
	"context"
	"sort"

	"github.com/tomoncle/webdb/types"
)

// CollectionRepository defines the record operations of an object store.
// Every call runs in its own short host transaction.
type CollectionRepository interface {
	// Add inserts a record and returns its key. Auto-increment collections
	// drop the key field and generate a new key.
	Add(ctx context.Context, topic string, record types.Record) (interface{}, error)

	// Put inserts or replaces the record identified by its key field.
	Put(ctx context.Context, topic string, record types.Record) (interface{}, error)

	// Get returns the record stored under key, or nil when there is none.
	Get(ctx context.Context, topic string, key interface{}) (types.Record, error)

	// GetAll returns every record of the collection in key order.
	GetAll(ctx context.Context, topic string) ([]types.Record, error)

	Count(ctx context.Context, topic string) (int, error)

	// Delete removes the record stored under key. Missing keys are ignored.
	Delete(ctx context.Context, topic string, key interface{}) error

	Clear(ctx context.Context, topic string) error
}

// PageQueryRepository defines pagination over a collection in key order.
type PageQueryRepository interface {
	Page(ctx context.Context, topic string, page *types.PageRequest) (*types.Pagination[types.Record], error)
}

// SchemaRepository manages the database version and its collection catalog.
type SchemaRepository interface {
	// Version returns the stored version, 0 for a database never upgraded.
	Version(ctx context.Context) (int64, error)

	Collections(ctx context.Context) ([]types.Collection, error)

	// Upgrade creates the missing collections and records version, all in
	// one transaction.
	Upgrade(ctx context.Context, version int64, collections []types.Collection) error
}

// Stats is a snapshot of engine level counters.
type Stats struct {
	Engine            string `json:"engine"`
	MaxOpenConns      int    `json:"max_open_conns"`
	OpenConns         int    `json:"open_conns"`
	InUse             int    `json:"in_use"`
	Idle              int    `json:"idle"`
	WaitCount         int64  `json:"wait_count"`
	MaxIdleClosed     int64  `json:"max_idle_closed"`
	MaxLifetimeClosed int64  `json:"max_lifetime_closed"`
	TxCount           int    `json:"tx_count"`
	OpenTxCount       int    `json:"open_tx_count"`
}

// Repository is a connected object-store database.
type Repository interface {
	CollectionRepository
	PageQueryRepository
	SchemaRepository
	Engine() string
	Ping(ctx context.Context) error
	Stats() Stats
	Close() error
}

func sortCollections(cs []types.Collection) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Topic < cs[j].Topic })
}
