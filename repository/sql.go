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
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/webdb/types"
)

const (
	keyColumn   = "record_key"
	valueColumn = "record_value"
)

type autoRecordRow struct {
	bun.BaseModel `bun:"alias:r"`

	Key   int64        `bun:"record_key,pk,autoincrement"`
	Value types.Record `bun:"record_value,type:text"`
}

type keyedRecordRow struct {
	bun.BaseModel `bun:"alias:r"`

	Key   string       `bun:"record_key,pk,type:varchar(512)"`
	Value types.Record `bun:"record_value,type:text"`
}

type sqlCollection struct {
	types.Collection
	table string
}

type sqlRepositoryImpl struct {
	db   *bun.DB
	name string

	catalogMu    sync.RWMutex
	catalog      map[string]sqlCollection
	catalogReady bool
}

// NewSQLRepository returns a repository storing the named database in the
// tables of the provided Bun DB.
func NewSQLRepository(db *bun.DB, name string) Repository {
	return &sqlRepositoryImpl{db: db, name: name, catalog: make(map[string]sqlCollection)}
}

func (r *sqlRepositoryImpl) Engine() string { return r.db.Dialect().Name().String() }

func (r *sqlRepositoryImpl) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *sqlRepositoryImpl) Close() error { return r.db.Close() }

func (r *sqlRepositoryImpl) Stats() Stats {
	s := r.db.Stats()
	return Stats{
		Engine:            r.Engine(),
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (r *sqlRepositoryImpl) Add(ctx context.Context, topic string, record types.Record) (interface{}, error) {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return nil, err
	}
	if c.AutoIncrement {
		row := &autoRecordRow{Value: record.Without(c.KeyPath)}
		if _, err := r.db.NewInsert().Model(row).ModelTableExpr("?", bun.Ident(c.table)).Exec(ctx); err != nil {
			return nil, classify(err)
		}
		return row.Key, nil
	}

	key, err := c.KeyOf(record)
	if err != nil {
		return nil, classify(err)
	}
	encoded, err := types.EncodeKey(key)
	if err != nil {
		return nil, classify(err)
	}
	row := &keyedRecordRow{Key: encoded, Value: record.Without(c.KeyPath)}
	if _, err := r.db.NewInsert().Model(row).ModelTableExpr("?", bun.Ident(c.table)).Exec(ctx); err != nil {
		if errors.Is(classify(err), ErrConstraint) {
			return nil, fmt.Errorf("%w: %w", keyExists(topic, key), err)
		}
		return nil, classify(err)
	}
	return key, nil
}

func (r *sqlRepositoryImpl) Put(ctx context.Context, topic string, record types.Record) (interface{}, error) {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return nil, err
	}
	key, err := c.KeyOf(record)
	if err != nil {
		return nil, classify(err)
	}

	var model interface{}
	if c.AutoIncrement {
		model = &autoRecordRow{Key: key.(int64), Value: record.Without(c.KeyPath)}
	} else {
		encoded, err := types.EncodeKey(key)
		if err != nil {
			return nil, classify(err)
		}
		model = &keyedRecordRow{Key: encoded, Value: record.Without(c.KeyPath)}
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.upsert(ctx, tx, c.table, model); err != nil {
			return err
		}
		if c.AutoIncrement && r.db.Dialect().Name() == dialect.PG {
			return r.advanceSequence(ctx, tx, c.table)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return key, nil
}

func (r *sqlRepositoryImpl) Get(ctx context.Context, topic string, key interface{}) (types.Record, error) {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return nil, err
	}
	lookup, err := c.lookupKey(key)
	if err != nil {
		return nil, classify(err)
	}

	if c.AutoIncrement {
		var row autoRecordRow
		err = r.selectRows(c, &row).
			Where("? = ?", bun.Ident("r."+keyColumn), lookup).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, classify(err)
		}
		return row.Value.With(c.KeyPath, row.Key), nil
	}

	var row keyedRecordRow
	err = r.selectRows(c, &row).
		Where("? = ?", bun.Ident("r."+keyColumn), lookup).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return c.keyedRecord(row)
}

func (r *sqlRepositoryImpl) GetAll(ctx context.Context, topic string) ([]types.Record, error) {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return nil, err
	}
	return r.scanRecords(ctx, c, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("? ASC", bun.Ident("r."+keyColumn))
	})
}

func (r *sqlRepositoryImpl) Page(ctx context.Context, topic string, page *types.PageRequest) (*types.Pagination[types.Record], error) {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[types.Record](page.GetPage(), page.GetPageSize())
	total, err := r.db.NewSelect().TableExpr("?", bun.Ident(c.table)).Count(ctx)
	if err != nil || total == 0 {
		return pagination, classify(err)
	}
	direction := "ASC"
	if page.IsDescending() {
		direction = "DESC"
	}
	items, err := r.scanRecords(ctx, c, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			OrderExpr("? "+direction, bun.Ident("r."+keyColumn)).
			Offset(page.GetOffset()).
			Limit(page.GetPageSize())
	})
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

func (r *sqlRepositoryImpl) Count(ctx context.Context, topic string) (int, error) {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return 0, err
	}
	n, err := r.db.NewSelect().TableExpr("?", bun.Ident(c.table)).Count(ctx)
	return n, classify(err)
}

func (r *sqlRepositoryImpl) Delete(ctx context.Context, topic string, key interface{}) error {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return err
	}
	lookup, err := c.lookupKey(key)
	if err != nil {
		return classify(err)
	}
	_, err = r.db.NewDelete().
		TableExpr("?", bun.Ident(c.table)).
		Where("? = ?", bun.Ident(keyColumn), lookup).
		Exec(ctx)
	return classify(err)
}

func (r *sqlRepositoryImpl) Clear(ctx context.Context, topic string) error {
	c, err := r.collection(ctx, topic)
	if err != nil {
		return err
	}
	_, err = r.db.NewDelete().
		TableExpr("?", bun.Ident(c.table)).
		Where("1 = 1").
		Exec(ctx)
	return classify(err)
}

func (r *sqlRepositoryImpl) selectRows(c sqlCollection, model interface{}) *bun.SelectQuery {
	return r.db.NewSelect().Model(model).ModelTableExpr("? AS r", bun.Ident(c.table))
}

func (r *sqlRepositoryImpl) scanRecords(ctx context.Context, c sqlCollection, build func(*bun.SelectQuery) *bun.SelectQuery) ([]types.Record, error) {
	if c.AutoIncrement {
		var rows []autoRecordRow
		if err := build(r.selectRows(c, &rows)).Scan(ctx); err != nil {
			return nil, classify(err)
		}
		records := make([]types.Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, row.Value.With(c.KeyPath, row.Key))
		}
		return records, nil
	}

	var rows []keyedRecordRow
	if err := build(r.selectRows(c, &rows)).Scan(ctx); err != nil {
		return nil, classify(err)
	}
	records := make([]types.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := c.keyedRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *sqlRepositoryImpl) upsert(ctx context.Context, tx bun.Tx, table string, model interface{}) error {
	insertQuery := tx.NewInsert().Model(model).ModelTableExpr("?", bun.Ident(table))

	if r.db.HasFeature(feature.InsertOnConflict) {
		_, err := insertQuery.
			On("CONFLICT (?) DO UPDATE", bun.Ident(keyColumn)).
			Set("? = EXCLUDED.?", bun.Ident(valueColumn), bun.Ident(valueColumn)).
			Exec(ctx)
		return err
	}
	if r.db.HasFeature(feature.InsertOnDuplicateKey) {
		_, err := insertQuery.
			On("DUPLICATE KEY UPDATE ? = VALUES(?)", bun.Ident(valueColumn), bun.Ident(valueColumn)).
			Exec(ctx)
		return err
	}

	// Fallback: separate insert/update
	if _, err := insertQuery.Exec(ctx); err != nil {
		_, updateErr := tx.NewUpdate().
			Model(model).
			ModelTableExpr("?", bun.Ident(table)).
			ExcludeColumn(keyColumn).
			Where("? = ?", bun.Ident(keyColumn), rowKey(model)).
			Exec(ctx)
		if updateErr != nil {
			return fmt.Errorf("upsert failed: insert error: %v, update error: %w", err, updateErr)
		}
	}
	return nil
}

// advanceSequence moves a serial sequence past keys written explicitly.
func (r *sqlRepositoryImpl) advanceSequence(ctx context.Context, tx bun.Tx, table string) error {
	_, err := tx.NewRaw(
		"SELECT setval(pg_get_serial_sequence(?, ?), (SELECT MAX(?) FROM ?))",
		table, keyColumn, bun.Ident(keyColumn), bun.Ident(table),
	).Exec(ctx)
	return err
}

func rowKey(model interface{}) interface{} {
	switch row := model.(type) {
	case *autoRecordRow:
		return row.Key
	case *keyedRecordRow:
		return row.Key
	default:
		return nil
	}
}

// lookupKey converts a caller supplied key into the stored column value.
func (c sqlCollection) lookupKey(key interface{}) (interface{}, error) {
	if c.AutoIncrement {
		return types.IntegerKey(key)
	}
	return types.EncodeKey(key)
}

func (c sqlCollection) keyedRecord(row keyedRecordRow) (types.Record, error) {
	key, err := types.DecodeKey(row.Key)
	if err != nil {
		return nil, classify(err)
	}
	return row.Value.With(c.KeyPath, key), nil
}

func (r *sqlRepositoryImpl) collection(ctx context.Context, topic string) (sqlCollection, error) {
	if err := ctx.Err(); err != nil {
		return sqlCollection{}, err
	}
	r.catalogMu.RLock()
	c, ok := r.catalog[topic]
	ready := r.catalogReady
	r.catalogMu.RUnlock()
	if ok {
		return c, nil
	}
	if ready {
		return sqlCollection{}, collectionNotFound(topic)
	}
	if err := r.loadCatalog(ctx); err != nil {
		return sqlCollection{}, err
	}
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	if c, ok = r.catalog[topic]; !ok {
		return sqlCollection{}, collectionNotFound(topic)
	}
	return c, nil
}
