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
	"hash/fnv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/webdb/types"
)

// metaRow stores the version of each database sharing the host database.
type metaRow struct {
	bun.BaseModel `bun:"table:webdb_meta,alias:m"`

	Name       string    `bun:"name,pk,type:varchar(255)"`
	Version    int64     `bun:"version,notnull"`
	UpgradedAt time.Time `bun:"upgraded_at,notnull"`
}

// collectionRow is the catalog entry of one collection.
type collectionRow struct {
	bun.BaseModel `bun:"table:webdb_collections,alias:c"`

	Database      string    `bun:"database_name,pk,type:varchar(255)"`
	Topic         string    `bun:"topic,pk,type:varchar(255)"`
	TableName     string    `bun:"table_name,notnull,type:varchar(64)"`
	KeyPath       string    `bun:"key_path,notnull,type:varchar(255)"`
	AutoIncrement bool      `bun:"auto_inc,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (r *sqlRepositoryImpl) Version(ctx context.Context) (int64, error) {
	if err := r.createCatalogTables(ctx, r.db); err != nil {
		return 0, err
	}
	var meta metaRow
	err := r.db.NewSelect().Model(&meta).Where("? = ?", bun.Ident("m.name"), r.name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return meta.Version, nil
}

func (r *sqlRepositoryImpl) Collections(ctx context.Context) ([]types.Collection, error) {
	if err := r.loadCatalog(ctx); err != nil {
		return nil, err
	}
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	out := make([]types.Collection, 0, len(r.catalog))
	for _, c := range r.catalog {
		out = append(out, c.Collection)
	}
	sortCollections(out)
	return out, nil
}

func (r *sqlRepositoryImpl) Upgrade(ctx context.Context, version int64, collections []types.Collection) error {
	if err := r.createCatalogTables(ctx, r.db); err != nil {
		return err
	}
	existing, err := r.readCatalog(ctx, r.db)
	if err != nil {
		return err
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		for _, c := range collections {
			if _, ok := existing[c.Topic]; ok {
				continue
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("%w: %w", ErrData, err)
			}
			table := tableName(r.name, c.Topic)
			if err := createRecordTable(ctx, tx, table, c.AutoIncrement); err != nil {
				return fmt.Errorf("failed to create collection %q: %w", c.Topic, err)
			}
			row := &collectionRow{
				Database:      r.name,
				Topic:         c.Topic,
				TableName:     table,
				KeyPath:       c.KeyPath,
				AutoIncrement: c.AutoIncrement,
				CreatedAt:     now,
			}
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				return err
			}
			existing[c.Topic] = sqlCollection{Collection: c, table: table}
		}

		if _, err := tx.NewDelete().Model((*metaRow)(nil)).Where("? = ?", bun.Ident("name"), r.name).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&metaRow{Name: r.name, Version: version, UpgradedAt: now}).Exec(ctx)
		return err
	})
	if err != nil {
		return classify(err)
	}

	r.catalogMu.Lock()
	r.catalog = existing
	r.catalogReady = true
	r.catalogMu.Unlock()
	return nil
}

func (r *sqlRepositoryImpl) loadCatalog(ctx context.Context) error {
	if err := r.createCatalogTables(ctx, r.db); err != nil {
		return err
	}
	catalog, err := r.readCatalog(ctx, r.db)
	if err != nil {
		return err
	}
	r.catalogMu.Lock()
	r.catalog = catalog
	r.catalogReady = true
	r.catalogMu.Unlock()
	return nil
}

func (r *sqlRepositoryImpl) readCatalog(ctx context.Context, db bun.IDB) (map[string]sqlCollection, error) {
	var rows []collectionRow
	err := db.NewSelect().
		Model(&rows).
		Where("? = ?", bun.Ident("c.database_name"), r.name).
		Scan(ctx)
	if err != nil {
		return nil, classify(err)
	}
	catalog := make(map[string]sqlCollection, len(rows))
	for _, row := range rows {
		catalog[row.Topic] = sqlCollection{
			Collection: types.Collection{
				Topic:         row.Topic,
				KeyPath:       row.KeyPath,
				AutoIncrement: row.AutoIncrement,
			},
			table: row.TableName,
		}
	}
	return catalog, nil
}

func (r *sqlRepositoryImpl) createCatalogTables(ctx context.Context, db bun.IDB) error {
	for _, model := range []interface{}{(*metaRow)(nil), (*collectionRow)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create catalog table %T: %w", model, err)
		}
	}
	return nil
}

func createRecordTable(ctx context.Context, db bun.IDB, table string, autoIncrement bool) error {
	var model interface{} = (*keyedRecordRow)(nil)
	if autoIncrement {
		model = (*autoRecordRow)(nil)
	}
	_, err := db.NewCreateTable().
		Model(model).
		ModelTableExpr("?", bun.Ident(table)).
		IfNotExists().
		Exec(ctx)
	return err
}

// tableName derives a table name that is a valid identifier on every
// dialect and unique per database and topic.
func tableName(database, topic string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(database))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(topic))

	base := "wdb_" + sanitizeIdent(database) + "_" + sanitizeIdent(topic)
	if len(base) > 48 {
		base = base[:48]
	}
	return fmt.Sprintf("%s_%08x", base, h.Sum32())
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
