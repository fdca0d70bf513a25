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
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/tomoncle/webdb/types"
)

var (
	metaBucket         = []byte("__webdb_meta")
	collectionsBucket  = []byte("__webdb_collections")
	versionKey         = []byte("version")
	recordBucketPrefix = []byte("store/")
)

type boltRepositoryImpl struct {
	db   *bolt.DB
	name string
}

// NewBoltRepository returns a repository keeping every collection in its own
// bucket of the provided bbolt database.
func NewBoltRepository(db *bolt.DB, name string) Repository {
	return &boltRepositoryImpl{db: db, name: name}
}

func (r *boltRepositoryImpl) Engine() string { return "bolt" }

func (r *boltRepositoryImpl) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(func(tx *bolt.Tx) error { return nil })
}

func (r *boltRepositoryImpl) Close() error { return r.db.Close() }

func (r *boltRepositoryImpl) Stats() Stats {
	s := r.db.Stats()
	return Stats{
		Engine:      r.Engine(),
		OpenConns:   1,
		TxCount:     s.TxN,
		OpenTxCount: s.OpenTxN,
	}
}

func (r *boltRepositoryImpl) Add(ctx context.Context, topic string, record types.Record) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var key interface{}
	err := r.db.Update(func(tx *bolt.Tx) error {
		c, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		value, err := record.Without(c.KeyPath).MarshalBytes()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrData, err)
		}
		if c.AutoIncrement {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			key = int64(seq)
			return b.Put(itob(seq), value)
		}

		k, err := c.KeyOf(record)
		if err != nil {
			return err
		}
		encoded, err := types.EncodeKey(k)
		if err != nil {
			return err
		}
		if b.Get([]byte(encoded)) != nil {
			return keyExists(topic, k)
		}
		key = k
		return b.Put([]byte(encoded), value)
	})
	if err != nil {
		return nil, classify(err)
	}
	return key, nil
}

func (r *boltRepositoryImpl) Put(ctx context.Context, topic string, record types.Record) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var key interface{}
	err := r.db.Update(func(tx *bolt.Tx) error {
		c, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		k, err := c.KeyOf(record)
		if err != nil {
			return err
		}
		value, err := record.Without(c.KeyPath).MarshalBytes()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrData, err)
		}
		raw, err := encodeBoltKey(c, k)
		if err != nil {
			return err
		}
		if c.AutoIncrement {
			if seq := uint64(k.(int64)); seq > b.Sequence() {
				if err := b.SetSequence(seq); err != nil {
					return err
				}
			}
		}
		key = k
		return b.Put(raw, value)
	})
	if err != nil {
		return nil, classify(err)
	}
	return key, nil
}

func (r *boltRepositoryImpl) Get(ctx context.Context, topic string, key interface{}) (types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record types.Record
	err := r.db.View(func(tx *bolt.Tx) error {
		c, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		raw, err := lookupBoltKey(c, key)
		if err != nil {
			return err
		}
		v := b.Get(raw)
		if v == nil {
			return nil
		}
		record, err = decodeBoltRecord(c, raw, v)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return record, nil
}

func (r *boltRepositoryImpl) GetAll(ctx context.Context, topic string) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := make([]types.Record, 0)
	err := r.db.View(func(tx *bolt.Tx) error {
		c, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			rec, err := decodeBoltRecord(c, k, v)
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}

func (r *boltRepositoryImpl) Page(ctx context.Context, topic string, page *types.PageRequest) (*types.Pagination[types.Record], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[types.Record](page.GetPage(), page.GetPageSize())
	err := r.db.View(func(tx *bolt.Tx) error {
		c, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		total := b.Stats().KeyN
		pagination.Total = total
		start, end := page.Window(total)

		cur := b.Cursor()
		first, next := cur.First, cur.Next
		if page.IsDescending() {
			first, next = cur.Last, cur.Prev
		}
		i := 0
		for k, v := first(); k != nil && i < end; k, v = next() {
			if i >= start {
				rec, err := decodeBoltRecord(c, k, v)
				if err != nil {
					return err
				}
				pagination.Items = append(pagination.Items, rec)
			}
			i++
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return pagination, nil
}

func (r *boltRepositoryImpl) Count(ctx context.Context, topic string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := r.db.View(func(tx *bolt.Tx) error {
		_, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, classify(err)
}

func (r *boltRepositoryImpl) Delete(ctx context.Context, topic string, key interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(r.db.Update(func(tx *bolt.Tx) error {
		c, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		raw, err := lookupBoltKey(c, key)
		if err != nil {
			return err
		}
		return b.Delete(raw)
	}))
}

// Clear empties the collection but keeps its key generator.
func (r *boltRepositoryImpl) Clear(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(r.db.Update(func(tx *bolt.Tx) error {
		_, b, err := r.bucket(tx, topic)
		if err != nil {
			return err
		}
		seq := b.Sequence()
		name := recordBucketName(topic)
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
		nb, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		return nb.SetSequence(seq)
	}))
}

func (r *boltRepositoryImpl) Version(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var version int64
	err := r.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return nil
		}
		if v := meta.Get(versionKey); len(v) == 8 {
			version = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return version, classify(err)
}

func (r *boltRepositoryImpl) Collections(ctx context.Context) ([]types.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]types.Collection, 0)
	err := r.db.View(func(tx *bolt.Tx) error {
		catalog := tx.Bucket(collectionsBucket)
		if catalog == nil {
			return nil
		}
		return catalog.ForEach(func(_, v []byte) error {
			var c types.Collection
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, classify(err)
	}
	sortCollections(out)
	return out, nil
}

func (r *boltRepositoryImpl) Upgrade(ctx context.Context, version int64, collections []types.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(r.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		catalog, err := tx.CreateBucketIfNotExists(collectionsBucket)
		if err != nil {
			return err
		}
		for _, c := range collections {
			if catalog.Get([]byte(c.Topic)) != nil {
				continue
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("%w: %w", ErrData, err)
			}
			if _, err := tx.CreateBucketIfNotExists(recordBucketName(c.Topic)); err != nil {
				return fmt.Errorf("failed to create collection %q: %w", c.Topic, err)
			}
			desc, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := catalog.Put([]byte(c.Topic), desc); err != nil {
				return err
			}
		}
		return meta.Put(versionKey, itob(uint64(version)))
	}))
}

func (r *boltRepositoryImpl) bucket(tx *bolt.Tx, topic string) (types.Collection, *bolt.Bucket, error) {
	var c types.Collection
	catalog := tx.Bucket(collectionsBucket)
	if catalog == nil {
		return c, nil, collectionNotFound(topic)
	}
	desc := catalog.Get([]byte(topic))
	if desc == nil {
		return c, nil, collectionNotFound(topic)
	}
	if err := json.Unmarshal(desc, &c); err != nil {
		return c, nil, err
	}
	b := tx.Bucket(recordBucketName(topic))
	if b == nil {
		return c, nil, collectionNotFound(topic)
	}
	return c, b, nil
}

func recordBucketName(topic string) []byte {
	return append(bytes.Clone(recordBucketPrefix), topic...)
}

func encodeBoltKey(c types.Collection, key interface{}) ([]byte, error) {
	if c.AutoIncrement {
		return itob(uint64(key.(int64))), nil
	}
	encoded, err := types.EncodeKey(key)
	if err != nil {
		return nil, err
	}
	return []byte(encoded), nil
}

func lookupBoltKey(c types.Collection, key interface{}) ([]byte, error) {
	if c.AutoIncrement {
		k, err := types.IntegerKey(key)
		if err != nil {
			return nil, err
		}
		return itob(uint64(k)), nil
	}
	return encodeBoltKey(c, key)
}

func decodeBoltRecord(c types.Collection, k, v []byte) (types.Record, error) {
	var rec types.Record
	if err := rec.UnmarshalBytes(v); err != nil {
		return nil, err
	}
	if c.AutoIncrement {
		return rec.With(c.KeyPath, int64(binary.BigEndian.Uint64(k))), nil
	}
	key, err := types.DecodeKey(string(k))
	if err != nil {
		return nil, err
	}
	return rec.With(c.KeyPath, key), nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
