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
	"encoding/json"
	"fmt"

	"github.com/tomoncle/webdb/types"
)

// Service is a typed view over one collection. Values of T are mapped to
// records through their JSON encoding.
type Service[T any] interface {
	// Get returns a single entity by its key, or nil when there is none.
	Get(ctx context.Context, key any) (*T, error)

	// All returns all entities in key order.
	All(ctx context.Context) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[*T], error)

	// Save inserts new entities and returns their keys.
	Save(ctx context.Context, model ...*T) ([]any, error)

	// Update inserts or replaces an entity by its key.
	Update(ctx context.Context, model *T) (any, error)

	// Delete removes an entity by its key.
	Delete(ctx context.Context, key any) error

	Count(ctx context.Context) (int, error)
}

type baseServiceImpl[T any] struct {
	db    *Database
	topic string
}

// NewService returns the Service of topic backed by db.
func NewService[T any](db *Database, topic string) Service[T] {
	return &baseServiceImpl[T]{db: db, topic: topic}
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) ([]any, error) {
	keys := make([]any, 0, len(model))
	for _, m := range model {
		record, err := toRecord(m)
		if err != nil {
			return keys, err
		}
		key, err := s.db.Create(ctx, s.topic, record)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, key any) (*T, error) {
	record, err := s.db.ReadOne(ctx, s.topic, key)
	if err != nil || record == nil {
		return nil, err
	}
	return fromRecord[T](record)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	records, err := s.db.Read(ctx, s.topic)
	if err != nil {
		return nil, err
	}
	return fromRecords[T](records)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[*T], error) {
	p, err := s.db.Page(ctx, s.topic, page)
	if err != nil {
		return nil, err
	}
	items, err := fromRecords[T](p.Items)
	if err != nil {
		return nil, err
	}
	out := types.NewDefaultPagination[*T](p.Page, p.PageSize)
	out.Total = p.Total
	out.Items = items
	return out, nil
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) (any, error) {
	record, err := toRecord(model)
	if err != nil {
		return nil, err
	}
	return s.db.Update(ctx, s.topic, record)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, key any) error {
	return s.db.Delete(ctx, s.topic, key)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context) (int, error) {
	return s.db.Count(ctx, s.topic)
}

func toRecord[T any](model *T) (types.Record, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrData)
	}
	b, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrData, err)
	}
	var record types.Record
	if err := record.UnmarshalBytes(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrData, err)
	}
	return record, nil
}

func fromRecord[T any](record types.Record) (*T, error) {
	b, err := record.MarshalBytes()
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrData, err)
	}
	return out, nil
}

func fromRecords[T any](records []types.Record) ([]*T, error) {
	out := make([]*T, 0, len(records))
	for _, r := range records {
		m, err := fromRecord[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
