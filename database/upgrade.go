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
	"fmt"

	"github.com/tomoncle/webdb/repository"
	"github.com/tomoncle/webdb/types"
)

// UpgradeManager negotiates the stored database version with the requested
// one and creates the declared collections on a version bump.
type UpgradeManager struct {
	repo   repository.SchemaRepository
	logger Logger
}

func NewUpgradeManager(repo repository.SchemaRepository, logger Logger) *UpgradeManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &UpgradeManager{repo: repo, logger: logger}
}

// Run brings the database to version and returns the resulting catalog.
//
// A stored version lower than the requested one (0 for a new database)
// creates every declared collection missing from the catalog and records the
// new version in one transaction. A higher stored version fails with
// ErrVersion. At an unchanged version nothing is created and missing
// collections are only reported.
func (um *UpgradeManager) Run(ctx context.Context, version int64, declared []types.Collection) ([]types.Collection, error) {
	stored, err := um.repo.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database version: %w", err)
	}

	switch {
	case stored > version:
		return nil, fmt.Errorf("%w: stored %d, requested %d", ErrVersion, stored, version)
	case stored < version:
		if len(declared) == 0 {
			um.logger.Warn("No object stores found!")
		}
		um.logger.Info("Upgrading database", "from", stored, "to", version, "stores", len(declared))
		if err := um.repo.Upgrade(ctx, version, declared); err != nil {
			return nil, fmt.Errorf("failed to upgrade database to version %d: %w", version, err)
		}
	}

	catalog, err := um.repo.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", err)
	}
	if stored == version {
		um.reportMissing(declared, catalog)
	}
	return catalog, nil
}

func (um *UpgradeManager) reportMissing(declared, catalog []types.Collection) {
	if len(declared) == 0 && len(catalog) == 0 {
		um.logger.Warn("No object stores found!")
		return
	}
	existing := make(map[string]types.Collection, len(catalog))
	for _, c := range catalog {
		existing[c.Topic] = c
	}
	for _, c := range declared {
		got, ok := existing[c.Topic]
		if !ok {
			um.logger.Warn("Object store is not created, bump the version to create it", "topic", c.Topic)
			continue
		}
		if got.KeyPath != c.KeyPath || got.AutoIncrement != c.AutoIncrement {
			um.logger.Warn("Object store differs from its declaration, the stored one is used",
				"topic", c.Topic, "key_path", got.KeyPath, "auto_increment", got.AutoIncrement)
		}
	}
}
