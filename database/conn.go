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
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	bolt "go.etcd.io/bbolt"

	"github.com/tomoncle/webdb/repository"
)

// SupportedEngines lists the engine types the manager can open.
func SupportedEngines() []string {
	return []string{EngineSQLite, EnginePostgres, EngineMySQL, EngineBolt}
}

// IsSupportedEngine reports whether typ names a supported engine.
func IsSupportedEngine(typ string) bool {
	for _, t := range SupportedEngines() {
		if t == typ {
			return true
		}
	}
	return false
}

// openEngine opens the host engine described by cfg without touching it.
func openEngine(cfg *Config, logger Logger) (repository.Repository, error) {
	conn := &cfg.Connection
	if conn.Type == EngineBolt {
		return openBolt(cfg)
	}

	var (
		sqlDB *sql.DB
		db    *bun.DB
		err   error
	)
	switch conn.Type {
	case EngineMySQL:
		sqlDB, db, err = createMySQLConnection(conn)
	case EnginePostgres:
		sqlDB, db, err = createPostgreSQLConnection(conn)
	case EngineSQLite:
		sqlDB, db, err = createSQLiteConnection(cfg)
	default:
		return nil, fmt.Errorf("%w: database type %q, supported types: %v", ErrUnsupported, conn.Type, SupportedEngines())
	}
	if err != nil {
		return nil, err
	}

	configureConnectionPool(sqlDB, conn)

	if conn.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	db.AddQueryHook(NewQueryHook(false, false, os.Stderr))
	if conn.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: conn.SlowQueryTime, logger: logger})
	}
	return repository.NewSQLRepository(db, cfg.Name), nil
}

func createMySQLConnection(conn *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		conn.Username,
		conn.Password,
		conn.Host,
		conn.Port,
		conn.DBName,
		conn.ConnectTimeout,
		conn.ReadTimeout,
		conn.WriteTimeout,
	)

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func createPostgreSQLConnection(conn *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		conn.Username,
		conn.Password,
		conn.Host,
		conn.Port,
		conn.DBName,
		sslMode,
		int(conn.ConnectTimeout.Seconds()),
	)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func createSQLiteConnection(cfg *Config) (*sql.DB, *bun.DB, error) {
	if err := os.MkdirAll(cfg.Connection.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	sqlDB, err := sql.Open(sqliteshim.ShimName, cfg.DataFile())
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func configureConnectionPool(sqlDB *sql.DB, conn *ConnectionConfig) {
	if conn.Type == EngineSQLite {
		// sqlite accepts a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(conn.MaxIdleConns)
		sqlDB.SetMaxOpenConns(conn.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(conn.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(conn.ConnMaxIdleTime)
}

func openBolt(cfg *Config) (repository.Repository, error) {
	if err := os.MkdirAll(cfg.Connection.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	timeout := cfg.Connection.ConnectTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.DataFile(), 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return repository.NewBoltRepository(db, cfg.Name), nil
}
