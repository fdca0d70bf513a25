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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file and applies defaults. Environment
// overrides are applied later by the factory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.MinCapacity == 0 {
		c.MinCapacity = def.MinCapacity
	}
	c.Connection.applyDefaults()
}

func (c *ConnectionConfig) applyDefaults() {
	def := DefaultConnectionConfig()
	if c.Type == "" {
		c.Type = def.Type
	}
	switch c.Type {
	case "sqlite3":
		c.Type = EngineSQLite
	case "postgresql":
		c.Type = EnginePostgres
	case "bbolt":
		c.Type = EngineBolt
	}
	if c.Dir == "" {
		c.Dir = def.Dir
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = def.ReconnectInterval
	}
	if c.MaxReconnectTries == 0 {
		c.MaxReconnectTries = def.MaxReconnectTries
	}
	if c.SlowQueryTime == 0 {
		c.SlowQueryTime = def.SlowQueryTime
	}
}

// Validate reports configuration errors. Unknown engine types are not a
// validation error; they surface as ErrUnsupported when connecting.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.Version < 1 {
		return fmt.Errorf("database version must be positive, got %d", c.Version)
	}
	seen := make(map[string]bool, len(c.Stores))
	for _, s := range c.Stores {
		coll := s.Collection()
		if err := coll.Validate(); err != nil {
			return err
		}
		if seen[coll.Topic] {
			return fmt.Errorf("collection %q is declared twice", coll.Topic)
		}
		seen[coll.Topic] = true
	}
	return nil
}

// DataFile returns the path of the embedded engine file for the database.
func (c *Config) DataFile() string {
	ext := ".db"
	if c.Connection.Type == EngineBolt {
		ext = ".bolt"
	}
	return filepath.Join(c.Connection.Dir, c.Name+ext)
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(cfg *Config) {
	if name := os.Getenv("WEBDB_NAME"); name != "" {
		cfg.Name = name
	}
	if version := os.Getenv("WEBDB_VERSION"); version != "" {
		if v, err := strconv.ParseInt(version, 10, 64); err == nil {
			cfg.Version = v
		}
	}
	if minCapacity := os.Getenv("WEBDB_MIN_CAPACITY"); minCapacity != "" {
		if v, err := strconv.ParseFloat(minCapacity, 64); err == nil {
			cfg.MinCapacity = v
		}
	}

	conn := &cfg.Connection
	// Database connection info
	if typ := os.Getenv("DB_TYPE"); typ != "" {
		conn.Type = typ
	}
	if dir := os.Getenv("DB_DIR"); dir != "" {
		conn.Dir = dir
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		conn.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			conn.Port = p
		}
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		conn.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		conn.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		conn.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		conn.SSLMode = sslmode
	}
	// Connection pool config
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			conn.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			conn.MaxOpenConns = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			conn.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}

	// Reconnect config
	if enableReconnect := os.Getenv("DB_ENABLE_RECONNECT"); enableReconnect != "" {
		conn.EnableReconnect = enableReconnect == "true"
	}
	if reconnectInterval := os.Getenv("DB_RECONNECT_INTERVAL"); reconnectInterval != "" {
		if val, err := strconv.Atoi(reconnectInterval); err == nil {
			conn.ReconnectInterval = time.Duration(val) * time.Second
		}
	}

	// Logging config
	if enableQueryLog := os.Getenv("DB_ENABLE_QUERY_LOG"); enableQueryLog != "" {
		conn.EnableQueryLog = enableQueryLog == "true"
	}
}
