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
	"time"

	"github.com/tomoncle/webdb/repository"
	"github.com/tomoncle/webdb/types"
)

// Supported engine types.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineBolt     = "bolt"
)

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors the engine counters returned by the manager.
type DBStats = repository.Stats

// Info describes an open database. It is handed to the success callback.
type Info struct {
	Name         string             `json:"name"`
	Version      int64              `json:"version"`
	Engine       string             `json:"engine"`
	ConnectionID string             `json:"connection_id"`
	Collections  []types.Collection `json:"collections"`
	ConnectedAt  time.Time          `json:"connected_at"`
}

// ConnectionConfig describes how to reach the host engine and tune its pool.
type ConnectionConfig struct {
	Type                string        `json:"type" yaml:"type"` // sqlite, postgres, mysql, bolt
	Dir                 string        `json:"dir" yaml:"dir"`   // data directory of the embedded engines
	Host                string        `json:"host" yaml:"host"`
	Port                int           `json:"port" yaml:"port"`
	Username            string        `json:"username" yaml:"username"`
	Password            string        `json:"password" yaml:"password"`
	DBName              string        `json:"dbname" yaml:"dbname"`
	SSLMode             string        `json:"sslmode" yaml:"sslmode"`
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns        int           `json:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout" yaml:"write_timeout"`
	EnableReconnect     bool          `json:"enable_reconnect" yaml:"enable_reconnect"`
	ReconnectInterval   time.Duration `json:"reconnect_interval" yaml:"reconnect_interval"`
	MaxReconnectTries   int           `json:"max_reconnect_tries" yaml:"max_reconnect_tries"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
	EnableQueryLog      bool          `json:"enable_query_log" yaml:"enable_query_log"`
	SlowQueryTime       time.Duration `json:"slow_query_time" yaml:"slow_query_time"`
}

// IsEmbedded reports whether the engine stores its data in a local file.
func (c *ConnectionConfig) IsEmbedded() bool {
	return c.Type == EngineSQLite || c.Type == EngineBolt
}

// StoreConfig declares a collection. KeyPath defaults to "id" and
// AutoIncrement to true.
type StoreConfig struct {
	Topic         string `json:"topic" yaml:"topic"`
	KeyPath       string `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	AutoIncrement *bool  `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
}

// Collection resolves the descriptor with its defaults applied.
func (s StoreConfig) Collection() types.Collection {
	c := types.Collection{Topic: s.Topic, KeyPath: s.KeyPath, AutoIncrement: true}
	if c.KeyPath == "" {
		c.KeyPath = types.DefaultKeyPath
	}
	if s.AutoIncrement != nil {
		c.AutoIncrement = *s.AutoIncrement
	}
	return c
}

// Config aggregates the database identity, its collections and the
// connection settings.
type Config struct {
	Name        string           `json:"name" yaml:"name"`
	Version     int64            `json:"version" yaml:"version"`
	MinCapacity float64          `json:"min_capacity" yaml:"min_capacity"` // megabytes, 0 means 1024, negative disables the check
	Stores      []StoreConfig    `json:"stores" yaml:"stores"`
	Connection  ConnectionConfig `json:"connection" yaml:"connection"`
}

// Collections returns the resolved descriptors of every configured store.
func (c *Config) Collections() []types.Collection {
	out := make([]types.Collection, 0, len(c.Stores))
	for _, s := range c.Stores {
		out = append(out, s.Collection())
	}
	return out
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                EngineSQLite,
		Dir:                 "./data",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		EnableQueryLog:      false,
		SlowQueryTime:       time.Second * 2,
	}
}

// DefaultConfig returns the configuration of the "default" database.
func DefaultConfig() *Config {
	return &Config{
		Name:        "default",
		Version:     1,
		MinCapacity: 1024,
		Connection:  *DefaultConnectionConfig(),
	}
}
