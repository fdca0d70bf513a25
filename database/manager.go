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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/tomoncle/webdb/capacity"
	"github.com/tomoncle/webdb/repository"
)

// AbstractDatabaseManager defines the operations for owning a database
// connection and reporting its health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Acquire(ctx context.Context) (repository.Repository, func(), error)
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	CheckCapacity(ctx context.Context) (capacity.Report, error)
	GetStats() *DBStats
	Info() (Info, bool)
	SetLogger(logger Logger)
	Close() error
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEstimator replaces the storage estimator used by the capacity check.
// Server engines are only checked when an estimator is given.
func WithEstimator(e capacity.Estimator) ManagerOption {
	return func(m *Manager) { m.estimator = e }
}

// WithOnSuccess registers a callback invoked each time a connection opens.
func WithOnSuccess(fn func(Info)) ManagerOption {
	return func(m *Manager) { m.onSuccess = fn }
}

// WithOnError registers a callback invoked each time opening a connection
// fails.
func WithOnError(fn func(error)) ManagerOption {
	return func(m *Manager) { m.onError = fn }
}

// Manager owns at most one open engine handle. The handle is opened on first
// use and shared by every operation until Disconnect or Close.
type Manager struct {
	config    *Config
	logger    Logger
	estimator capacity.Estimator
	onSuccess func(Info)
	onError   func(error)

	mu              sync.RWMutex
	repo            repository.Repository
	info            Info
	closed          bool
	lastError       error
	lastHealthCheck time.Time
	healthStatus    *HealthStatus

	healthCheckOnce sync.Once
	closeOnce       sync.Once
	bgCtx           context.Context
	bgCancel        context.CancelFunc
	bgWG            sync.WaitGroup
}

var _ AbstractDatabaseManager = (*Manager)(nil)

// NewDatabaseManager returns a Manager for config. If config is nil, the
// default configuration is used. Nothing is opened until the first Connect
// or Acquire.
func NewDatabaseManager(config *Config, opts ...ManagerOption) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	config.ApplyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:       config,
		logger:       GetLogger(),
		healthStatus: &HealthStatus{},
		bgCtx:        ctx,
		bgCancel:     cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the configuration of the manager.
func (m *Manager) Config() *Config {
	return m.config
}

func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	info, opened, err := m.connectLocked(ctx)
	m.mu.Unlock()

	if err != nil {
		if m.onError != nil {
			m.onError(err)
		}
		return err
	}
	if opened && m.onSuccess != nil {
		m.onSuccess(info)
	}
	return nil
}

func (m *Manager) connectLocked(ctx context.Context) (Info, bool, error) {
	if m.closed {
		return Info{}, false, ErrClosed
	}
	if m.repo != nil {
		return m.info, false, nil
	}

	repo, info, err := m.open(ctx)
	if err != nil {
		m.lastError = err
		m.logger.Error("Failed to open database", "name", m.config.Name, "type", m.config.Connection.Type, "error", err)
		return Info{}, false, err
	}
	m.repo = repo
	m.info = info
	m.lastError = nil

	if m.config.Connection.HealthCheckInterval > 0 {
		m.startHealthCheck()
	}
	m.logger.Info("Database connected successfully",
		"name", info.Name, "version", info.Version, "engine", info.Engine, "connection_id", info.ConnectionID)
	return info, true, nil
}

func (m *Manager) open(ctx context.Context) (repository.Repository, Info, error) {
	conn := &m.config.Connection
	if !IsSupportedEngine(conn.Type) {
		return nil, Info{}, fmt.Errorf("%w: database type %q, supported types: %v", ErrUnsupported, conn.Type, SupportedEngines())
	}
	if err := m.preCheckCapacity(ctx); err != nil {
		return nil, Info{}, err
	}

	repo, err := openEngine(m.config, m.logger)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to create database connection: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, conn.ConnectTimeout)
	defer cancel()
	if err := repo.Ping(ctxTimeout); err != nil {
		_ = repo.Close()
		return nil, Info{}, fmt.Errorf("database connection test failed: %w", err)
	}

	catalog, err := NewUpgradeManager(repo, m.logger).Run(ctx, m.config.Version, m.config.Collections())
	if err != nil {
		_ = repo.Close()
		return nil, Info{}, err
	}

	return repo, Info{
		Name:         m.config.Name,
		Version:      m.config.Version,
		Engine:       repo.Engine(),
		ConnectionID: uuid.NewString(),
		Collections:  catalog,
		ConnectedAt:  time.Now(),
	}, nil
}

// preCheckCapacity runs before anything is opened. A non-positive minimum
// capacity disables it, as does a server engine without an explicit
// estimator.
func (m *Manager) preCheckCapacity(ctx context.Context) error {
	if m.config.MinCapacity <= 0 {
		return nil
	}
	if m.estimator == nil && !m.config.Connection.IsEmbedded() {
		m.logger.Debug("Skipping capacity check, no estimator for server engine", "type", m.config.Connection.Type)
		return nil
	}
	report, err := m.CheckCapacity(ctx)
	if err != nil {
		return err
	}
	if !report.IsCapable {
		return &CapacityError{Report: report}
	}
	return nil
}

// CheckCapacity compares the free space of the host with the configured
// minimum. Embedded engines are measured on their data directory.
func (m *Manager) CheckCapacity(ctx context.Context) (capacity.Report, error) {
	estimator := m.estimator
	if estimator == nil {
		if !m.config.Connection.IsEmbedded() {
			return capacity.Report{}, fmt.Errorf("%w: no storage estimator for %s", ErrUnsupported, m.config.Connection.Type)
		}
		estimator = capacity.DiskEstimator{Path: m.config.Connection.Dir}
	}
	minCapacity := m.config.MinCapacity
	if minCapacity < 0 {
		minCapacity = 0
	}
	return capacity.Check(ctx, estimator, minCapacity)
}

// Acquire returns the open repository, connecting first when needed, and a
// release function that must be called once the operation is done. The
// handle cannot be closed between Acquire and release.
func (m *Manager) Acquire(ctx context.Context) (repository.Repository, func(), error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		m.mu.RLock()
		if m.repo != nil {
			return m.repo, m.mu.RUnlock, nil
		}
		closed := m.closed
		m.mu.RUnlock()

		if closed {
			return nil, nil, ErrClosed
		}
		if err := m.Connect(ctx); err != nil {
			return nil, nil, err
		}
	}
}

// Disconnect closes the open handle. The next Acquire opens a new one.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectLocked()
}

func (m *Manager) disconnectLocked() error {
	if m.repo == nil {
		return nil
	}
	err := m.repo.Close()
	m.repo = nil
	m.info = Info{}
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
	} else {
		m.logger.Info("Database connection closed", "name", m.config.Name)
	}
	return err
}

// Close disconnects and rejects every later operation with ErrClosed.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.bgCancel()
		m.bgWG.Wait()

		m.mu.Lock()
		defer m.mu.Unlock()
		m.closed = true
		err = m.disconnectLocked()
	})
	return err
}

// Reconnect replaces the handle, retrying with a Fibonacci backoff up to
// MaxReconnectTries times.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.logger.Info("Attempting to reconnect to the database")

	tries := m.config.Connection.MaxReconnectTries
	if tries < 0 {
		tries = 0
	}
	b := retry.NewFibonacci(m.config.Connection.ReconnectInterval)
	attempt := 0
	return retry.Do(ctx, retry.WithMaxRetries(uint64(tries), b), func(ctx context.Context) error {
		attempt++
		if err := m.Disconnect(); err != nil {
			m.logger.Warn("Error disconnecting existing connection", "error", err)
		}
		if err := m.Connect(ctx); err != nil {
			if isPermanent(err) {
				return err
			}
			m.logger.Warn("Reconnect failed", "error", err, "try", attempt)
			return retry.RetryableError(err)
		}
		m.logger.Info("Reconnect succeeded", "try", attempt)
		return nil
	})
}

// isPermanent reports errors a new connection attempt cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrVersion) ||
		errors.Is(err, ErrInsufficientCapacity)
}

func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.repo == nil {
		return fmt.Errorf("database not connected")
	}
	return m.repo.Ping(ctx)
}

func (m *Manager) HealthCheck(ctx context.Context) *HealthStatus {
	m.mu.RLock()
	repo := m.repo
	start := time.Now()
	status := &HealthStatus{
		LastCheckTime: start,
		Connected:     repo != nil,
	}
	if repo == nil {
		m.mu.RUnlock()
		status.LastError = "Database not initialized"
		m.recordHealth(status, nil)
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second*5)
	err := repo.Ping(ctxTimeout)
	cancel()
	status.ResponseTime = time.Since(start)
	stats := repo.Stats()
	m.mu.RUnlock()

	if err != nil {
		status.Connected = false
		status.LastError = err.Error()
	} else {
		status.Healthy = true
	}
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConns

	m.recordHealth(status, err)
	return status
}

func (m *Manager) recordHealth(status *HealthStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
	m.lastHealthCheck = status.LastCheckTime
	if err != nil {
		m.lastError = err
	}
}

func (m *Manager) startHealthCheck() {
	m.healthCheckOnce.Do(func() {
		m.bgWG.Add(1)
		go func() {
			defer m.bgWG.Done()
			ticker := time.NewTicker(m.config.Connection.HealthCheckInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(m.bgCtx, time.Second*10)
					status := m.HealthCheck(ctx)
					cancel()
					if _, held := m.Info(); held && !status.Healthy && m.config.Connection.EnableReconnect {
						m.handleReconnect()
					}
				case <-m.bgCtx.Done():
					return
				}
			}
		}()
	})
}

func (m *Manager) handleReconnect() {
	ctx, cancel := context.WithTimeout(m.bgCtx, m.config.Connection.ConnectTimeout*time.Duration(m.config.Connection.MaxReconnectTries+1))
	defer cancel()
	if err := m.Reconnect(ctx); err != nil {
		m.logger.Error("Max reconnect attempts reached, stopping", "error", err)
	}
}

func (m *Manager) GetStats() *DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.repo == nil {
		return &DBStats{Engine: m.config.Connection.Type}
	}
	stats := m.repo.Stats()
	return &stats
}

// Info describes the open database. The flag is false while disconnected.
func (m *Manager) Info() (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info, m.repo != nil
}

// LastError returns the error of the last failed connect or health check.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

func (m *Manager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger != nil {
		m.logger = logger
	}
}
