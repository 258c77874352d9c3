// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for sshforge. It abstracts the
// underlying database (SQLite, PostgreSQL or MySQL) behind a consistent
// Store interface so the rest of the application can interact with the
// inventory in a uniform way.
package db // import "github.com/veidt/sshforge/internal/db"

import (
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/veidt/sshforge/internal/model"

	// SQL drivers required at runtime and in tests.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store is the interface all database backends implement.
type Store interface {
	// Inventory.
	AddHost(username, hostname string, port int, label, tags string) (int, error)
	GetAllHosts() ([]model.Host, error)
	GetAllActiveHosts() ([]model.Host, error)
	FindHost(username, hostname string, port int) (*model.Host, error)
	DeleteHost(id int) error
	SetHostActive(id int, active bool) error

	// Pinned host keys.
	GetHostKey(hostname string) (*model.HostKey, error)
	PinHostKey(hostname, key string) error

	// Check history.
	AddCheckResult(r model.CheckResult) error
	RecentCheckResults(hostID, limit int) ([]model.CheckResult, error)

	// Audit log.
	LogAction(action, details string) error
	AuditLog(limit int) ([]model.AuditEntry, error)

	Close() error
}

// store is the package-level active store.
var store Store

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

// InitDB initializes the database connection based on the provided type and
// DSN, sets the package-level store and creates any missing tables.
func InitDB(dbType, dsn string) error {
	s, err := NewStoreFromDSN(dbType, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	store = s
	return nil
}

// IsInitialized reports whether the package-level store has been set.
func IsInitialized() bool {
	return store != nil
}

// SetStore overrides the package-level store. Intended for tests.
func SetStore(s Store) {
	store = s
}

// NewStoreFromDSN opens a database connection for the given backend type
// and returns a ready Store with the schema in place.
func NewStoreFromDSN(dbType, dsn string) (Store, error) {
	var sqlDB *sql.DB
	var bdb *bun.DB
	var err error

	switch dbType {
	case "sqlite":
		sqlDB, err = sqlOpenFunc("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// modernc.org/sqlite serializes access through a single connection.
		sqlDB.SetMaxOpenConns(1)
		bdb = bun.NewDB(sqlDB, sqlitedialect.New())
	case "postgres":
		sqlDB, err = sqlOpenFunc("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		bdb = bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		sqlDB, err = sqlOpenFunc("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql database: %w", err)
		}
		bdb = bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return nil, fmt.Errorf("unsupported database type: %q", dbType)
	}

	s := &BunStore{db: sqlDB, bun: bdb}
	if err := s.createSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// The helpers below delegate to the package-level store, mirroring how the
// CLI consumes the data layer.

func AddHost(username, hostname string, port int, label, tags string) (int, error) {
	return store.AddHost(username, hostname, port, label, tags)
}

func GetAllHosts() ([]model.Host, error) { return store.GetAllHosts() }

func GetAllActiveHosts() ([]model.Host, error) { return store.GetAllActiveHosts() }

func FindHost(username, hostname string, port int) (*model.Host, error) {
	return store.FindHost(username, hostname, port)
}

func DeleteHost(id int) error { return store.DeleteHost(id) }

func SetHostActive(id int, active bool) error { return store.SetHostActive(id, active) }

func GetHostKey(hostname string) (*model.HostKey, error) { return store.GetHostKey(hostname) }

func PinHostKey(hostname, key string) error { return store.PinHostKey(hostname, key) }

func AddCheckResult(r model.CheckResult) error { return store.AddCheckResult(r) }

func RecentCheckResults(hostID, limit int) ([]model.CheckResult, error) {
	return store.RecentCheckResults(hostID, limit)
}

// LogAction records an audit entry. It is safe to call before InitDB; the
// entry is silently dropped when no store is configured.
func LogAction(action, details string) error {
	if store == nil {
		return nil
	}
	return store.LogAction(action, details)
}

func AuditLog(limit int) ([]model.AuditEntry, error) { return store.AuditLog(limit) }
