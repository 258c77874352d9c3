// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the Bun-backed implementation of the Store interface,
// shared by all supported SQL dialects.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/veidt/sshforge/internal/model"
)

// ErrDuplicate is returned when inserting an entity that already exists.
var ErrDuplicate = errors.New("db: duplicate entry")

// HostModel maps the `hosts` table.
type HostModel struct {
	bun.BaseModel `bun:"table:hosts"`
	ID            int            `bun:"id,pk,autoincrement"`
	Username      string         `bun:"username,notnull"`
	Hostname      string         `bun:"hostname,notnull"`
	Port          int            `bun:"port,notnull,default:22"`
	Label         sql.NullString `bun:"label"`
	Tags          sql.NullString `bun:"tags"`
	IsActive      bool           `bun:"is_active,notnull,default:true"`
}

// HostKeyModel maps the `host_keys` table of pinned host public keys.
type HostKeyModel struct {
	bun.BaseModel `bun:"table:host_keys"`
	ID            int    `bun:"id,pk,autoincrement"`
	Hostname      string `bun:"hostname,notnull,unique"`
	Algorithm     string `bun:"algorithm,notnull"`
	KeyData       string `bun:"key_data,notnull"`
}

// CheckResultModel maps the `check_results` history table.
type CheckResultModel struct {
	bun.BaseModel `bun:"table:check_results"`
	ID            int       `bun:"id,pk,autoincrement"`
	HostID        int       `bun:"host_id,notnull"`
	CheckedAt     time.Time `bun:"checked_at,notnull"`
	Reachable     bool      `bun:"reachable,notnull"`
	Banner        string    `bun:"banner"`
	AuthOK        bool      `bun:"auth_ok,notnull"`
	LatencyMS     int64     `bun:"latency_ms"`
	Detail        string    `bun:"detail"`
}

// AuditLogModel maps the `audit_log` table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp,notnull"`
	Action        string `bun:"action,notnull"`
	Details       string `bun:"details"`
}

// BunStore implements Store on top of a bun.DB for any supported dialect.
type BunStore struct {
	db  *sql.DB
	bun *bun.DB
}

// createSchema creates all tables when they do not exist yet.
func (s *BunStore) createSchema() error {
	ctx := context.Background()
	models := []any{
		(*HostModel)(nil),
		(*HostKeyModel)(nil),
		(*CheckResultModel)(nil),
		(*AuditLogModel)(nil),
	}
	for _, m := range models {
		if _, err := s.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *BunStore) Close() error {
	return s.db.Close()
}

// AddHost inserts a new inventory host. Adding the same user@host:port
// twice returns ErrDuplicate.
func (s *BunStore) AddHost(username, hostname string, port int, label, tags string) (int, error) {
	ctx := context.Background()
	if port == 0 {
		port = 22
	}

	existing, err := s.FindHost(username, hostname, port)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrDuplicate
	}

	m := &HostModel{
		Username: username,
		Hostname: hostname,
		Port:     port,
		Label:    sql.NullString{String: label, Valid: label != ""},
		Tags:     sql.NullString{String: tags, Valid: tags != ""},
		IsActive: true,
	}
	if _, err := s.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to insert host: %w", err)
	}
	_ = s.LogAction("ADD_HOST", fmt.Sprintf("host: %s@%s:%d", username, hostname, port))
	return m.ID, nil
}

// GetAllHosts retrieves every inventory host ordered by hostname.
func (s *BunStore) GetAllHosts() ([]model.Host, error) {
	ctx := context.Background()
	var rows []HostModel
	if err := s.bun.NewSelect().Model(&rows).Order("hostname ASC", "username ASC").Scan(ctx); err != nil {
		return nil, err
	}
	hosts := make([]model.Host, 0, len(rows))
	for _, r := range rows {
		hosts = append(hosts, hostModelToModel(r))
	}
	return hosts, nil
}

// GetAllActiveHosts retrieves the hosts eligible for fleet-wide operations.
func (s *BunStore) GetAllActiveHosts() ([]model.Host, error) {
	ctx := context.Background()
	var rows []HostModel
	err := s.bun.NewSelect().Model(&rows).
		Where("is_active = ?", true).
		Order("hostname ASC", "username ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	hosts := make([]model.Host, 0, len(rows))
	for _, r := range rows {
		hosts = append(hosts, hostModelToModel(r))
	}
	return hosts, nil
}

// FindHost looks up a host by its identity triple. It returns (nil, nil)
// when no such host exists.
func (s *BunStore) FindHost(username, hostname string, port int) (*model.Host, error) {
	ctx := context.Background()
	if port == 0 {
		port = 22
	}
	var row HostModel
	err := s.bun.NewSelect().Model(&row).
		Where("username = ?", username).
		Where("hostname = ?", hostname).
		Where("port = ?", port).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	h := hostModelToModel(row)
	return &h, nil
}

// DeleteHost removes a host by ID.
func (s *BunStore) DeleteHost(id int) error {
	ctx := context.Background()

	var row HostModel
	details := fmt.Sprintf("id: %d", id)
	if err := s.bun.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx); err == nil {
		details = fmt.Sprintf("host: %s@%s:%d", row.Username, row.Hostname, row.Port)
	}

	if _, err := s.bun.NewDelete().Model((*HostModel)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return err
	}
	_ = s.LogAction("DELETE_HOST", details)
	return nil
}

// SetHostActive flips whether a host participates in fleet-wide operations.
func (s *BunStore) SetHostActive(id int, active bool) error {
	ctx := context.Background()
	_, err := s.bun.NewUpdate().Model((*HostModel)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// GetHostKey returns the pinned key for a hostname, or nil when the host
// has never been trusted.
func (s *BunStore) GetHostKey(hostname string) (*model.HostKey, error) {
	ctx := context.Background()
	var row HostKeyModel
	err := s.bun.NewSelect().Model(&row).Where("hostname = ?", hostname).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &model.HostKey{
		ID:        row.ID,
		Hostname:  row.Hostname,
		Algorithm: row.Algorithm,
		KeyData:   row.KeyData,
	}, nil
}

// PinHostKey stores (or replaces) the trusted public key for a hostname.
func (s *BunStore) PinHostKey(hostname, key string) error {
	ctx := context.Background()

	algorithm := ""
	if fields := strings.Fields(key); len(fields) > 0 {
		algorithm = fields[0]
	}

	// Replace any previous pin; a host has exactly one trusted key.
	if _, err := s.bun.NewDelete().Model((*HostKeyModel)(nil)).Where("hostname = ?", hostname).Exec(ctx); err != nil {
		return err
	}
	m := &HostKeyModel{Hostname: hostname, Algorithm: algorithm, KeyData: key}
	if _, err := s.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("failed to pin host key: %w", err)
	}
	_ = s.LogAction("PIN_HOST_KEY", fmt.Sprintf("host: %s, algorithm: %s", hostname, algorithm))
	return nil
}

// AddCheckResult appends a connectivity check outcome to the history.
func (s *BunStore) AddCheckResult(r model.CheckResult) error {
	ctx := context.Background()
	checkedAt := r.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}
	m := &CheckResultModel{
		HostID:    r.HostID,
		CheckedAt: checkedAt,
		Reachable: r.Reachable,
		Banner:    r.Banner,
		AuthOK:    r.AuthOK,
		LatencyMS: r.LatencyMS,
		Detail:    r.Detail,
	}
	_, err := s.bun.NewInsert().Model(m).Exec(ctx)
	return err
}

// RecentCheckResults returns the newest check results for a host.
func (s *BunStore) RecentCheckResults(hostID, limit int) ([]model.CheckResult, error) {
	ctx := context.Background()
	if limit <= 0 {
		limit = 20
	}
	var rows []CheckResultModel
	err := s.bun.NewSelect().Model(&rows).
		Where("host_id = ?", hostID).
		Order("checked_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]model.CheckResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, model.CheckResult{
			ID:        r.ID,
			HostID:    r.HostID,
			CheckedAt: r.CheckedAt,
			Reachable: r.Reachable,
			Banner:    r.Banner,
			AuthOK:    r.AuthOK,
			LatencyMS: r.LatencyMS,
			Detail:    r.Detail,
		})
	}
	return results, nil
}

// LogAction writes an audit entry with the current timestamp.
func (s *BunStore) LogAction(action, details string) error {
	ctx := context.Background()
	m := &AuditLogModel{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Action:    action,
		Details:   details,
	}
	_, err := s.bun.NewInsert().Model(m).Exec(ctx)
	return err
}

// AuditLog returns the newest audit entries.
func (s *BunStore) AuditLog(limit int) ([]model.AuditEntry, error) {
	ctx := context.Background()
	if limit <= 0 {
		limit = 50
	}
	var rows []AuditLogModel
	err := s.bun.NewSelect().Model(&rows).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]model.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, model.AuditEntry{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			Action:    r.Action,
			Details:   r.Details,
		})
	}
	return entries, nil
}

// hostModelToModel converts a table row to the domain type.
func hostModelToModel(r HostModel) model.Host {
	return model.Host{
		ID:       r.ID,
		Username: r.Username,
		Hostname: r.Hostname,
		Port:     r.Port,
		Label:    r.Label.String,
		Tags:     r.Tags.String,
		IsActive: r.IsActive,
	}
}
