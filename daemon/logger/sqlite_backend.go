// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
package logger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// DefaultDatabasePath is used when the sqlite output has no configured path.
const DefaultDatabasePath = "/var/lib/netopt/audit.db"

// SQLiteBackend keeps an audit trail of log entries in a SQLite database,
// one row per entry.
type SQLiteBackend struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// QueryFilter selects entries from the audit database.
type QueryFilter struct {
	Level     string
	Component string
	Limit     int // 0 means no limit
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path == "" {
		path = DefaultDatabasePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &SQLiteBackend{path: path, db: db}
	if err := b.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  TEXT NOT NULL,
			level      TEXT NOT NULL,
			component  TEXT NOT NULL,
			message    TEXT NOT NULL,
			fields     TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
		CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	`
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create logs table: %w", err)
	}
	return nil
}

// Write inserts a log entry
func (b *SQLiteBackend) Write(entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return fmt.Errorf("audit database %s is closed", b.path)
	}
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal log fields: %w", err)
	}

	_, err = b.db.Exec(
		`INSERT INTO logs (timestamp, level, component, message, fields) VALUES (?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.Level, entry.Component, entry.Message, string(fields))
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first.
func (b *SQLiteBackend) Query(filter QueryFilter) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil, fmt.Errorf("audit database %s is closed", b.path)
	}

	query := "SELECT timestamp, level, component, message, fields FROM logs WHERE 1=1"
	args := []interface{}{}
	if filter.Level != "" {
		query += " AND level = ?"
		args = append(args, filter.Level)
	}
	if filter.Component != "" {
		query += " AND component = ?"
		args = append(args, filter.Component)
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var fields sql.NullString
		if err := rows.Scan(&e.Timestamp, &e.Level, &e.Component, &e.Message, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		e.Fields = make(map[string]interface{})
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to decode log fields: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
