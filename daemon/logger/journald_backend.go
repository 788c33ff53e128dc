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
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// JournalIdentifier is the syslog identifier entries are tagged with.
const JournalIdentifier = "netopt"

// JournaldBackend writes log entries to systemd journal through systemd-cat
type JournaldBackend struct {
	format string // "json" or "text"
	path   string
	mu     sync.Mutex
}

// NewJournaldBackend creates a new journald backend
// Returns an error if systemd journal is not available
func NewJournaldBackend(format string) (*JournaldBackend, error) {
	path, err := exec.LookPath("systemd-cat")
	if err != nil {
		return nil, fmt.Errorf("systemd-cat not found: %w", err)
	}

	return &JournaldBackend{
		format: format,
		path:   path,
	}, nil
}

// journalPriority maps a level to a syslog priority.
func journalPriority(level string) string {
	switch level {
	case "debug":
		return "7"
	case "warn":
		return "4"
	case "error":
		return "3"
	default:
		return "6"
	}
}

// Write writes a log entry to systemd journal
func (b *JournaldBackend) Write(entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	line, err := entry.Render(b.format)
	if err != nil {
		return err
	}

	cmd := exec.Command(b.path, "-t", JournalIdentifier, "-p", journalPriority(entry.Level))
	cmd.Stdin = strings.NewReader(line)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to write to journal: %w", err)
	}
	return nil
}

// Close closes the journald backend
func (b *JournaldBackend) Close() error {
	// Nothing to close for journald
	return nil
}
