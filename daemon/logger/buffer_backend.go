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
	"bytes"
	"sync"
)

// BufferBackend keeps log entries in memory. Tests use it to assert on
// what was logged, rendered or structured.
type BufferBackend struct {
	mu      sync.Mutex
	out     *bytes.Buffer
	format  string
	entries []Entry
}

// NewBufferBackend creates a backend rendering into buffer in format
// ("json" or "text").
func NewBufferBackend(buffer *bytes.Buffer, format string) *BufferBackend {
	return &BufferBackend{out: buffer, format: format}
}

func (b *BufferBackend) Write(entry *Entry) error {
	line, err := entry.Render(b.format)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, *entry)
	b.out.WriteString(line)
	b.out.WriteByte('\n')
	return nil
}

// Entries returns a copy of the entries written so far.
func (b *BufferBackend) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// String returns everything written so far.
func (b *BufferBackend) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.String()
}

func (b *BufferBackend) Close() error {
	return nil
}
