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
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// ConsoleBackend writes log entries to a terminal through hclog. It is
// used when the daemon runs in the foreground.
type ConsoleBackend struct {
	hl hclog.Logger
}

// NewConsoleBackend creates a console backend writing to w, or to stderr
// when w is nil. Level filtering is left to the logger.
func NewConsoleBackend(w io.Writer, format string) *ConsoleBackend {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleBackend{
		hl: hclog.New(&hclog.LoggerOptions{
			Name:       JournalIdentifier,
			Level:      hclog.Trace,
			Output:     w,
			JSONFormat: format == "json",
		}),
	}
}

// Write writes a log entry through hclog
func (b *ConsoleBackend) Write(entry *Entry) error {
	args := make([]interface{}, 0, 2*len(entry.Fields)+2)
	if entry.Component != "" {
		args = append(args, "component", entry.Component)
	}
	for _, k := range entry.FieldKeys() {
		args = append(args, k, entry.Fields[k])
	}

	switch entry.Level {
	case "debug":
		b.hl.Debug(entry.Message, args...)
	case "warn":
		b.hl.Warn(entry.Message, args...)
	case "error":
		b.hl.Error(entry.Message, args...)
	default:
		b.hl.Info(entry.Message, args...)
	}
	return nil
}

// Close is a no-op for the console backend
func (b *ConsoleBackend) Close() error {
	return nil
}
