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
	"io"
)

// Output names accepted in Config.Outputs
const (
	OutputJournald = "journald"
	OutputFile     = "file"
	OutputConsole  = "console"
	OutputSQLite   = "sqlite"
)

// NewBackends opens the backends named in cfg.Outputs. Outputs that cannot
// be opened are returned as errors and skipped. When nothing could be
// opened, a console backend on console is used so entries are never lost.
func NewBackends(cfg Config, console io.Writer) ([]Backend, []error) {
	var backends []Backend
	var errs []error

	for _, output := range cfg.Outputs {
		switch output {
		case OutputJournald:
			b, err := NewJournaldBackend(cfg.Format)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			backends = append(backends, b)
		case OutputFile:
			b, err := NewFileBackend(cfg.FilePath, cfg.Format)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			backends = append(backends, b)
		case OutputConsole:
			backends = append(backends, NewConsoleBackend(console, cfg.Format))
		case OutputSQLite:
			b, err := NewSQLiteBackend(cfg.DatabasePath)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			backends = append(backends, b)
		default:
			errs = append(errs, fmt.Errorf("unknown log output %q", output))
		}
	}

	if len(backends) == 0 {
		backends = append(backends, NewConsoleBackend(console, cfg.Format))
	}
	return backends, errs
}
