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

// Package state loads and saves netopt configuration files.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultConfigBasePath = "/etc/netopt"
	envFileName           = "netopt.env"
	maxBackups            = 5
)

// GetConfigDir returns the configuration directory path.
// Checks NETOPT_CONFIG_DIR environment variable, falls back to /etc/netopt
func GetConfigDir() string {
	if dir := os.Getenv("NETOPT_CONFIG_DIR"); dir != "" {
		return dir
	}
	return defaultConfigBasePath
}

// LoadEnvFile loads <config dir>/netopt.env into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile() error {
	path := filepath.Join(GetConfigDir(), envFileName)
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadConfig decodes <config dir>/<namespace>.json into config, which must
// be a pointer. Unknown keys are rejected so a misspelt setting is not
// silently ignored. Syntax and type errors carry the line and column.
func LoadConfig(namespace string, config interface{}) error {
	path := filepath.Join(GetConfigDir(), namespace+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s config: %w", namespace, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		if offset, ok := errorOffset(err); ok {
			line, col := getLineCol(data, offset)
			return fmt.Errorf("failed to parse %s config at %s line %d, column %d: %w",
				namespace, path, line, col, err)
		}
		return fmt.Errorf("failed to parse %s config: %w", namespace, err)
	}
	return nil
}

// errorOffset returns the byte offset a JSON decoding error points at.
func errorOffset(err error) (int64, bool) {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset, true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset, true
	}
	return 0, false
}

// getLineCol calculates the line and column number for a byte offset in JSON data
func getLineCol(data []byte, offset int64) (line, col int) {
	line = 1
	col = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

// SaveConfig writes config to <config dir>/<namespace>.json through a
// temporary file and a rename. An existing file is first copied to a
// timestamped backup; only the newest maxBackups backups are kept.
func SaveConfig(namespace string, config interface{}) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s config: %w", namespace, err)
	}

	dir := GetConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, namespace+".json")

	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		pruneBackups(path)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// pruneBackups removes all but the newest maxBackups backups of path. The
// timestamp suffix sorts chronologically.
func pruneBackups(path string) {
	backups, err := filepath.Glob(path + ".backup.*")
	if err != nil || len(backups) <= maxBackups {
		return
	}
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-maxBackups] {
		os.Remove(old)
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0600)
}
