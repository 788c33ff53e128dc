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

package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/types"
)

func writeNetoptConfig(t *testing.T, dir, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "netopt.json"), []byte(data), 0644))
}

func TestDefaultNetoptConfig(t *testing.T) {
	config := DefaultNetoptConfig()

	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, logger.DefaultLogFile, config.Logging.File)
	assert.Len(t, config.Logging.Outputs, 1)
	assert.Equal(t, "pkexec", config.Privilege.Escalator)
	assert.Equal(t, "ethtool", config.Tools.Ethtool)
	assert.True(t, config.PowerSave.Fallback)
	assert.NoError(t, ValidateNetoptConfig(config))
}

func TestLoadNetoptConfigNonExistent(t *testing.T) {
	tempConfigDir(t)
	t.Setenv("NETOPT_DEBUG", "")

	config, err := LoadNetoptConfig()
	require.NoError(t, err, "Should return default config when file doesn't exist")
	assert.Equal(t, DefaultNetoptConfig(), config)
}

func TestLoadNetoptConfigFillsDefaults(t *testing.T) {
	dir := tempConfigDir(t)
	t.Setenv("NETOPT_DEBUG", "")
	writeNetoptConfig(t, dir, `{
  "logging": {"level": "warn", "outputs": ["console", "sqlite"]},
  "tools": {"iw": "/usr/sbin/iw"},
  "power_save": {"fallback": false}
}`)

	config, err := LoadNetoptConfig()
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, []string{"console", "sqlite"}, config.Logging.Outputs)
	assert.Equal(t, logger.DefaultDatabasePath, config.Logging.Database)
	assert.Equal(t, "pkexec", config.Privilege.Escalator)
	assert.Equal(t, "/usr/sbin/iw", config.Tools.Iw)
	assert.Equal(t, "sysctl", config.Tools.Sysctl)
	assert.False(t, config.PowerSave.Fallback)

	tools := Tools(config)
	assert.Equal(t, "/usr/sbin/iw", tools.Iw)
	assert.Equal(t, "nmcli", tools.Nmcli)

	lc := LoggerConfig(config)
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "daemon", lc.Component)
	assert.Equal(t, logger.DefaultDatabasePath, lc.DatabasePath)

	assert.Equal(t, "pkexec", ExecutorConfig(config).Escalator)
}

func TestLoadNetoptConfigDebugOverride(t *testing.T) {
	dir := tempConfigDir(t)
	writeNetoptConfig(t, dir, `{"logging": {"level": "error"}}`)

	t.Setenv("NETOPT_DEBUG", "1")
	config, err := LoadNetoptConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", config.Logging.Level)

	t.Setenv("NETOPT_DEBUG", "false")
	config, err = LoadNetoptConfig()
	require.NoError(t, err)
	assert.Equal(t, "error", config.Logging.Level)
}

func TestLoadNetoptConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"syntax error", "{\n  \"logging\": {\"level\": \"info\",}\n}", "line 2"},
		{"unknown level", `{"logging": {"level": "verbose"}}`, "Level"},
		{"unknown output", `{"logging": {"outputs": ["syslog"]}}`, "Outputs"},
		{"unknown format", `{"logging": {"format": "xml"}}`, "Format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tempConfigDir(t)
			t.Setenv("NETOPT_DEBUG", "")
			writeNetoptConfig(t, dir, tt.data)

			_, err := LoadNetoptConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveNetoptConfig(t *testing.T) {
	tempConfigDir(t)
	t.Setenv("NETOPT_DEBUG", "")

	config := DefaultNetoptConfig()
	config.Privilege.Escalator = "sudo"
	config.Logging.Outputs = []string{"file", "sqlite"}
	require.NoError(t, SaveNetoptConfig(config))

	loaded, err := LoadNetoptConfig()
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestSaveNetoptConfigRejectsInvalid(t *testing.T) {
	dir := tempConfigDir(t)

	config := DefaultNetoptConfig()
	config.Logging.Level = "loud"

	err := SaveNetoptConfig(config)
	assert.ErrorIs(t, err, types.ErrValidation)
	_, statErr := os.Stat(filepath.Join(dir, "netopt.json"))
	assert.True(t, os.IsNotExist(statErr))
}
