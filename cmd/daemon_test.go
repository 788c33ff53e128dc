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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/state"
)

func TestGetPIDFile(t *testing.T) {
	tests := []struct {
		name       string
		pidFile    string
		runtimeDir string
		expected   string
	}{
		{"explicit path", "/run/custom.pid", "/run/user/1000", "/run/custom.pid"},
		{"runtime dir", "", "/run/user/1000", "/run/user/1000/netopt.pid"},
		{"fallback", "", "", "/tmp/netopt.pid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NETOPT_PID_FILE", tt.pidFile)
			t.Setenv("XDG_RUNTIME_DIR", tt.runtimeDir)
			assert.Equal(t, tt.expected, getPIDFile())
		})
	}
}

func TestWritePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "netopt.pid")

	require.NoError(t, writePIDFile(pidFile))

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", os.Getpid()), strings.TrimSpace(string(data)))

	info, err := os.Stat(pidFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCheckExistingDaemon(t *testing.T) {
	tests := []struct {
		name        string
		content     *string
		wantError   string
		wantRemoved bool
	}{
		{
			name: "no pid file",
		},
		{
			name:      "invalid pid",
			content:   strPtr("not-a-pid\n"),
			wantError: "invalid PID",
		},
		{
			name:      "running process",
			content:   strPtr(fmt.Sprintf("%d\n", os.Getpid())),
			wantError: "daemon already running",
		},
		{
			// PIDs above the kernel maximum cannot belong to a live process
			name:        "stale pid",
			content:     strPtr("99999999\n"),
			wantRemoved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidFile := filepath.Join(t.TempDir(), "netopt.pid")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(pidFile, []byte(*tt.content), 0600))
			}

			err := checkExistingDaemon(pidFile)

			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			if tt.wantRemoved {
				_, statErr := os.Stat(pidFile)
				assert.True(t, os.IsNotExist(statErr), "stale PID file should be removed")
			}
		})
	}
}

func TestNewServerConfig(t *testing.T) {
	config := state.DefaultNetoptConfig()
	restoreOnExit = true
	defer func() { restoreOnExit = false }()

	cfg := newServerConfig(config)

	assert.True(t, cfg.RestoreOnExit)
	assert.Equal(t, Version, cfg.Version)
	assert.NotNil(t, cfg.Capturer)
	assert.NotNil(t, cfg.Mutator)
	assert.NotNil(t, cfg.Links)
	assert.NotNil(t, cfg.FS)
	assert.Nil(t, cfg.Audit, "audit is only set when the sqlite output is open")
}

func strPtr(s string) *string {
	return &s
}
