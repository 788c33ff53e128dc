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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalctlArgs(t *testing.T) {
	tests := []struct {
		name     string
		follow   bool
		lines    int
		since    string
		expected []string
	}{
		{"defaults", false, 100, "", []string{"journalctl", "-t", "netopt", "-n", "100", "--no-pager"}},
		{"follow", true, 100, "", []string{"journalctl", "-t", "netopt", "-f"}},
		{"since", false, 0, "1 hour ago", []string{"journalctl", "-t", "netopt", "--since", "1 hour ago", "--no-pager"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, journalctlArgs(tt.follow, tt.lines, tt.since))
		})
	}
}

func TestTailArgs(t *testing.T) {
	tests := []struct {
		name     string
		follow   bool
		lines    int
		expected []string
	}{
		{"lines", false, 50, []string{"tail", "-n", "50", "/var/log/netopt/netopt.log"}},
		{"follow", true, 10, []string{"tail", "-f", "-n", "10", "/var/log/netopt/netopt.log"}},
		{"no lines", false, 0, []string{"tail", "/var/log/netopt/netopt.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tailArgs(tt.follow, tt.lines, "/var/log/netopt/netopt.log"))
		})
	}
}

func TestPrintLogLine(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		var buf bytes.Buffer
		err := printLogLine(&buf, []byte(`{"timestamp":"2025-03-01T12:00:00Z","level":"info","component":"daemon","message":"Daemon listening","fields":{}}`))

		require.NoError(t, err)
		assert.Equal(t, "2025-03-01T12:00:00Z [info] [daemon] Daemon listening\n", buf.String())
	})

	t.Run("invalid json", func(t *testing.T) {
		var buf bytes.Buffer
		err := printLogLine(&buf, []byte("not json"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse log entry")
		assert.Empty(t, buf.String())
	})
}
