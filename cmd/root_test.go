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
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRootCmdExists tests that root command is properly initialized
func TestRootCmdExists(t *testing.T) {
	assert.NotNil(t, rootCmd, "root command should exist")
	assert.Equal(t, "netopt", rootCmd.Use)
	assert.Contains(t, rootCmd.Short, "latency")
}

// TestRootCmdHasCommands tests that subcommands are registered
func TestRootCmdHasCommands(t *testing.T) {
	expectedCommands := []string{
		"status",
		"interfaces",
		"show",
		"snapshot",
		"apply",
		"reset",
		"end",
		"daemon",
		"logs",
		"config",
	}

	commands := rootCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "command %s should be registered", expected)
	}
}

func TestResetHasRollbackAlias(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"rollback"})
	assert.NoError(t, err)
	assert.Equal(t, "reset", cmd.Name())
}

func TestSetVersion(t *testing.T) {
	oldVersion, oldBuild := Version, BuildTime
	defer SetVersion(oldVersion, oldBuild)

	SetVersion("1.2.3", "2025-01-01")
	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "2025-01-01", BuildTime)
	assert.Equal(t, "1.2.3", rootCmd.Version)
}
