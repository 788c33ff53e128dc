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

//go:build integration
// +build integration

package integration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/client"
	"github.com/we-are-mono/netopt/daemon"
)

// TestDaemonStartStop tests basic daemon lifecycle
func TestDaemonStartStop(t *testing.T) {
	harness := NewTestHarness(t)
	cfg, _ := harness.SimulatedConfig(false)
	harness.StartDaemon(cfg)

	resp := harness.SendRequest(daemon.Request{Command: daemon.CommandStatus})
	assert.True(t, resp.Success, "status should return success")
	assert.Equal(t, "No active session", resp.Message)

	info, err := os.Stat(harness.socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "socket should be owner-only")

	harness.StopDaemon()

	_, err = client.Send(daemon.Request{Command: daemon.CommandStatus})
	assert.Error(t, err, "daemon should not respond after shutdown")
	_, err = os.Stat(harness.socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be removed on stop")
}

// TestDaemonStatus tests the status payload over the socket
func TestDaemonStatus(t *testing.T) {
	harness := NewTestHarness(t)
	cfg, _ := harness.SimulatedConfig(true)
	harness.StartDaemon(cfg)

	resp := harness.SendRequest(daemon.Request{Command: daemon.CommandStatus})
	require.True(t, resp.Success)

	var status daemon.StatusData
	harness.Decode(resp, &status)
	assert.Equal(t, "integration", status.Version)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, "2m", status.Host.Uptime)
	assert.Equal(t, "0m", status.Uptime)
	assert.True(t, status.RestoreOnExit)
	assert.Nil(t, status.Session)
}

// TestDaemonMultipleClients tests concurrent client connections
func TestDaemonMultipleClients(t *testing.T) {
	harness := NewTestHarness(t)
	cfg, _ := harness.SimulatedConfig(false)
	harness.StartDaemon(cfg)

	const numClients = 10
	results := make(chan error, numClients)

	for i := 0; i < numClients; i++ {
		go func() {
			resp, err := client.Send(daemon.Request{Command: daemon.CommandInterfaces})
			if err != nil {
				results <- err
				return
			}
			if !resp.Success {
				results <- assert.AnError
				return
			}
			results <- nil
		}()
	}

	for i := 0; i < numClients; i++ {
		err := <-results
		assert.NoError(t, err, "concurrent request should succeed")
	}
}

// TestDaemonUnknownCommand tests that unknown commands are reported, not dropped
func TestDaemonUnknownCommand(t *testing.T) {
	harness := NewTestHarness(t)
	cfg, _ := harness.SimulatedConfig(false)
	harness.StartDaemon(cfg)

	resp := harness.SendRequest(daemon.Request{Command: "commit"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown command")
}
