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
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/client"
	"github.com/we-are-mono/netopt/daemon"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

// TestHarness runs a daemon on a private socket and talks to it through
// the client package, the same path the CLI uses.
type TestHarness struct {
	t             *testing.T
	socketPath    string
	server        *daemon.Server
	serverErr     chan error
	createdIfaces []string
}

// NewTestHarness creates an isolated socket path and points the client at it.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "netopt.sock")
	t.Setenv("NETOPT_SOCKET_PATH", socketPath)
	t.Setenv("NETOPT_CONFIG_DIR", dir)

	h := &TestHarness{
		t:          t,
		socketPath: socketPath,
		serverErr:  make(chan error, 1),
	}
	t.Cleanup(h.Cleanup)

	t.Logf("Created test harness: socket=%s", socketPath)
	return h
}

// SimulatedConfig returns a daemon config backed by a simulated host with
// a wireless wlan0 and a wired eth0.
func (h *TestHarness) SimulatedConfig(restoreOnExit bool) (daemon.Config, *system.SimulatedHost) {
	host := system.NewSimulatedHost("wlan0")
	host.Interfaces["eth0"] = &system.SimulatedInterface{Offload: types.AllOffload(true)}

	nl := system.NewMockNetlinkClient()
	nl.AddDevice("wlan0", 2)
	nl.AddDevice("eth0", 3)

	fs := system.NewMockFilesystemClient()
	fs.Files["/proc/uptime"] = []byte("120.00 10.00\n")

	return daemon.Config{
		SocketPath:    h.socketPath,
		Version:       "integration",
		RestoreOnExit: restoreOnExit,
		Capturer:      system.NewSnapshotManager(host, nl, system.NewMockFeatureReader(), system.NewMockSysctlClient(), system.DefaultTools()),
		Mutator:       system.NewEngine(host, system.DefaultTools(), true),
		Links:         system.NewLinkManager(nl),
		FS:            fs,
	}, host
}

// HostConfig returns a daemon config wired to the real system tools.
func (h *TestHarness) HostConfig() daemon.Config {
	executor := system.NewDefaultExecutor(system.DefaultEscalator)
	tools := system.DefaultTools()
	return daemon.Config{
		SocketPath: h.socketPath,
		Version:    "integration",
		Capturer:   system.NewDefaultSnapshotManager(executor, tools),
		Mutator:    system.NewEngine(executor, tools, true),
		Links:      system.NewDefaultLinkManager(),
		FS:         system.NewDefaultFilesystemClient(),
	}
}

// StartDaemon starts a daemon with cfg and waits until it answers.
func (h *TestHarness) StartDaemon(cfg daemon.Config) {
	h.t.Helper()

	srv, err := daemon.NewServer(cfg)
	require.NoError(h.t, err, "failed to create daemon server")
	h.server = srv

	go func() {
		h.serverErr <- srv.Start()
	}()

	h.WaitForDaemon(5 * time.Second)
}

// StopDaemon stops the running daemon and waits for the accept loop to exit.
func (h *TestHarness) StopDaemon() {
	h.t.Helper()
	if h.server == nil {
		return
	}

	require.NoError(h.t, h.server.Stop())
	select {
	case err := <-h.serverErr:
		require.NoError(h.t, err)
	case <-time.After(5 * time.Second):
		h.t.Fatal("daemon did not stop within timeout")
	}
	h.server = nil
}

// WaitForDaemon waits for daemon to be ready to accept connections
func (h *TestHarness) WaitForDaemon(timeout time.Duration) {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := client.Send(daemon.Request{Command: daemon.CommandStatus}); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	h.t.Fatal("Daemon did not become ready within timeout")
}

// SendRequest sends a request to the daemon and returns the response
func (h *TestHarness) SendRequest(req daemon.Request) *daemon.Response {
	h.t.Helper()
	resp, err := client.Send(req)
	require.NoError(h.t, err)
	return resp
}

// Decode re-encodes resp.Data into v.
func (h *TestHarness) Decode(resp *daemon.Response, v interface{}) {
	h.t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(h.t, err)
	require.NoError(h.t, json.Unmarshal(data, v))
}

// CreateDummyInterface creates a dummy interface prefixed with "test-".
// It requires root.
func (h *TestHarness) CreateDummyInterface(name string) string {
	h.t.Helper()

	actualName := "test-" + name
	for _, args := range [][]string{
		{"link", "add", actualName, "type", "dummy"},
		{"link", "set", actualName, "up"},
	} {
		if output, err := exec.Command("ip", args...).CombinedOutput(); err != nil {
			h.t.Fatalf("ip %v failed: %v\nOutput: %s", args, err, output)
		}
	}

	h.createdIfaces = append(h.createdIfaces, actualName)
	return actualName
}

// Cleanup stops the daemon and removes created interfaces.
func (h *TestHarness) Cleanup() {
	if h.server != nil {
		_ = h.server.Stop()
		h.server = nil
	}
	for _, iface := range h.createdIfaces {
		_ = exec.Command("ip", "link", "del", iface).Run()
	}
	os.Remove(h.socketPath)
}

// requireRoot skips tests that touch real interfaces.
func requireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skipf("%s requires root privileges", t.Name())
	}
}
