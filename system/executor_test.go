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

package system

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/types"
)

func newTestRunner() *MockCommandRunner {
	runner := NewMockCommandRunner()
	runner.Paths["ethtool"] = "/usr/sbin/ethtool"
	runner.Paths["sysctl"] = "/usr/sbin/sysctl"
	runner.Paths["iw"] = "/usr/sbin/iw"
	runner.Paths["pkexec"] = "/usr/bin/pkexec"
	return runner
}

func asUser() int { return 1000 }
func asRoot() int { return 0 }

// TestExecutorEscalation tests that privileged commands are wrapped only for non-root users
func TestExecutorEscalation(t *testing.T) {
	tests := []struct {
		name       string
		privileged bool
		euid       func() int
		want       []string
	}{
		{"unprivileged as user", false, asUser, []string{"/usr/sbin/ethtool", "-k", "eth0"}},
		{"privileged as user", true, asUser, []string{"/usr/bin/pkexec", "/usr/sbin/ethtool", "-k", "eth0"}},
		{"privileged as root", true, asRoot, []string{"/usr/sbin/ethtool", "-k", "eth0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner()
			exec := NewExecutor(runner, ExecutorConfig{Geteuid: tt.euid})

			res := exec.Run(Command{Name: "ethtool", Args: []string{"-k", "eth0"}, Privileged: tt.privileged})

			assert.True(t, res.OK())
			require.Len(t, runner.Commands, 1)
			assert.Equal(t, tt.want, runner.Commands[0])
		})
	}
}

func TestExecutorCustomEscalator(t *testing.T) {
	runner := newTestRunner()
	runner.Paths["doas"] = "/usr/bin/doas"
	exec := NewExecutor(runner, ExecutorConfig{Escalator: "doas", Geteuid: asUser})

	exec.Run(Command{Name: "sysctl", Args: []string{"-w", "net.core.rmem_max=1048576"}, Privileged: true})

	require.Len(t, runner.Commands, 1)
	assert.Equal(t, "/usr/bin/doas", runner.Commands[0][0])
}

// TestExecutorClassification tests mapping of exit codes and stderr to error kinds
func TestExecutorClassification(t *testing.T) {
	tests := []struct {
		name       string
		privileged bool
		output     MockCommandOutput
		wantKind   types.ErrorKind
		wantCode   int
	}{
		{
			name:     "success",
			output:   MockCommandOutput{Stdout: "ok\n"},
			wantKind: "",
		},
		{
			name:       "dialog dismissed",
			privileged: true,
			output:     MockCommandOutput{ExitCode: 126, Stderr: "Error executing command as another user: Request dismissed"},
			wantKind:   types.KindAuthDenied,
			wantCode:   126,
		},
		{
			name:       "not authorized",
			privileged: true,
			output:     MockCommandOutput{ExitCode: 127, Stderr: "Error executing command as another user: Not authorized"},
			wantKind:   types.KindAuthDenied,
			wantCode:   127,
		},
		{
			name:     "exit 127 without escalation is a tool error",
			output:   MockCommandOutput{ExitCode: 127},
			wantKind: types.KindToolError,
			wantCode: 127,
		},
		{
			name:       "kernel rejects value",
			privileged: true,
			output:     MockCommandOutput{ExitCode: 255, Stderr: `sysctl: setting key "net.core.rmem_max": Invalid argument`},
			wantKind:   types.KindHardwareLimit,
			wantCode:   255,
		},
		{
			name:       "value out of range",
			privileged: true,
			output:     MockCommandOutput{ExitCode: 1, Stderr: "ring size out of range"},
			wantKind:   types.KindHardwareLimit,
			wantCode:   1,
		},
		{
			name:       "generic failure",
			privileged: true,
			output:     MockCommandOutput{ExitCode: 1, Stderr: "Could not change any device features"},
			wantKind:   types.KindToolError,
			wantCode:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner()
			cmd := Command{Name: "sysctl", Args: []string{"-w", "net.core.rmem_max=1"}, Privileged: tt.privileged}
			line := "/usr/sbin/sysctl -w net.core.rmem_max=1"
			if tt.privileged {
				line = "/usr/bin/pkexec " + line
			}
			runner.SetOutput(line, tt.output)

			res := NewExecutor(runner, ExecutorConfig{Geteuid: asUser}).Run(cmd)

			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.wantCode, res.ExitCode)
			if tt.wantKind == "" {
				assert.True(t, res.OK())
				assert.NoError(t, res.Err)
				assert.Equal(t, "ok\n", res.Stdout)
				return
			}
			require.Error(t, res.Err)
			assert.True(t, errors.Is(res.Err, tt.wantKind.Sentinel()))
		})
	}
}

func TestExecutorToolMissing(t *testing.T) {
	runner := newTestRunner()
	exec := NewExecutor(runner, ExecutorConfig{Geteuid: asUser})

	res := exec.Run(Command{Name: "nmcli", Args: []string{"-g", "GENERAL.CONNECTION", "device", "show", "wlan0"}})

	assert.Equal(t, types.KindToolMissing, res.Kind)
	assert.True(t, errors.Is(res.Err, types.ErrToolMissing))
	assert.Contains(t, res.Reason(), "nmcli")
	assert.Equal(t, 0, runner.RunCalls)
}

func TestExecutorEscalatorMissing(t *testing.T) {
	runner := newTestRunner()
	delete(runner.Paths, "pkexec")
	exec := NewExecutor(runner, ExecutorConfig{Geteuid: asUser})

	res := exec.Run(Command{Name: "iw", Args: []string{"dev", "wlan0", "set", "power_save", "off"}, Privileged: true})

	assert.Equal(t, types.KindToolMissing, res.Kind)
	assert.Contains(t, res.Reason(), "pkexec")
	assert.Equal(t, 0, runner.RunCalls)
}

func TestExecutorStartFailure(t *testing.T) {
	runner := newTestRunner()
	runner.RunError = errors.New("fork/exec /usr/sbin/iw: permission denied")
	exec := NewExecutor(runner, ExecutorConfig{Geteuid: asRoot})

	res := exec.Run(Command{Name: "iw", Args: []string{"dev", "wlan0", "get", "power_save"}})

	assert.Equal(t, types.KindToolError, res.Kind)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Reason(), "permission denied")
}

func TestFailureDetail(t *testing.T) {
	assert.Equal(t, "exit status 1", failureDetail(ExecResult{ExitCode: 1}))
	assert.Equal(t, "exit status 2: first", failureDetail(ExecResult{ExitCode: 2, Stderr: "first\nsecond\n"}))
	assert.Equal(t, "exit status 3: from stdout", failureDetail(ExecResult{ExitCode: 3, Stdout: "from stdout\n"}))
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "ethtool -K eth0 tso off", Command{Name: "ethtool", Args: []string{"-K", "eth0", "tso", "off"}}.String())
	assert.Equal(t, "iw", Command{Name: "iw"}.String())
}
