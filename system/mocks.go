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
	"fmt"
	"sync"

	"github.com/vishvananda/netlink"
)

// MockNetlinkClient is a mock implementation of NetlinkClient for testing.
type MockNetlinkClient struct {
	mu sync.Mutex

	// State
	Links map[string]netlink.Link

	// Call counters for verification
	LinkByNameCalls int
	LinkListCalls   int

	// Error injection for testing error paths
	LinkByNameError error
	LinkListError   error
}

// NewMockNetlinkClient creates a new MockNetlinkClient.
func NewMockNetlinkClient() *MockNetlinkClient {
	return &MockNetlinkClient{
		Links: make(map[string]netlink.Link),
	}
}

// AddDevice registers a plain device with the given name and index.
func (m *MockNetlinkClient) AddDevice(name string, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Links[name] = &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: name, Index: index, MTU: 1500}}
}

func (m *MockNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkByNameCalls++

	if m.LinkByNameError != nil {
		return nil, m.LinkByNameError
	}

	link, ok := m.Links[name]
	if !ok {
		return nil, fmt.Errorf("Link not found")
	}
	return link, nil
}

func (m *MockNetlinkClient) LinkList() ([]netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkListCalls++

	if m.LinkListError != nil {
		return nil, m.LinkListError
	}

	links := make([]netlink.Link, 0, len(m.Links))
	for _, link := range m.Links {
		links = append(links, link)
	}
	return links, nil
}

// MockSysctlClient is a mock implementation of SysctlClient for testing.
type MockSysctlClient struct {
	mu sync.Mutex

	// State
	Values map[string]string

	// Call counters
	GetCalls int

	// Error injection
	GetError error
}

// NewMockSysctlClient creates a new MockSysctlClient.
func NewMockSysctlClient() *MockSysctlClient {
	return &MockSysctlClient{
		Values: make(map[string]string),
	}
}

func (m *MockSysctlClient) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++

	if m.GetError != nil {
		return "", m.GetError
	}

	value, ok := m.Values[key]
	if !ok {
		return "", fmt.Errorf("sysctl key not found: %s", key)
	}
	return value, nil
}

// MockFilesystemClient is a mock implementation of FilesystemClient for testing.
type MockFilesystemClient struct {
	mu sync.Mutex

	// State
	Files map[string][]byte

	// Call counters
	ReadFileCalls int

	// Error injection
	ReadFileError error
}

// NewMockFilesystemClient creates a new MockFilesystemClient.
func NewMockFilesystemClient() *MockFilesystemClient {
	return &MockFilesystemClient{
		Files: make(map[string][]byte),
	}
}

func (m *MockFilesystemClient) ReadFile(filename string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadFileCalls++

	if m.ReadFileError != nil {
		return nil, m.ReadFileError
	}

	data, ok := m.Files[filename]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return data, nil
}

// MockExitError is returned by MockCommandRunner for non-zero exits.
type MockExitError struct {
	Code int
}

func (e *MockExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the simulated exit status.
func (e *MockExitError) ExitCode() int {
	return e.Code
}

// MockCommandOutput is the scripted output of one command line.
type MockCommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// MockCommandRunner is a mock implementation of CommandRunner for testing.
type MockCommandRunner struct {
	mu sync.Mutex

	// State
	Paths          map[string]string // tool name -> resolved path; absent means missing
	CommandOutputs map[string]MockCommandOutput

	// Call tracking
	Commands [][]string
	RunCalls int

	// Error injection
	RunError error
}

// NewMockCommandRunner creates a new MockCommandRunner.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		Paths:          make(map[string]string),
		CommandOutputs: make(map[string]MockCommandOutput),
		Commands:       make([][]string, 0),
	}
}

func (m *MockCommandRunner) LookPath(file string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.Paths[file]
	if !ok {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", file)
	}
	return path, nil
}

func (m *MockCommandRunner) Run(name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls++

	cmd := append([]string{name}, args...)
	m.Commands = append(m.Commands, cmd)

	if m.RunError != nil {
		return nil, nil, m.RunError
	}

	out, ok := m.CommandOutputs[Command{Name: name, Args: args}.String()]
	if !ok {
		return []byte{}, []byte{}, nil
	}
	var err error
	if out.ExitCode != 0 {
		err = &MockExitError{Code: out.ExitCode}
	}
	return []byte(out.Stdout), []byte(out.Stderr), err
}

// SetOutput sets the output for a specific command line.
func (m *MockCommandRunner) SetOutput(cmdline string, out MockCommandOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandOutputs[cmdline] = out
}

// MockFeatureReader is a mock implementation of FeatureReader for testing.
type MockFeatureReader struct {
	mu sync.Mutex

	Devices map[string]map[string]bool
	Calls   int
	Error   error
}

// NewMockFeatureReader creates a new MockFeatureReader.
func NewMockFeatureReader() *MockFeatureReader {
	return &MockFeatureReader{Devices: make(map[string]map[string]bool)}
}

func (m *MockFeatureReader) Features(iface string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if m.Error != nil {
		return nil, m.Error
	}
	features, ok := m.Devices[iface]
	if !ok {
		return nil, fmt.Errorf("no such device")
	}
	return features, nil
}

// MockExecutor is a scripted Executor for testing. Commands without a
// scripted response succeed with empty output.
type MockExecutor struct {
	mu sync.Mutex

	// Responses keyed by Command.String()
	Responses map[string]ExecResult

	// Call tracking
	Commands []Command

	// OnRun is called before each command is answered
	OnRun func(cmd Command)
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{Responses: make(map[string]ExecResult)}
}

// SetResponse scripts the result for a command line.
func (m *MockExecutor) SetResponse(cmdline string, res ExecResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[cmdline] = res
}

// CommandLines returns the executed command lines in order.
func (m *MockExecutor) CommandLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Commands))
	for _, c := range m.Commands {
		out = append(out, c.String())
	}
	return out
}

func (m *MockExecutor) Run(cmd Command) ExecResult {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	onRun := m.OnRun
	res, ok := m.Responses[cmd.String()]
	m.mu.Unlock()

	if onRun != nil {
		onRun(cmd)
	}
	if !ok {
		return ExecResult{}
	}
	return res
}
