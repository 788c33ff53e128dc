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

// Package system provides low-level system integration for interface
// tuning: running ethtool, iw, nmcli and sysctl, capturing interface
// snapshots, and applying or rolling back settings plans.
package system

import (
	"bytes"
	"os"
	"os/exec"
	"strings"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
)

// NetlinkClient abstracts the netlink link queries netopt needs.
type NetlinkClient interface {
	LinkByName(name string) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
}

// SysctlClient abstracts sysctl reads for testability.
type SysctlClient interface {
	// Get reads a sysctl value
	Get(key string) (string, error)
}

// FilesystemClient abstracts filesystem operations for testability.
type FilesystemClient interface {
	// ReadFile reads the entire file content
	ReadFile(filename string) ([]byte, error)
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	// LookPath resolves a tool name to an executable path
	LookPath(file string) (string, error)
	// Run executes a command and returns stdout and stderr separately.
	// A non-zero exit is reported as an error implementing ExitCode() int.
	Run(name string, args ...string) (stdout, stderr []byte, err error)
}

// FeatureReader reads kernel offload features without the ethtool binary.
type FeatureReader interface {
	Features(iface string) (map[string]bool, error)
}

// DefaultNetlinkClient implements NetlinkClient using real netlink calls.
type DefaultNetlinkClient struct{}

// NewDefaultNetlinkClient creates a new DefaultNetlinkClient.
func NewDefaultNetlinkClient() *DefaultNetlinkClient {
	return &DefaultNetlinkClient{}
}

func (c *DefaultNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (c *DefaultNetlinkClient) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

// DefaultSysctlClient reads sysctl values from /proc/sys.
type DefaultSysctlClient struct {
	fs FilesystemClient
}

// NewDefaultSysctlClient creates a new DefaultSysctlClient.
func NewDefaultSysctlClient(fs FilesystemClient) *DefaultSysctlClient {
	return &DefaultSysctlClient{fs: fs}
}

func (c *DefaultSysctlClient) Get(key string) (string, error) {
	data, err := c.fs.ReadFile(sysctlPath(key))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func sysctlPath(key string) string {
	return "/proc/sys/" + strings.ReplaceAll(key, ".", "/")
}

// DefaultFilesystemClient implements FilesystemClient using real filesystem operations.
type DefaultFilesystemClient struct{}

// NewDefaultFilesystemClient creates a new DefaultFilesystemClient.
func NewDefaultFilesystemClient() *DefaultFilesystemClient {
	return &DefaultFilesystemClient{}
}

func (c *DefaultFilesystemClient) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// DefaultCommandRunner implements CommandRunner using real command execution.
type DefaultCommandRunner struct{}

// NewDefaultCommandRunner creates a new DefaultCommandRunner.
func NewDefaultCommandRunner() *DefaultCommandRunner {
	return &DefaultCommandRunner{}
}

func (c *DefaultCommandRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run starts the command without a context: once started it always runs
// to completion, including any authorization prompt.
func (c *DefaultCommandRunner) Run(name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultFeatureReader reads offload features through the ethtool ioctl.
type DefaultFeatureReader struct{}

// NewDefaultFeatureReader creates a new DefaultFeatureReader.
func NewDefaultFeatureReader() *DefaultFeatureReader {
	return &DefaultFeatureReader{}
}

func (r *DefaultFeatureReader) Features(iface string) (map[string]bool, error) {
	e, err := ethtool.NewEthtool()
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.Features(iface)
}

// Tools names the external binaries. Names without a slash are resolved
// through PATH.
type Tools struct {
	Ethtool string `json:"ethtool"`
	Iw      string `json:"iw"`
	Nmcli   string `json:"nmcli"`
	Sysctl  string `json:"sysctl"`
}

// DefaultTools returns the standard tool names.
func DefaultTools() Tools {
	return Tools{Ethtool: "ethtool", Iw: "iw", Nmcli: "nmcli", Sysctl: "sysctl"}
}

// WithDefaults fills empty names with the standard ones.
func (t Tools) WithDefaults() Tools {
	d := DefaultTools()
	if t.Ethtool == "" {
		t.Ethtool = d.Ethtool
	}
	if t.Iw == "" {
		t.Iw = d.Iw
	}
	if t.Nmcli == "" {
		t.Nmcli = d.Nmcli
	}
	if t.Sysctl == "" {
		t.Sysctl = d.Sysctl
	}
	return t
}

// LinkManager lists and looks up interfaces with dependency injection
// for testability.
type LinkManager struct {
	netlink NetlinkClient
}

// NewLinkManager creates a new LinkManager with the given client.
func NewLinkManager(nl NetlinkClient) *LinkManager {
	return &LinkManager{netlink: nl}
}

// NewDefaultLinkManager creates a LinkManager with the real netlink client.
func NewDefaultLinkManager() *LinkManager {
	return &LinkManager{netlink: NewDefaultNetlinkClient()}
}

// SnapshotManager captures interface snapshots with dependency injection
// for testability.
type SnapshotManager struct {
	exec     Executor
	links    *LinkManager
	features FeatureReader
	sysctl   SysctlClient
	tools    Tools
}

// NewSnapshotManager creates a new SnapshotManager with the given clients.
func NewSnapshotManager(exec Executor, nl NetlinkClient, fr FeatureReader, sc SysctlClient, tools Tools) *SnapshotManager {
	return &SnapshotManager{
		exec:     exec,
		links:    NewLinkManager(nl),
		features: fr,
		sysctl:   sc,
		tools:    tools.WithDefaults(),
	}
}

// NewDefaultSnapshotManager creates a SnapshotManager with real system clients.
func NewDefaultSnapshotManager(exec Executor, tools Tools) *SnapshotManager {
	return NewSnapshotManager(
		exec,
		NewDefaultNetlinkClient(),
		NewDefaultFeatureReader(),
		NewDefaultSysctlClient(NewDefaultFilesystemClient()),
		tools,
	)
}

// Engine applies plans and rolls back snapshots with dependency injection
// for testability.
type Engine struct {
	exec     Executor
	tools    Tools
	fallback bool
}

// NewEngine creates an Engine. When fallback is true a failed power-save
// change is retried by rewriting the NetworkManager connection profile.
func NewEngine(exec Executor, tools Tools, fallback bool) *Engine {
	return &Engine{
		exec:     exec,
		tools:    tools.WithDefaults(),
		fallback: fallback,
	}
}
