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
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/netopt/daemon"
	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/state"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

var (
	foreground    bool
	restoreOnExit bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run netopt as a daemon",
	Long: `Starts the netopt daemon which listens for commands on a Unix socket.

The daemon holds the session snapshot in memory only. With
--restore-on-exit it restores the snapshot when it is stopped.`,
	Args: cobra.NoArgs,
	Run:  runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().BoolVar(&foreground, "foreground", false, "Also log to stderr")
	daemonCmd.Flags().BoolVar(&restoreOnExit, "restore-on-exit", false, "Restore the snapshot when the daemon stops")
}

func runDaemon(cmd *cobra.Command, args []string) {
	if err := state.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	config, err := state.LoadNetoptConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	// Check for existing daemon via PID file
	pidFile := getPIDFile()
	if err := checkExistingDaemon(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	// Write our PID to file
	if err := writePIDFile(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to write PID file: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(pidFile)

	audit, err := initializeLogger(config, foreground)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to initialize logger: %v\n", err)
		os.Remove(pidFile)
		os.Exit(1)
	}

	serverConfig := newServerConfig(config)
	if audit != nil {
		serverConfig.Audit = audit
	}

	server, err := daemon.NewServer(serverConfig)
	if err != nil {
		logger.Error("Failed to create server", logger.Field{Key: "error", Value: err.Error()})
		os.Remove(pidFile)
		os.Exit(1)
	}

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		if err := server.Stop(); err != nil {
			logger.Error("Failed to stop server", logger.Field{Key: "error", Value: err.Error()})
		}
		_ = logger.Close()
		os.Remove(pidFile)
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		logger.Error("Server failed", logger.Field{Key: "error", Value: err.Error()})
		os.Remove(pidFile)
		os.Exit(1)
	}
}

// newServerConfig wires the system layer from config.
func newServerConfig(config *types.NetoptConfig) daemon.Config {
	exec := system.NewExecutor(system.NewDefaultCommandRunner(), state.ExecutorConfig(config))
	tools := state.Tools(config)

	return daemon.Config{
		SocketPath:    daemon.GetSocketPath(),
		Version:       Version,
		RestoreOnExit: restoreOnExit,
		Capturer:      system.NewDefaultSnapshotManager(exec, tools),
		Mutator:       system.NewEngine(exec, tools, config.PowerSave.Fallback),
		Links:         system.NewDefaultLinkManager(),
		FS:            system.NewDefaultFilesystemClient(),
	}
}

// getPIDFile returns NETOPT_PID_FILE, or a file next to the socket.
func getPIDFile() string {
	if pidFile := os.Getenv("NETOPT_PID_FILE"); pidFile != "" {
		return pidFile
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "netopt.pid")
	}
	return "/tmp/netopt.pid"
}

// checkExistingDaemon checks if another daemon is already running
func checkExistingDaemon(pidFile string) error {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			// No PID file exists, we're good to start
			return nil
		}
		return fmt.Errorf("PID file exists but cannot be read: %w (remove %s manually if daemon is not running)", err, pidFile)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("invalid PID in %s: %s (remove file manually if daemon is not running)", pidFile, pidStr)
	}

	// Check if process with this PID exists
	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(pidFile)
		return nil
	}

	// Try to signal the process to see if it's actually running
	if err := process.Signal(syscall.Signal(0)); err != nil {
		// Process doesn't exist or we can't signal it, remove stale PID file
		os.Remove(pidFile)
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d (stop it first or remove %s if it's stale)", pid, pidFile)
}

// writePIDFile writes the current process PID to a file
func writePIDFile(pidFile string) error {
	pid := os.Getpid()
	return os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", pid)), 0600)
}

// initializeLogger sets up the structured logger from config. It returns
// the SQLite backend when that output is enabled, for audit queries.
func initializeLogger(config *types.NetoptConfig, foreground bool) (*logger.SQLiteBackend, error) {
	cfg := state.LoggerConfig(config)
	if foreground && !slices.Contains(cfg.Outputs, logger.OutputConsole) {
		cfg.Outputs = append(slices.Clone(cfg.Outputs), logger.OutputConsole)
	}

	backends, errs := logger.NewBackends(cfg, os.Stderr)
	if len(backends) == 0 {
		return nil, fmt.Errorf("no log backend could be opened")
	}

	logger.Init(cfg, backends, logger.NewEmitter())

	for _, err := range errs {
		logger.Warn("Log output unavailable", logger.Field{Key: "error", Value: err.Error()})
	}

	var audit *logger.SQLiteBackend
	for _, b := range backends {
		if sb, ok := b.(*logger.SQLiteBackend); ok {
			audit = sb
		}
	}

	logger.Info("Logging initialized",
		logger.Field{Key: "outputs", Value: strings.Join(cfg.Outputs, ",")},
		logger.Field{Key: "level", Value: cfg.Level},
		logger.Field{Key: "format", Value: cfg.Format})
	return audit, nil
}
