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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/netopt/client"
	"github.com/we-are-mono/netopt/daemon"
	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/state"
)

var (
	logsFollow    bool
	logsLines     int
	logsSince     string
	logsComponent string
	auditLevel    string
	auditLimit    int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show netopt daemon logs",
	Long:  `Display logs from the netopt daemon using journalctl (systemd) or tail (non-systemd).`,
	Run:   runLogs,
}

var logsWatchCmd = &cobra.Command{
	Use:   "watch [level]",
	Short: "Watch logs in real-time from the netopt daemon",
	Long:  `Stream logs from the netopt daemon in real-time. The level is a minimum (debug, info, warn, error).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogsWatch,
}

var logsAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit log kept in SQLite",
	Long:  `Shows the newest entries of the SQLite audit log. Requires "sqlite" in logging.outputs.`,
	Args:  cobra.NoArgs,
	Run:   runLogsAudit,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsWatchCmd)
	logsCmd.AddCommand(logsAuditCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output in real-time")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since time (e.g., '1 hour ago', '2024-01-01')")

	logsWatchCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component name")

	logsAuditCmd.Flags().StringVar(&auditLevel, "level", "", "Only entries of this level")
	logsAuditCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component name")
	logsAuditCmd.Flags().IntVarP(&auditLimit, "lines", "n", 50, "Number of entries to show")
}

func runLogs(cmd *cobra.Command, args []string) {
	var command []string
	if _, err := exec.LookPath("journalctl"); err == nil {
		command = journalctlArgs(logsFollow, logsLines, logsSince)
	} else {
		logFile := logger.DefaultLogFile
		if config, err := state.LoadNetoptConfig(); err == nil {
			logFile = config.Logging.File
		}
		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			cmd.PrintErrln(fmt.Sprintf("[ERROR] Log file not found: %s", logFile))
			cmd.PrintErrln("[INFO] Make sure the netopt daemon is running or has been run at least once.")
			exitWithError()
			return
		}
		if logsSince != "" {
			cmd.PrintErrln("[WARN] --since flag is not supported without journalctl, ignoring")
		}
		command = tailArgs(logsFollow, logsLines, logFile)
	}

	execCmd := exec.Command(command[0], command[1:]...) //nolint:gosec // Command built from a fixed binary with validated flags
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin

	if err := execCmd.Run(); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] Failed to run %s: %v", command[0], err))
		exitWithError()
	}
}

// journalctlArgs selects the entries written through systemd-cat.
func journalctlArgs(follow bool, lines int, since string) []string {
	args := []string{"journalctl", "-t", logger.JournalIdentifier}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 && !follow {
		args = append(args, "-n", fmt.Sprintf("%d", lines))
	}
	if since != "" {
		args = append(args, "--since", since)
	}
	// Add --no-pager to prevent paging when not following
	if !follow {
		args = append(args, "--no-pager")
	}
	return args
}

func tailArgs(follow bool, lines int, file string) []string {
	args := []string{"tail"}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 {
		args = append(args, "-n", fmt.Sprintf("%d", lines))
	}
	return append(args, file)
}

func runLogsWatch(cmd *cobra.Command, args []string) {
	filter := &daemon.LogFilter{Component: logsComponent}
	if len(args) > 0 {
		filter.Level = args[0]
	}

	// Set up signal handling for Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		w := cmd.OutOrStdout()
		done <- client.StreamLogs(filter, func(logData []byte) error {
			return printLogLine(w, logData)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
			exitWithError()
		}
	case <-sigChan:
		fmt.Fprintln(cmd.OutOrStdout(), "\nStopping log stream...")
	}
}

// printLogLine renders one JSON-encoded log entry as text.
func printLogLine(w io.Writer, logData []byte) error {
	var entry logger.Entry
	if err := json.Unmarshal(logData, &entry); err != nil {
		return fmt.Errorf("failed to parse log entry: %w", err)
	}
	fmt.Fprintln(w, entry.ToText())
	return nil
}

func runLogsAudit(cmd *cobra.Command, args []string) {
	filter := &daemon.LogFilter{Level: auditLevel, Component: logsComponent, Limit: auditLimit}
	if err := executeLogsAudit(cmd.OutOrStdout(), defaultClient, filter); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeLogsAudit prints audit entries oldest first.
func executeLogsAudit(w io.Writer, client ClientInterface, filter *daemon.LogFilter) error {
	resp, err := send(client, daemon.Request{Command: daemon.CommandAudit, LogFilter: filter})
	if err != nil {
		return err
	}

	var entries []logger.Entry
	if err := decodeData(resp, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No audit entries")
		return nil
	}
	for i := len(entries) - 1; i >= 0; i-- {
		fmt.Fprintln(w, entries[i].ToText())
	}
	return nil
}
