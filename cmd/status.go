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
	"io"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/netopt/daemon"
	"github.com/we-are-mono/netopt/session"
	"github.com/we-are-mono/netopt/system"
)

var verboseStatus bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and session status",
	Long:  `Displays the daemon, the host and the active session with its last result.`,
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&verboseStatus, "verbose", "v", false, "Show snapshot, plan, last result and history")
}

func runStatus(cmd *cobra.Command, args []string) {
	if err := executeStatus(cmd.OutOrStdout(), defaultClient, verboseStatus); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeStatus executes the status command with the given client.
func executeStatus(w io.Writer, client ClientInterface, verbose bool) error {
	resp, err := send(client, daemon.Request{Command: daemon.CommandStatus})
	if err != nil {
		return err
	}

	var status daemon.StatusData
	if err := decodeData(resp, &status); err != nil {
		return err
	}

	fmt.Fprintln(w, "netopt NIC Latency Optimizer")
	fmt.Fprintln(w, "============================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "[OK] Daemon:     Running (PID: %d, version %s, up %s)\n", status.PID, status.Version, status.Uptime)
	fmt.Fprintf(w, "  Restore on exit: %s\n", boolToYesNo(status.RestoreOnExit))
	if status.Host.Hostname != "" {
		fmt.Fprintf(w, "  Hostname:   %s\n", status.Host.Hostname)
	}
	if status.Host.KernelVersion != "" {
		fmt.Fprintf(w, "  Kernel:     %s\n", status.Host.KernelVersion)
	}
	if status.Host.Uptime != "" {
		fmt.Fprintf(w, "  Uptime:     %s\n", status.Host.Uptime)
	}
	fmt.Fprintln(w)

	if status.Session == nil {
		fmt.Fprintln(w, "[INFO] Session:  None (use 'netopt snapshot <interface>' to start one)")
	} else {
		printSession(w, status.Session, verbose)
	}

	if verbose && len(status.History) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "HISTORY")
		fmt.Fprintln(w, "-------")
		for _, h := range status.History {
			fmt.Fprintf(w, "  %s  %-8s %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"), h.Interface, h.ID)
		}
	}
	return nil
}

func sessionMarker(state session.State) string {
	switch state {
	case session.StatePartiallyApplied:
		return "[WARN]"
	case session.StateApplied, session.StateSnapshotted, session.StateRolledBack:
		return "[OK]"
	default:
		return "[INFO]"
	}
}

func printSession(w io.Writer, info *session.Info, verbose bool) {
	fmt.Fprintf(w, "%s Session:  %s on %s (%s)\n", sessionMarker(info.State), info.State, info.Interface, info.ID)
	fmt.Fprintf(w, "  Started:    %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
	if info.Plan != nil {
		fmt.Fprintf(w, "  Plan:       power save %s, buffers %s, congestion %s\n",
			info.Plan.PowerSave(), info.Plan.Buffer(), info.Plan.Congestion())
	}
	if info.LastResult != nil {
		r := info.LastResult
		fmt.Fprintf(w, "  Last %s: %d changed, %d skipped, %d failed\n", r.Operation,
			r.Count(system.OutcomeSuccess), r.Count(system.OutcomeSkipped), r.Count(system.OutcomeFailed))
	}

	if !verbose {
		return
	}
	if info.Snapshot != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Snapshot (captured %s):\n", info.Snapshot.Timestamp.Format("2006-01-02 15:04:05"))
		printSnapshot(w, info.Snapshot)
	}
	if info.LastResult != nil {
		fmt.Fprintln(w)
		printResult(w, info.LastResult)
	}
}

func boolToYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
