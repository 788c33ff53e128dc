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
	"github.com/we-are-mono/netopt/types"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <interface>",
	Short: "Capture the settings of an interface and start a session",
	Long: `Captures the current settings of an interface. The snapshot is the
target of 'netopt reset' and is kept until 'netopt end'.

Only one session can be open at a time.`,
	Args: cobra.ExactArgs(1),
	Run:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) {
	if err := executeSnapshot(cmd.OutOrStdout(), defaultClient, args[0]); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeSnapshot executes the snapshot command with the given client.
func executeSnapshot(w io.Writer, client ClientInterface, iface string) error {
	resp, err := send(client, daemon.Request{
		Command:   daemon.CommandSnapshot,
		Interface: types.InterfaceID(iface),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[OK] %s\n", resp.Message)

	var info session.Info
	if err := decodeData(resp, &info); err != nil {
		return err
	}
	if info.Snapshot == nil {
		return nil
	}

	printSnapshot(w, info.Snapshot)
	for _, field := range info.Snapshot.UnavailableFields() {
		fmt.Fprintf(w, "[WARN] %s could not be read and will not be restored\n", field)
	}
	return nil
}
