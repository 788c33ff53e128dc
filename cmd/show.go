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
	"github.com/we-are-mono/netopt/types"
)

var showCmd = &cobra.Command{
	Use:   "show [interface]",
	Short: "Show the current settings of an interface",
	Long: `Reads the current offload, power-save, buffer and congestion-control
settings of an interface. Without an argument the interface of the active
session is shown, next to its snapshot.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) {
	iface := ""
	if len(args) > 0 {
		iface = args[0]
	}
	if err := executeShow(cmd.OutOrStdout(), defaultClient, iface); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeShow executes the show command with the given client.
func executeShow(w io.Writer, client ClientInterface, iface string) error {
	resp, err := send(client, daemon.Request{
		Command:   daemon.CommandShow,
		Interface: types.InterfaceID(iface),
	})
	if err != nil {
		return err
	}

	var data daemon.ShowData
	if err := decodeData(resp, &data); err != nil {
		return err
	}

	fmt.Fprintf(w, "Current settings of %s:\n", data.Current.Interface)
	printSnapshot(w, &data.Current)

	if data.Snapshot == nil {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Snapshot (captured %s):\n", data.Snapshot.Timestamp.Format("2006-01-02 15:04:05"))
	printSnapshot(w, data.Snapshot)
	fmt.Fprintln(w)
	if data.Differs {
		fmt.Fprintln(w, "[WARN] Current settings differ from the snapshot (use 'netopt reset' to restore)")
	} else {
		fmt.Fprintln(w, "[OK] Current settings match the snapshot")
	}
	return nil
}
