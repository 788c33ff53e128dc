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
	"github.com/we-are-mono/netopt/system"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List interfaces that can be tuned",
	Long:  `Lists every network interface except the loopback device, with link state and counters.`,
	Run:   runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) {
	if err := executeInterfaces(cmd.OutOrStdout(), defaultClient); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeInterfaces executes the interfaces command with the given client.
func executeInterfaces(w io.Writer, client ClientInterface) error {
	resp, err := send(client, daemon.Request{Command: daemon.CommandInterfaces})
	if err != nil {
		return err
	}

	var infos []system.InterfaceInfo
	if err := decodeData(resp, &infos); err != nil {
		return err
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No interfaces found")
		return nil
	}

	fmt.Fprintf(w, "%-16s %-10s %-6s %-6s %-18s %10s %10s %s\n",
		"NAME", "TYPE", "STATE", "MTU", "MAC", "RX", "TX", "ERRORS")
	for _, info := range infos {
		fmt.Fprintf(w, "%-16s %-10s %-6s %-6d %-18s %10s %10s %d\n",
			info.Name, info.Type, info.State, info.MTU, info.HardwareAddr,
			formatBytes(int64(info.RXBytes)), formatBytes(int64(info.TXBytes)),
			info.RXErrors+info.TXErrors)
	}
	return nil
}
