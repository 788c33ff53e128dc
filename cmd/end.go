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
)

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the session and discard its snapshot",
	Long: `Ends the active session. The interface keeps its current settings and
the snapshot is discarded, so 'netopt reset' is no longer possible.`,
	Args: cobra.NoArgs,
	Run:  runEnd,
}

func init() {
	rootCmd.AddCommand(endCmd)
}

func runEnd(cmd *cobra.Command, args []string) {
	if err := executeEnd(cmd.OutOrStdout(), defaultClient); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeEnd executes the end command with the given client.
func executeEnd(w io.Writer, client ClientInterface) error {
	resp, err := send(client, daemon.Request{Command: daemon.CommandEnd})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[OK] %s\n", resp.Message)
	return nil
}
