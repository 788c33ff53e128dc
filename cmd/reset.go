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

var resetCmd = &cobra.Command{
	Use:     "reset",
	Aliases: []string{"rollback"},
	Short:   "Restore the interface to its snapshot",
	Long: `Restores every setting recorded in the session snapshot. Settings that
could not be read when the snapshot was taken are left alone.

The snapshot is kept, so the settings can be applied again afterwards.`,
	Args: cobra.NoArgs,
	Run:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	if err := executeReset(cmd.OutOrStdout(), defaultClient); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeReset executes the reset command with the given client.
func executeReset(w io.Writer, client ClientInterface) error {
	fmt.Fprintln(w, "Restoring snapshot...")

	resp, err := send(client, daemon.Request{Command: daemon.CommandRollback})
	if err != nil {
		return err
	}

	var result system.Result
	if err := decodeData(resp, &result); err != nil {
		return err
	}
	printResult(w, &result)

	if result.Failed() {
		return fmt.Errorf("%s", resp.Message)
	}
	fmt.Fprintf(w, "[OK] %s\n", resp.Message)
	return nil
}
