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
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/netopt/state"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the daemon configuration",
	Long: `Shows, creates and checks netopt.json in the config directory
(NETOPT_CONFIG_DIR, default /etc/netopt). The daemon reads it at startup.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := executeConfigShow(cmd.OutOrStdout()); err != nil {
			cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
			exitWithError()
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := executeConfigInit(cmd.OutOrStdout(), configForce); err != nil {
			cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
			exitWithError()
		}
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := executeConfigValidate(cmd.OutOrStdout()); err != nil {
			cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
			exitWithError()
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file (a timestamped backup is kept)")
}

func configPath() string {
	return filepath.Join(state.GetConfigDir(), "netopt.json")
}

// executeConfigShow prints the configuration the daemon would use, with
// defaults filled in.
func executeConfigShow(w io.Writer) error {
	config, err := state.LoadNetoptConfig()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// executeConfigInit writes the default configuration. An existing file is
// only replaced with force.
func executeConfigInit(w io.Writer, force bool) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := state.SaveNetoptConfig(state.DefaultNetoptConfig()); err != nil {
		return err
	}
	fmt.Fprintf(w, "[OK] Wrote default configuration to %s\n", path)
	return nil
}

func executeConfigValidate(w io.Writer) error {
	if _, err := os.Stat(configPath()); os.IsNotExist(err) {
		fmt.Fprintf(w, "[INFO] %s not found, defaults are used\n", configPath())
		return nil
	}
	if _, err := state.LoadNetoptConfig(); err != nil {
		return err
	}
	fmt.Fprintf(w, "[OK] %s is valid\n", configPath())
	return nil
}
