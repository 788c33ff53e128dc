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
	"github.com/we-are-mono/netopt/plan"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

// applyFlags are the apply command options on top of the latency profile.
type applyFlags struct {
	tso        bool
	gso        bool
	gro        bool
	powerSave  string
	bufferMB   float64
	preset     string
	congestion string
}

var applyOpts applyFlags

var applyCmd = &cobra.Command{
	Use:   "apply [interface]",
	Short: "Apply low-latency settings to an interface",
	Long: `Applies the low-latency profile to an interface: offloads off, power
saving off, balanced socket buffers and BBR. Flags change single settings.

Without an active session a snapshot is captured first. Without an
interface argument the session interface is used.

Examples:
  netopt apply wlan0
  netopt apply wlan0 --gro --preset heavy
  netopt apply --buffer 1.5 --congestion cubic`,
	Args: cobra.MaximumNArgs(1),
	Run:  runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	f := applyCmd.Flags()
	f.BoolVar(&applyOpts.tso, "tso", false, "Keep TCP segmentation offload enabled")
	f.BoolVar(&applyOpts.gso, "gso", false, "Keep generic segmentation offload enabled")
	f.BoolVar(&applyOpts.gro, "gro", false, "Keep generic receive offload enabled")
	f.StringVar(&applyOpts.powerSave, "power-save", "off", "Wi-Fi power saving (on|off)")
	f.Float64Var(&applyOpts.bufferMB, "buffer", 0, "Socket buffer ceiling in MB (0.5 to 4.0, 0.5 steps)")
	f.StringVar(&applyOpts.preset, "preset", "", "Buffer preset (light|balanced|heavy)")
	f.StringVar(&applyOpts.congestion, "congestion", "bbr", "TCP congestion control (cubic|bbr)")
}

func runApply(cmd *cobra.Command, args []string) {
	iface := ""
	if len(args) > 0 {
		iface = args[0]
	}
	if err := executeApply(cmd.OutOrStdout(), defaultClient, iface, applyOpts); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// options builds plan options for iface from the latency profile and f.
func (f applyFlags) options(iface types.InterfaceID) plan.Options {
	opts := plan.LatencyProfile(iface)
	opts.Offload = types.OffloadFlags{TSO: f.tso, GSO: f.gso, GRO: f.gro}
	opts.PowerSave = f.powerSave
	opts.Congestion = f.congestion
	if f.bufferMB != 0 || f.preset != "" {
		opts.BufferMB = f.bufferMB
		opts.BufferPreset = f.preset
	}
	return opts
}

// executeApply executes the apply command with the given client. The
// options are validated locally so nothing is sent for a bad request.
func executeApply(w io.Writer, client ClientInterface, iface string, f applyFlags) error {
	if iface == "" {
		active, err := sessionInterface(client)
		if err != nil {
			return err
		}
		iface = string(active)
	}

	opts := f.options(types.InterfaceID(iface))
	p, err := plan.Build(opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Applying to %s: offload tso=%s gso=%s gro=%s, power save %s, buffers %s, congestion %s\n",
		p.Interface(), onOff(p.Offload().TSO), onOff(p.Offload().GSO), onOff(p.Offload().GRO),
		p.PowerSave(), p.Buffer(), p.Congestion())

	resp, err := send(client, daemon.Request{Command: daemon.CommandApply, Options: &opts})
	if err != nil {
		return err
	}

	var result system.Result
	if err := decodeData(resp, &result); err != nil {
		return err
	}
	printResult(w, &result)

	if result.Failed() {
		fmt.Fprintln(w, "[WARN] Some settings were not applied; 'netopt reset' restores the snapshot")
		return fmt.Errorf("%s", resp.Message)
	}
	fmt.Fprintf(w, "[OK] %s\n", resp.Message)
	return nil
}

// sessionInterface asks the daemon for the interface of the active session.
func sessionInterface(client ClientInterface) (types.InterfaceID, error) {
	resp, err := send(client, daemon.Request{Command: daemon.CommandStatus})
	if err != nil {
		return "", err
	}

	var status daemon.StatusData
	if err := decodeData(resp, &status); err != nil {
		return "", err
	}
	if status.Session == nil || status.Session.Interface == "" {
		return "", fmt.Errorf("no interface given and no active session (run 'netopt snapshot <interface>' first)")
	}
	return status.Session.Interface, nil
}
