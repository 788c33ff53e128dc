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
	"strings"

	"github.com/we-are-mono/netopt/daemon"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

// decodeData converts the generic response payload into v.
func decodeData(resp *daemon.Response, v interface{}) error {
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("failed to read response data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func outcomeMarker(o system.Outcome) string {
	switch o {
	case system.OutcomeSuccess:
		return "[OK]  "
	case system.OutcomeSkipped:
		return "[SKIP]"
	default:
		return "[FAIL]"
	}
}

// printResult writes every step of r grouped by parameter group, then the
// warnings and a summary line.
func printResult(w io.Writer, r *system.Result) {
	fmt.Fprintf(w, "%s %s:\n", toTitleCase(string(r.Operation)), r.Interface)
	for _, g := range r.Groups {
		fmt.Fprintf(w, "  %s\n", toTitleCase(strings.ReplaceAll(string(g.Group), "_", " ")))
		if len(g.Steps) == 0 {
			fmt.Fprintln(w, "    [SKIP] nothing to do")
		}
		for _, s := range g.Steps {
			line := fmt.Sprintf("    %s %s=%s", outcomeMarker(s.Outcome), s.Parameter, s.Value)
			if s.Path == system.PathFallback {
				line += " via NetworkManager"
			}
			if s.Reason != "" {
				line += ": " + s.Reason
			}
			if s.Outcome == system.OutcomeFailed && s.Kind != "" {
				line += fmt.Sprintf(" (%s)", s.Kind)
			}
			fmt.Fprintln(w, line)
		}
	}
	for _, warning := range r.Warnings() {
		fmt.Fprintf(w, "[WARN] %s\n", warning)
	}
	fmt.Fprintf(w, "%d changed, %d skipped, %d failed\n",
		r.Count(system.OutcomeSuccess), r.Count(system.OutcomeSkipped), r.Count(system.OutcomeFailed))
}

func observedString[T any](o system.Observed[T], format func(T) string) string {
	if !o.Available {
		if o.Reason == "" {
			return "unavailable"
		}
		return "unavailable (" + o.Reason + ")"
	}
	return format(o.Value)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func formatOffload(o system.OffloadState) string {
	parts := []string{
		"tso=" + onOff(o.Flags.TSO),
		"gso=" + onOff(o.Flags.GSO),
		"gro=" + onOff(o.Flags.GRO),
	}
	if len(o.Fixed) > 0 {
		fixed := make([]string, 0, len(o.Fixed))
		for _, f := range o.Fixed {
			fixed = append(fixed, string(f))
		}
		parts = append(parts, "[fixed: "+strings.Join(fixed, ",")+"]")
	}
	return strings.Join(parts, " ")
}

// printSnapshot writes the settings held in snap.
func printSnapshot(w io.Writer, snap *system.InterfaceSnapshot) {
	fmt.Fprintf(w, "  Offload:     %s\n", observedString(snap.Offload, formatOffload))
	fmt.Fprintf(w, "  Power save:  %s\n", observedString(snap.PowerSave, func(p types.PowerSaveState) string { return string(p) }))
	fmt.Fprintf(w, "  Buffers:     rmem_max=%s wmem_max=%s\n",
		observedString(snap.ReadBufferMax, formatBytes),
		observedString(snap.WriteBufferMax, formatBytes))

	congestion := observedString(snap.Congestion, func(c types.CongestionControl) string { return string(c) })
	if snap.AvailableCongestion.Available && len(snap.AvailableCongestion.Value) > 0 {
		names := make([]string, 0, len(snap.AvailableCongestion.Value))
		for _, c := range snap.AvailableCongestion.Value {
			names = append(names, string(c))
		}
		congestion += " (available: " + strings.Join(names, " ") + ")"
	}
	fmt.Fprintf(w, "  Congestion:  %s\n", congestion)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
