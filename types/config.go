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

package types

// LoggingConfig represents configuration for the logging system
type LoggingConfig struct {
	Level    string   `json:"level" validate:"omitempty,oneof=debug info warn error"` // default: info
	Format   string   `json:"format" validate:"omitempty,oneof=text json"`            // default: json
	Outputs  []string `json:"outputs" validate:"dive,oneof=journald file console sqlite"`
	File     string   `json:"file"`               // Log file path (default: /var/log/netopt/netopt.log)
	Database string   `json:"database,omitempty"` // SQLite path for the "sqlite" output
}

// PrivilegeConfig controls how mutating commands gain root privileges
type PrivilegeConfig struct {
	Escalator string `json:"escalator" validate:"required"` // default: pkexec
}

// ToolsConfig names the external tools, allowing absolute paths
type ToolsConfig struct {
	Ethtool string `json:"ethtool" validate:"required"`
	Iw      string `json:"iw" validate:"required"`
	Nmcli   string `json:"nmcli" validate:"required"`
	Sysctl  string `json:"sysctl" validate:"required"`
}

// PowerSaveConfig controls the NetworkManager fallback for power-save changes
type PowerSaveConfig struct {
	Fallback bool `json:"fallback"` // rewrite the connection profile when iw fails (default: true)
}

// NetoptConfig represents the main configuration (/etc/netopt/netopt.json)
type NetoptConfig struct {
	Logging   *LoggingConfig   `json:"logging"`
	Privilege *PrivilegeConfig `json:"privilege"`
	Tools     *ToolsConfig     `json:"tools"`
	PowerSave *PowerSaveConfig `json:"power_save"`
	Version   string           `json:"version"`
}
