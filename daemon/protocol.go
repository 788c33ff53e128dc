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

// Package daemon implements the netopt daemon server and IPC protocol.
package daemon

import (
	"github.com/we-are-mono/netopt/plan"
	"github.com/we-are-mono/netopt/session"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

// Commands understood by the daemon.
const (
	CommandStatus        = "status"
	CommandInterfaces    = "interfaces"
	CommandShow          = "show"
	CommandSnapshot      = "snapshot"
	CommandApply         = "apply"
	CommandRollback      = "rollback"
	CommandEnd           = "end"
	CommandAudit         = "audit"
	CommandLogsSubscribe = "logs-subscribe"
)

// LogFilter defines filtering criteria for log streaming and audit queries
type LogFilter struct {
	Level     string `json:"level,omitempty"`     // debug, info, warn, error
	Component string `json:"component,omitempty"` // Filter by component name
	Limit     int    `json:"limit,omitempty"`     // Max rows for audit queries (0 = default)
}

// Request represents a command sent to the daemon
type Request struct {
	Command   string            `json:"command"`
	Interface types.InterfaceID `json:"interface,omitempty"` // snapshot, show
	Options   *plan.Options     `json:"options,omitempty"`   // apply
	LogFilter *LogFilter        `json:"log_filter,omitempty"`
}

// Response represents the daemon's response
type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Success bool        `json:"success"`
}

// StatusData is the payload of a status response.
type StatusData struct {
	Version       string          `json:"version"`
	PID           int             `json:"pid"`
	Uptime        string          `json:"uptime"`
	RestoreOnExit bool            `json:"restore_on_exit"`
	Host          system.HostInfo `json:"host"`
	Session       *session.Info   `json:"session,omitempty"`
	History       []session.Info  `json:"history,omitempty"`
}

// ShowData is the payload of a show response: the live state of an interface
// next to the snapshot held for it, if any.
type ShowData struct {
	Current  system.InterfaceSnapshot  `json:"current"`
	Snapshot *system.InterfaceSnapshot `json:"snapshot,omitempty"`
	Differs  bool                      `json:"differs"`
}
