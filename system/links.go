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

package system

import (
	"fmt"
	"net"
	"sort"

	"github.com/vishvananda/netlink"
	"github.com/we-are-mono/netopt/types"
	"golang.org/x/sys/unix"
)

// InterfaceInfo describes a tunable interface for listings.
type InterfaceInfo struct {
	Name         types.InterfaceID `json:"name"`
	Type         string            `json:"type"`
	State        string            `json:"state"` // "up" or "down"
	MTU          int               `json:"mtu"`
	HardwareAddr string            `json:"hardware_addr,omitempty"`
	RXBytes      uint64            `json:"rx_bytes"`
	TXBytes      uint64            `json:"tx_bytes"`
	RXErrors     uint64            `json:"rx_errors"`
	TXErrors     uint64            `json:"tx_errors"`
}

// Default link manager for callers that do not inject a client.
var defaultLinkManager = NewDefaultLinkManager()

// ListInterfaces returns the names of all non-loopback interfaces, sorted.
func ListInterfaces() ([]types.InterfaceID, error) {
	return defaultLinkManager.ListInterfaces()
}

// ListInterfaces returns the names of all non-loopback interfaces, sorted.
func (lm *LinkManager) ListInterfaces() ([]types.InterfaceID, error) {
	infos, err := lm.Describe()
	if err != nil {
		return nil, err
	}
	ids := make([]types.InterfaceID, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.Name)
	}
	return ids, nil
}

// Describe returns details for all non-loopback interfaces, sorted by name.
func (lm *LinkManager) Describe() ([]InterfaceInfo, error) {
	links, err := lm.netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	infos := make([]InterfaceInfo, 0, len(links))
	for _, link := range links {
		if isLoopback(link) {
			continue
		}
		attrs := link.Attrs()
		info := InterfaceInfo{
			Name:  types.InterfaceID(attrs.Name),
			Type:  link.Type(),
			State: "down",
			MTU:   attrs.MTU,
		}
		if attrs.Flags&net.FlagUp != 0 {
			info.State = "up"
		}
		if len(attrs.HardwareAddr) > 0 {
			info.HardwareAddr = attrs.HardwareAddr.String()
		}
		if attrs.Statistics != nil {
			info.RXBytes = attrs.Statistics.RxBytes
			info.TXBytes = attrs.Statistics.TxBytes
			info.RXErrors = attrs.Statistics.RxErrors
			info.TXErrors = attrs.Statistics.TxErrors
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// isLoopback reports whether link is a loopback device, by name or flag.
func isLoopback(link netlink.Link) bool {
	attrs := link.Attrs()
	if types.InterfaceID(attrs.Name).IsLoopback() {
		return true
	}
	return attrs.RawFlags&unix.IFF_LOOPBACK != 0 || attrs.Flags&net.FlagLoopback != 0
}
