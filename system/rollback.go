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
	"context"
	"time"

	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/types"
)

// Rollback restores every available value recorded in snap, using the same
// mechanisms as Apply. It does not assume anything about the current state,
// so no offload step is skipped as already applied. Fields unavailable in
// snap are skipped, never guessed. A NetworkManager profile left changed
// by the power-save fallback gets its recorded value back. Running Rollback twice leaves the
// interface in the same state as running it once.
func (e *Engine) Rollback(ctx context.Context, snap *InterfaceSnapshot) (*RollbackResult, error) {
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	logger.Info("Rolling back to snapshot",
		logger.Field{Key: "interface", Value: string(snap.Interface)},
		logger.Field{Key: "captured_at", Value: snap.Timestamp.Format(time.RFC3339)})

	result := &RollbackResult{
		Operation: OperationRollback,
		Interface: snap.Interface,
		StartedAt: time.Now(),
	}
	st := &stepper{ctx: ctx}

	flags := Unavailable[types.OffloadFlags](snap.Offload.Reason)
	if snap.Offload.Available {
		flags = Known(snap.Offload.Value.Flags)
	}

	result.Groups = append(result.Groups, e.setOffload(st, snap, flags, false))
	powerSave := e.setPowerSave(st, snap, snap.PowerSave.Value, snap.ProfilePowerSave)
	if snap.PowerSave.Available && e.fallback {
		e.restoreProfilePowerSave(st, &powerSave, snap)
	}
	result.Groups = append(result.Groups, powerSave)
	result.Groups = append(result.Groups, e.setBuffers(st, snap.ReadBufferMax, snap.WriteBufferMax))
	result.Groups = append(result.Groups, e.setCongestion(st, snap, snap.Congestion))

	result.FinishedAt = time.Now()
	logResult(result)
	return result, nil
}
