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

package logger

import (
	"slices"
	"sync"
)

// Subscriber receives log entries as they are written, for example a
// client streaming the daemon log over the socket.
type Subscriber interface {
	OnLogEvent(entry *Entry) error
}

// Emitter fans log entries out to subscribers. Subscriber errors are
// ignored: a broken stream never affects logging.
type Emitter struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

func (e *Emitter) Subscribe(sub Subscriber) {
	e.mu.Lock()
	e.subscribers = append(e.subscribers, sub)
	e.mu.Unlock()
}

// Unsubscribe removes sub. Removing an unknown subscriber is a no-op.
func (e *Emitter) Unsubscribe(sub Subscriber) {
	e.mu.Lock()
	e.subscribers = slices.DeleteFunc(e.subscribers, func(s Subscriber) bool { return s == sub })
	e.mu.Unlock()
}

// Count returns the number of subscribers.
func (e *Emitter) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers)
}

// Emit delivers entry to every subscriber in subscription order.
func (e *Emitter) Emit(entry *Entry) {
	e.mu.RLock()
	subs := slices.Clone(e.subscribers)
	e.mu.RUnlock()

	for _, sub := range subs {
		_ = sub.OnLogEvent(entry)
	}
}
