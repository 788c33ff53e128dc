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

package daemon

import (
	"net"
	"sync"
	"time"

	"github.com/we-are-mono/netopt/daemon/logger"
)

// streamWriteTimeout bounds how long a slow log stream client can stall
// the logger.
const streamWriteTimeout = 2 * time.Second

// SocketLogSubscriber streams matching log entries to a client as JSON
// lines. The first failed write closes it.
type SocketLogSubscriber struct {
	conn   net.Conn
	filter LogFilter
	level  logger.LogLevel

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

// NewSocketLogSubscriber creates a subscriber writing to conn. A nil
// filter lets every entry through.
func NewSocketLogSubscriber(conn net.Conn, filter *LogFilter) *SocketLogSubscriber {
	s := &SocketLogSubscriber{
		conn:  conn,
		level: logger.LevelDebug,
		done:  make(chan struct{}),
	}
	if filter != nil {
		s.filter = *filter
		if filter.Level != "" {
			s.level = logger.ParseLevel(filter.Level)
		}
	}
	return s
}

// Matches reports whether entry passes the filter. The level filter is a
// minimum: "warn" also lets errors through.
func (s *SocketLogSubscriber) Matches(entry *logger.Entry) bool {
	if logger.ParseLevel(entry.Level) < s.level {
		return false
	}
	return s.filter.Component == "" || entry.Component == s.filter.Component
}

// OnLogEvent writes entry if it matches the filter.
func (s *SocketLogSubscriber) OnLogEvent(entry *logger.Entry) error {
	if !s.Matches(entry) {
		return nil
	}

	line, err := entry.ToJSON()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed() {
		return nil
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if _, err := s.conn.Write(append(line, '\n')); err != nil {
		s.Close()
		return err
	}
	return nil
}

// Done is closed once the subscriber stops writing.
func (s *SocketLogSubscriber) Done() <-chan struct{} {
	return s.done
}

// Close stops further writes. It is safe to call more than once.
func (s *SocketLogSubscriber) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *SocketLogSubscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
