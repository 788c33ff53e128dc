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
	"bufio"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/daemon/logger"
)

func TestSocketLogSubscriberMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter *LogFilter
		entry  *logger.Entry
		want   bool
	}{
		{"no filter", nil, &logger.Entry{Level: "debug"}, true},
		{"level below minimum", &LogFilter{Level: "warn"}, &logger.Entry{Level: "info"}, false},
		{"level at minimum", &LogFilter{Level: "warn"}, &logger.Entry{Level: "warn"}, true},
		{"level above minimum", &LogFilter{Level: "warn"}, &logger.Entry{Level: "error"}, true},
		{"component mismatch", &LogFilter{Component: "session"}, &logger.Entry{Level: "info", Component: "daemon"}, false},
		{"component match", &LogFilter{Component: "daemon"}, &logger.Entry{Level: "info", Component: "daemon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSocketLogSubscriber(nil, tt.filter)
			assert.Equal(t, tt.want, s.Matches(tt.entry))
		})
	}
}

func TestSocketLogSubscriberWritesJSONLines(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	s := NewSocketLogSubscriber(serverConn, &LogFilter{Level: "info"})

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.OnLogEvent(logger.NewEntry("debug", "daemon", "dropped", nil))
		errCh <- s.OnLogEvent(logger.NewEntry("info", "daemon", "Session state changed", map[string]interface{}{"to": "applied"}))
	}()

	line, err := bufio.NewReader(clientConn).ReadBytes('\n')
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)

	var entry logger.Entry
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "Session state changed", entry.Message)
	assert.Equal(t, "applied", entry.Fields["to"])
}

func TestSocketLogSubscriberClosed(t *testing.T) {
	s := NewSocketLogSubscriber(nil, nil)
	s.Close()

	// a closed subscriber never touches its connection
	assert.NoError(t, s.OnLogEvent(logger.NewEntry("error", "daemon", "ignored", nil)))
}

func TestSocketLogSubscriberStopsAfterFailedWrite(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	clientConn.Close()

	s := NewSocketLogSubscriber(serverConn, nil)
	err := s.OnLogEvent(logger.NewEntry("info", "daemon", "lost", nil))

	assert.Error(t, err)
	select {
	case <-s.Done():
	default:
		t.Fatal("subscriber should be done after a failed write")
	}
	assert.NoError(t, s.OnLogEvent(logger.NewEntry("info", "daemon", "ignored", nil)))
}
