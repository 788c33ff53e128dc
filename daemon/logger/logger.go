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

// Package logger provides structured logging for netopt. Entries are
// written to every configured backend and emitted to log stream
// subscribers.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger // Create child logger with preset fields
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Backend is the interface for log output backends
type Backend interface {
	Write(entry *Entry) error
	Close() error
}

// Config holds logger configuration
type Config struct {
	Level        string   // debug, info, warn, error
	Format       string   // text, json
	Outputs      []string // journald, file, console, sqlite
	FilePath     string   // Path to log file
	DatabasePath string   // Path to the SQLite audit database
	Component    string   // Default component name
}

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// ParseLevel converts a string to a LogLevel. Unknown levels map to info.
func ParseLevel(level string) LogLevel {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return LevelWarn
	}
	for l, name := range levelNames {
		if name == level {
			return l
		}
	}
	return LevelInfo
}

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "info"
}

// sink is shared by a logger and all of its children.
type sink struct {
	mu       sync.Mutex
	level    LogLevel
	backends []Backend
	emitter  *Emitter
}

// write hands entry to every backend, then to stream subscribers. Backend
// writes are serialized so entries keep their order in every output.
func (s *sink) write(entry *Entry) {
	s.mu.Lock()
	for _, backend := range s.backends {
		if err := backend.Write(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Logger backend error: %v\n", err)
		}
	}
	s.mu.Unlock()

	if s.emitter != nil {
		s.emitter.Emit(entry)
	}
}

// standardLogger is the default implementation of Logger. Children made by
// With share the sink and carry their own preset fields.
type standardLogger struct {
	sink      *sink
	component string
	fields    []Field
}

// New creates a new logger with the given configuration and backends
func New(config Config, backends []Backend, emitter *Emitter) Logger {
	return &standardLogger{
		sink: &sink{
			level:    ParseLevel(config.Level),
			backends: backends,
			emitter:  emitter,
		},
		component: config.Component,
	}
}

func (l *standardLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *standardLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *standardLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *standardLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// With creates a child logger with preset fields. A "component" field with
// a string value replaces the component instead of becoming a field.
func (l *standardLogger) With(fields ...Field) Logger {
	child := &standardLogger{
		sink:      l.sink,
		component: l.component,
		fields:    make([]Field, 0, len(l.fields)+len(fields)),
	}
	child.fields = append(child.fields, l.fields...)
	for _, f := range fields {
		if name, ok := f.Value.(string); ok && f.Key == "component" {
			child.component = name
			continue
		}
		child.fields = append(child.fields, f)
	}
	return child
}

// log builds the entry, later fields overriding preset ones with the same key.
func (l *standardLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.sink.level {
		return
	}

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for _, f := range l.fields {
		merged[f.Key] = f.Value
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}

	l.sink.write(NewEntry(level.String(), l.component, msg, merged))
}

// global holds the logger set up by Init.
var global struct {
	mu       sync.RWMutex
	logger   Logger
	emitter  *Emitter
	backends []Backend
}

// Init initializes the global logger
func Init(config Config, backends []Backend, emitter *Emitter) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.logger = New(config, backends, emitter)
	global.emitter = emitter
	global.backends = backends
}

// Close closes the backends passed to Init and disables the global logger.
func Close() error {
	global.mu.Lock()
	backends := global.backends
	global.logger = nil
	global.emitter = nil
	global.backends = nil
	global.mu.Unlock()

	var errs []string
	for _, b := range backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close log backends: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetEmitter returns the global emitter for log stream subscription
func GetEmitter() *Emitter {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.emitter
}

func current() Logger {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.logger
}

// With returns a child of the global logger with preset fields. It
// returns a discarding logger when Init has not been called.
func With(fields ...Field) Logger {
	if l := current(); l != nil {
		return l.With(fields...)
	}
	return New(Config{Level: "error"}, nil, nil).With(fields...)
}

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Debug(msg, fields...)
	}
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Info(msg, fields...)
	}
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Warn(msg, fields...)
	}
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Error(msg, fields...)
	}
}
