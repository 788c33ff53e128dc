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
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/types"
	"golang.org/x/sys/unix"
)

// DefaultEscalator is the privilege escalation helper used for mutating
// commands when not running as root.
const DefaultEscalator = "pkexec"

// pkexec exit codes
const (
	escalatorDismissed    = 126 // authorization dialog dismissed
	escalatorUnauthorized = 127 // not authorized, or the helper failed
)

// Command is one external tool invocation.
type Command struct {
	Name       string
	Args       []string
	Privileged bool
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ExecResult is the outcome of running a Command. Kind is empty on success.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Kind     types.ErrorKind
	Err      error
}

// OK reports whether the command exited zero.
func (r ExecResult) OK() bool {
	return r.Kind == ""
}

// Reason returns the failure description, or "" on success.
func (r ExecResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Executor runs external commands. Run never returns a Go error: every
// failure is described by the ExecResult.
type Executor interface {
	Run(cmd Command) ExecResult
}

// ExecutorConfig configures a DefaultExecutor.
type ExecutorConfig struct {
	Escalator string     // default: pkexec
	Geteuid   func() int // default: unix.Geteuid
}

// DefaultExecutor runs commands one at a time, escalating privileged
// ones through the configured escalator.
type DefaultExecutor struct {
	mu        sync.Mutex
	runner    CommandRunner
	escalator string
	geteuid   func() int
}

// NewExecutor creates an executor on top of runner.
func NewExecutor(runner CommandRunner, cfg ExecutorConfig) *DefaultExecutor {
	if cfg.Escalator == "" {
		cfg.Escalator = DefaultEscalator
	}
	if cfg.Geteuid == nil {
		cfg.Geteuid = unix.Geteuid
	}
	return &DefaultExecutor{
		runner:    runner,
		escalator: cfg.Escalator,
		geteuid:   cfg.Geteuid,
	}
}

// NewDefaultExecutor creates an executor that runs real processes.
func NewDefaultExecutor(escalator string) *DefaultExecutor {
	return NewExecutor(NewDefaultCommandRunner(), ExecutorConfig{Escalator: escalator})
}

type exitCoder interface {
	ExitCode() int
}

// Run executes cmd and classifies the outcome.
func (e *DefaultExecutor) Run(cmd Command) ExecResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	path, err := e.runner.LookPath(cmd.Name)
	if err != nil {
		logger.Debug("Tool not found",
			logger.Field{Key: "tool", Value: cmd.Name})
		return ExecResult{
			ExitCode: -1,
			Kind:     types.KindToolMissing,
			Err:      types.NewStepError(types.KindToolMissing, cmd.Name, "not found in PATH"),
		}
	}

	name, args := path, cmd.Args
	escalated := false
	if cmd.Privileged && e.geteuid() != 0 {
		escPath, err := e.runner.LookPath(e.escalator)
		if err != nil {
			return ExecResult{
				ExitCode: -1,
				Kind:     types.KindToolMissing,
				Err:      types.NewStepError(types.KindToolMissing, e.escalator, "privilege escalation helper not found"),
			}
		}
		name = escPath
		args = append([]string{path}, cmd.Args...)
		escalated = true
	}

	stdout, stderr, runErr := e.runner.Run(name, args...)
	result := ExecResult{
		Stdout: string(stdout),
		Stderr: string(stderr),
	}

	if runErr != nil {
		var ec exitCoder
		if errors.As(runErr, &ec) {
			result.ExitCode = ec.ExitCode()
		} else {
			// The process could not be started at all
			result.ExitCode = -1
			result.Kind = types.KindToolError
			result.Err = types.NewStepError(types.KindToolError, cmd.Name, runErr.Error())
		}
	}
	if result.Kind == "" && result.ExitCode != 0 {
		result.Kind = classifyFailure(result, escalated)
		tool := cmd.Name
		if result.Kind == types.KindAuthDenied {
			tool = e.escalator
		}
		result.Err = types.NewStepError(result.Kind, tool, failureDetail(result))
	}

	logger.Debug("Executed command",
		logger.Field{Key: "command", Value: cmd.String()},
		logger.Field{Key: "privileged", Value: cmd.Privileged},
		logger.Field{Key: "escalated", Value: escalated},
		logger.Field{Key: "exit_code", Value: result.ExitCode},
		logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})

	return result
}

// classifyFailure maps a non-zero exit to an error kind.
func classifyFailure(r ExecResult, escalated bool) types.ErrorKind {
	if escalated && (r.ExitCode == escalatorDismissed || r.ExitCode == escalatorUnauthorized) {
		return types.KindAuthDenied
	}
	if isHardwareRejection(r.Stderr) {
		return types.KindHardwareLimit
	}
	return types.KindToolError
}

func isHardwareRejection(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "invalid argument") || strings.Contains(lower, "out of range")
}

func failureDetail(r ExecResult) string {
	msg := strings.TrimSpace(r.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(r.Stdout)
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return fmt.Sprintf("exit status %d", r.ExitCode)
	}
	return fmt.Sprintf("exit status %d: %s", r.ExitCode, msg)
}
