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

// Package validation provides reusable validation helpers for netopt settings.
package validation

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxInterfaceNameLen is IFNAMSIZ minus the trailing NUL.
const MaxInterfaceNameLen = 15

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

// Validator returns the shared struct validator with netopt's custom tags
// registered. The "ifname" tag checks kernel interface name syntax.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("ifname", func(fl validator.FieldLevel) bool {
			return ValidateInterfaceName(fl.Field().String()) == nil
		})
	})
	return validate
}

// ValidateInterfaceName checks that name is usable as a Linux interface name.
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}
	if len(name) > MaxInterfaceNameLen {
		return fmt.Errorf("interface name %q too long (max %d bytes)", name, MaxInterfaceNameLen)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid interface name %q", name)
	}
	for _, r := range name {
		if r == '/' || r == ':' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("interface name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

// ValidateBufferMB checks a buffer size in megabytes: within [0.5, 4.0]
// and on the 0.5 MB grid.
func ValidateBufferMB(mb float64) error {
	if math.IsNaN(mb) || math.IsInf(mb, 0) {
		return fmt.Errorf("buffer size must be a finite number")
	}
	if mb < 0.5 || mb > 4.0 {
		return fmt.Errorf("buffer size %g MB out of valid range [0.5, 4.0]", mb)
	}
	if mb*2 != math.Trunc(mb*2) {
		return fmt.Errorf("buffer size %g MB is not a multiple of 0.5 MB", mb)
	}
	return nil
}

// ValidateChoice checks that value is one of allowed (case-insensitive).
func ValidateChoice(what, value string, allowed []string) error {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if normalized == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (must be one of: %s)", what, value, strings.Join(allowed, ", "))
}

// ValidateSysctlKey checks that key looks like a dotted sysctl name.
func ValidateSysctlKey(key string) error {
	if key == "" {
		return fmt.Errorf("sysctl key cannot be empty")
	}
	for _, part := range strings.Split(key, ".") {
		if part == "" {
			return fmt.Errorf("invalid sysctl key %q", key)
		}
		for _, r := range part {
			if !(r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return fmt.Errorf("invalid sysctl key %q", key)
			}
		}
	}
	return nil
}
