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

package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrorCollector accumulates validation errors so that every problem with a
// set of options is reported at once instead of failing on the first one.
type ErrorCollector struct {
	errs []error
	ctx  string // Optional context prefix (e.g., "interface eth0")
}

// NewCollector creates a new error collector.
func NewCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// WithContext sets a context prefix that will be prepended to all subsequent errors.
func (ec *ErrorCollector) WithContext(ctx string) *ErrorCollector {
	ec.ctx = ctx
	return ec
}

// Check collects err if it is non-nil.
func (ec *ErrorCollector) Check(err error) {
	if err == nil {
		return
	}
	if ec.ctx != "" {
		err = fmt.Errorf("%s: %w", ec.ctx, err)
	}
	ec.errs = append(ec.errs, err)
}

// CheckMsg collects err wrapped with a custom message.
// The message is inserted between the context prefix and the original error.
func (ec *ErrorCollector) CheckMsg(err error, msg string) {
	if err == nil {
		return
	}
	ec.Check(fmt.Errorf("%s: %w", msg, err))
}

// CheckStruct runs struct-tag validation and collects one error per failed field.
func (ec *ErrorCollector) CheckStruct(v *validator.Validate, s any) {
	err := v.Struct(s)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ec.Check(err)
		return
	}
	for _, fe := range fieldErrs {
		ec.Check(describeFieldError(fe))
	}
}

// Len returns the number of collected errors.
func (ec *ErrorCollector) Len() int {
	return len(ec.errs)
}

// Error returns all accumulated errors joined together, or nil if none were collected.
func (ec *ErrorCollector) Error() error {
	return errors.Join(ec.errs...)
}

func describeFieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("invalid %s %q (must be one of: %s)", field, fmt.Sprint(fe.Value()), fe.Param())
	case "ifname":
		return fmt.Errorf("invalid interface name %q", fmt.Sprint(fe.Value()))
	case "gte", "min":
		return fmt.Errorf("%s %v below minimum %s", field, fe.Value(), fe.Param())
	case "lte", "max":
		return fmt.Errorf("%s %v above maximum %s", field, fe.Value(), fe.Param())
	default:
		return fmt.Errorf("%s failed %q validation", field, fe.Tag())
	}
}
