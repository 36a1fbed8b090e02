// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the CodeGuardian CLI.
//
// UserError carries what went wrong, why it happened and how to fix it,
// plus the exit code the process should leave with.
//
// # Exit Codes
//
//   - ExitClean (0): no findings at or above the fail threshold
//   - ExitFindings (1): findings at or above the fail threshold
//   - ExitConfig (2): configuration or usage error
//   - ExitInternal (3): internal error, invariant violation
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for the CLI.
const (
	// ExitClean indicates a run with nothing at or above the fail threshold.
	ExitClean = 0

	// ExitFindings indicates findings at or above the fail threshold.
	ExitFindings = 1

	// ExitConfig indicates configuration or usage errors.
	ExitConfig = 2

	// ExitInternal indicates a bug that should be reported.
	ExitInternal = 3
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong
//   - Cause: why it happened
//   - Fix: how to fix it
type UserError struct {
	Message string
	Cause   string
	Fix     string

	// ExitCode is used when the process exits due to this error.
	ExitCode int

	// Err is the underlying error (optional), for errors.Is/As chains.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration/usage error with exit code 2.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitConfig,
		Err:      err,
	}
}

// NewInternalError creates an internal error with exit code 3.
//
// Use this for invariant violations; the Fix line points at the issue
// tracker rather than at the user's own setup.
func NewInternalError(msg string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    "This is a bug in codeguardian, not in your project",
		Fix:      "Re-run with --debug and report the output",
		ExitCode: ExitInternal,
		Err:      err,
	}
}

// Format renders the error for the terminal. Colors are suppressed when
// noColor is set or the global color.NoColor flag is active.
func (e *UserError) Format(noColor bool) string {
	var b strings.Builder

	label := func(c *color.Color, s string) string {
		if noColor {
			return s
		}
		return c.Sprint(s)
	}

	fmt.Fprintf(&b, "%s %s\n", label(color.New(color.FgRed, color.Bold), "Error:"), e.Message)
	if e.Cause != "" {
		fmt.Fprintf(&b, "%s %s\n", label(color.New(color.FgYellow), "Cause:"), e.Cause)
	}
	if e.Fix != "" {
		fmt.Fprintf(&b, "%s   %s\n", label(color.New(color.FgCyan), "Fix:"), e.Fix)
	}
	return b.String()
}

// ToJSON returns the machine-readable form used with --json output.
func (e *UserError) ToJSON() map[string]any {
	out := map[string]any{
		"error":     e.Message,
		"exit_code": e.ExitCode,
	}
	if e.Cause != "" {
		out["cause"] = e.Cause
	}
	if e.Fix != "" {
		out["fix"] = e.Fix
	}
	return out
}

// FatalError prints the error and exits with its code. Plain errors that
// are not UserError exit as internal errors.
func FatalError(err error, jsonOutput bool) {
	ue, ok := err.(*UserError)
	if !ok {
		ue = NewInternalError("Unexpected error", err)
	}
	if jsonOutput {
		json.NewEncoder(os.Stderr).Encode(ue.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, ue.Format(false))
	}
	os.Exit(ue.ExitCode)
}
