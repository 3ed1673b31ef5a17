/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
// Package status holds the engine-wide result codes (spec section 6) and
// the error type that carries them across API boundaries. Errors are
// values here, never exceptions: the query-text parsers also return their
// failures as errors carrying QueryParseError.
package status

import "fmt"

// Code is one of the fixed engine-wide result codes.
type Code int

const (
	Ok Code = iota
	NotFound
	BadInput
	Overflow
	IoError
	Closed
	NotPermitted
	Access
	QueryParseError
	Internal
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case NotFound:
		return "NotFound"
	case BadInput:
		return "BadInput"
	case Overflow:
		return "Overflow"
	case IoError:
		return "IoError"
	case Closed:
		return "Closed"
	case NotPermitted:
		return "NotPermitted"
	case Access:
		return "Access"
	case QueryParseError:
		return "QueryParseError"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error pairs a Code with a human-readable cause. nil *Error is not a valid
// way to express Ok; callers use a plain nil error for success.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a status.Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err, defaulting to Internal for any error
// that did not originate as a status.Error (including a nil err, which maps
// to Ok).
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return Internal
}
