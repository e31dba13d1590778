// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package errors

import "fmt"

// Status is an operation status code.
type Status uint64

const (
	// OK means the operation succeeded.
	OK Status = 200

	// BadRequest means the request was malformed.
	BadRequest Status = 400

	// Unauthorized means the caller does not hold the role required by the
	// operation.
	Unauthorized Status = 401

	// InsufficientBalance means the account's free balance cannot cover the
	// requested amount.
	InsufficientBalance Status = 402

	// NotFound means the task or record does not exist.
	NotFound Status = 404

	// NotAllowed means the operation is not permitted on the resource, such
	// as a write to a read-only change set.
	NotAllowed Status = 405

	// NotReady means the resource has been closed or is not yet open.
	NotReady Status = 406

	// WrongState means the task is not in the state the operation requires.
	WrongState Status = 409

	// Conflict means the operation collides with an existing record, such as
	// an outstanding challenge.
	Conflict Status = 410

	// Expired means a deadline has passed.
	Expired Status = 411

	// TimeoutNotReached means a height-gated transition was attempted before
	// its guard opened.
	TimeoutNotReached Status = 425

	// RevealMismatch means a revealed value does not hash to its commitment.
	RevealMismatch Status = 430

	// SecretLeaked means a committed secret surfaced before its sanctioned
	// reveal.
	SecretLeaked Status = 431

	// RateUnavailable means the exchange rate source could not produce a
	// usable rate.
	RateUnavailable Status = 503

	// InternalError means something went wrong that should not have.
	InternalError Status = 500

	// UnknownError means the cause is unknown.
	UnknownError Status = 520
)

var statusNames = map[Status]string{
	OK:                  "ok",
	BadRequest:          "bad request",
	Unauthorized:        "unauthorized",
	InsufficientBalance: "insufficient balance",
	NotFound:            "not found",
	NotAllowed:          "not allowed",
	NotReady:            "not ready",
	WrongState:          "wrong state",
	Conflict:            "conflict",
	Expired:             "expired",
	TimeoutNotReached:   "timeout not reached",
	RevealMismatch:      "reveal mismatch",
	SecretLeaked:        "secret leaked",
	RateUnavailable:     "rate unavailable",
	InternalError:       "internal error",
	UnknownError:        "unknown error",
}

// String returns the name of the status.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint64(s))
}

// CallSite records where an error was created.
type CallSite struct {
	FuncName string
	File     string
	Line     int64
}

// Error is an error with a status code, an optional cause and the call stack
// leading to it.
type Error struct {
	Message   string
	Code      Status
	Cause     *Error
	CallStack []*CallSite
}
