// Package repository implements data access over MySQL.  This file
// defines sentinel error values reused across repositories so handlers
// can map failure modes to HTTP responses without inspecting SQL errors.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update or delete cannot proceed because
// of conflicting state, such as verifying an already verified payment.
// Handlers translate this into HTTP 400 or 409.
var ErrConflict = errors.New("conflict")

// ErrAlreadyClaimed is returned when a registrar's claim loses the race:
// the conditional UPDATE matched no row because the sample is no longer
// unclaimed.  Handlers translate this into HTTP 404 per the workflow's
// uniform not-found policy.
var ErrAlreadyClaimed = errors.New("sample already claimed")

// ErrEmailExists is returned when a unique email or username constraint
// rejects an insert.
var ErrEmailExists = errors.New("email already exists")

// ErrBadReference is returned when an insert names a related row that
// does not exist.  Handlers translate this into HTTP 400.
var ErrBadReference = errors.New("referenced row does not exist")

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (error 1062 on a unique index).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

// isFKViolation reports whether err is a MySQL foreign-key error
// (error 1452, a child row naming a missing parent).
func isFKViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1452")
}
