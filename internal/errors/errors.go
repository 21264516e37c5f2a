// Package errors provides error handling for semstore.
//
// This package re-exports github.com/cockroachdb/errors so that every
// package wraps, marks and inspects errors the same way:
//
//	if err := tx.Commit(); err != nil {
//	    return errors.Wrap(err, "update data: commit")
//	}
//
// Driver failures are marked with ErrStorageUnavailable by the store, so
// batch callers can distinguish them from policy outcomes:
//
//	if errors.Is(err, errors.ErrStorageUnavailable) { ... }
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// Multiple errors
var (
	CombineErrors = crdb.CombineErrors
	Join          = crdb.Join
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	As             = crdb.As
	Mark           = crdb.Mark
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
	FlattenHints   = crdb.FlattenHints
)

// Sentinels shared across packages. Wrap or Mark them to add context
// while keeping errors.Is working.
var (
	// ErrStorageUnavailable marks any failure of the backing relational store.
	ErrStorageUnavailable = New("storage unavailable")

	// ErrInvalidSubject indicates text that does not name a storable subject.
	ErrInvalidSubject = New("invalid subject")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = New("not found")
)

// Storage marks err as a storage failure and wraps it with msg.
// Returns nil for a nil err.
func Storage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrStorageUnavailable)
}

// Storagef is Storage with a format string.
func Storagef(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, format, args...), ErrStorageUnavailable)
}

// IsStorageError reports whether err is, or wraps, a storage failure.
func IsStorageError(err error) bool {
	return err != nil && Is(err, ErrStorageUnavailable)
}
