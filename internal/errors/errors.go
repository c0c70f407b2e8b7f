// Package errors provides error handling for girbind.
//
// This package re-exports github.com/cockroachdb/errors and declares the
// sentinel errors that cross the generator boundary:
//
//	// Schema errors stop generation
//	return errors.Wrapf(errors.ErrUnknownType, "%s: %q", path, name)
//
//	// Check errors
//	if errors.Is(err, errors.ErrConflictingRole) {
//	    // report the offending declaration
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
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
	Mark         = crdb.Mark
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
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Schema errors. Detected while building the registry or synthesizing
// records; fatal to the whole run.
var (
	// ErrUnknownType indicates a type reference that no registered descriptor matches
	ErrUnknownType = New("unknown type")

	// ErrConflictingRole indicates a parameter referenced both as closure and destroy target
	ErrConflictingRole = New("conflicting parameter role")

	// ErrMissingTarget indicates a relational attribute pointing outside the parameter list
	ErrMissingTarget = New("missing relational target")

	// ErrUnsupportedDirection indicates a conversion the descriptor cannot perform
	ErrUnsupportedDirection = New("unsupported conversion direction")

	// ErrInvalidBitfield indicates a bitfield member that is not a single-bit flag
	ErrInvalidBitfield = New("invalid bitfield member")

	// ErrUnsupportedVersion indicates an introspection repository or include version
	// that cannot be satisfied
	ErrUnsupportedVersion = New("unsupported version")
)

// Runtime crossing errors. Returned by the bridge package at run time of
// generated bindings.
var (
	// ErrDanglingReference indicates a proxy used after its native object was destroyed
	ErrDanglingReference = New("dangling native reference")

	// ErrUnknownCell indicates a closure cell that was never created or already released
	ErrUnknownCell = New("unknown closure cell")
)

// IsSchemaError reports whether err is one of the generation-time schema errors.
func IsSchemaError(err error) bool {
	return err != nil && IsAny(err,
		ErrUnknownType,
		ErrConflictingRole,
		ErrMissingTarget,
		ErrUnsupportedDirection,
		ErrInvalidBitfield,
		ErrUnsupportedVersion,
	)
}
