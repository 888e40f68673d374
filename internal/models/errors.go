package models

import "errors"

var ErrNotImplemented = errors.New("not implemented")

var (
	// ErrResolverNotFound is returned when an explicitly named resolver is not registered.
	ErrResolverNotFound = errors.New("resolver not found")
	// ErrResolverUnavailable wraps backend I/O failures. It is transient.
	ErrResolverUnavailable = errors.New("resolver unavailable")
	// ErrAmbiguousIdentity is returned when a login or uid maps to more than one record in a single resolver.
	ErrAmbiguousIdentity = errors.New("ambiguous identity")
	// ErrNotUniquelyLocated is returned when a mutating operation cannot bind the user to exactly one resolver.
	ErrNotUniquelyLocated = errors.New("user not uniquely located")
	// ErrInvalidConstruction is returned for a uid without login and resolver.
	ErrInvalidConstruction = errors.New("can not create a user object from a uid without a resolver")
	ErrNotEditable         = errors.New("resolver is not editable")
	ErrUserExists          = errors.New("user already exists")
	ErrRealmNotFound       = errors.New("realm not found")
	ErrUnknownResolverType = errors.New("unknown resolver type")
	ErrConfigConflict      = errors.New("configuration conflict")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrInvalidParameter    = errors.New("invalid parameter")
)
