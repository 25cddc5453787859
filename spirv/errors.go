// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package spirv

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes module analysis and patching errors.
type ErrorKind uint8

const (
	// ErrFormat indicates a malformed module: bad magic, a zero word count,
	// or an instruction that runs past the end of the stream.
	ErrFormat ErrorKind = iota

	// ErrPrecondition indicates that a pass did not find the shape it needs,
	// such as an output variable or a built-in position decoration.
	ErrPrecondition

	// ErrUnsupportedShape indicates a resource type that the reflection
	// layout rules do not cover.
	ErrUnsupportedShape

	// ErrUnknownKey indicates a declaration category the resolver cannot
	// match or synthesize.
	ErrUnknownKey
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrFormat:
		return "Format"
	case ErrPrecondition:
		return "Precondition"
	case ErrUnsupportedShape:
		return "UnsupportedShape"
	case ErrUnknownKey:
		return "UnknownKey"
	default:
		return "Unknown"
	}
}

// Error describes a failure while decoding, patching or reflecting a module.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Message provides details about the error.
	Message string

	// Offset is the word offset of the offending instruction, or -1.
	Offset int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("spirv %s at word %d: %s", e.Kind, e.Offset, e.Message)
	}
	return fmt.Sprintf("spirv %s: %s", e.Kind, e.Message)
}

// NewError creates an error without a word offset.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Offset:  -1,
	}
}

// NewErrorAt creates an error pointing at the instruction at offset.
func NewErrorAt(kind ErrorKind, offset int, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsFormat reports whether err is a malformed-module error.
func IsFormat(err error) bool {
	return IsKind(err, ErrFormat)
}

// IsPrecondition reports whether err is a missing-shape error.
func IsPrecondition(err error) bool {
	return IsKind(err, ErrPrecondition)
}

// IsUnsupportedShape reports whether err is a reflection layout error.
func IsUnsupportedShape(err error) bool {
	return IsKind(err, ErrUnsupportedShape)
}
