// core/mset/errors.go
package mset

import "errors"

var (
	// ErrInputNotFound reports a measurement set path that does not exist.
	ErrInputNotFound = errors.New("measurement set not found")
	// ErrCorruptTable reports a missing or malformed required table or column.
	ErrCorruptTable = errors.New("corrupt table")
	// ErrUnsupportedLayout reports a polarization basis or column layout that
	// cannot be mapped to the output model.
	ErrUnsupportedLayout = errors.New("unsupported layout")
)
