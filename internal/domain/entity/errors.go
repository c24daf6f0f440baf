package entity

import (
	"errors"
	"fmt"
)

var (
	ErrFormat         = errors.New("malformed audit line")
	ErrInitialization = errors.New("parser initialization failed")
)

// FormatError reports a line that can never be parsed.
type FormatError struct {
	Line   string
	Reason string
	Err    error
}

func NewFormatError(line, reason string, err error) *FormatError {
	return &FormatError{Line: line, Reason: reason, Err: err}
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (line %q): %v", ErrFormat, e.Reason, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %s (line %q)", ErrFormat, e.Reason, e.Line)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

type InitializationError struct {
	Parser string
	Err    error
}

func NewInitializationError(parser string, err error) *InitializationError {
	return &InitializationError{Parser: parser, Err: err}
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInitialization, e.Parser, e.Err)
}

func (e *InitializationError) Is(target error) bool {
	return target == ErrInitialization
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}
