// Package import_pkg loads the registry workbook and the boundary files into
// records. A malformed row is logged and counted; only an unreadable source
// fails the load.
package import_pkg

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrMissingSource is returned when an input file does not exist.
	ErrMissingSource = errors.New("missing source")
	// ErrParseFailure is returned when an input file cannot be decoded.
	ErrParseFailure = errors.New("parse failure")
)

// SourceError describes a fatal problem with one input.
type SourceError struct {
	Path string
	Kind error
	Err  error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SourceError) Is(target error) bool {
	return target == e.Kind
}

// Stats counts what a load did with the rows it read.
type Stats struct {
	Read         int `json:"read"`
	Loaded       int `json:"loaded"`
	Skipped      int `json:"skipped"`
	InvalidCodes int `json:"invalid_codes"`
	Errors       int `json:"errors"`
}

func checkSource(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SourceError{Path: path, Kind: ErrMissingSource, Err: err}
		}
		return &SourceError{Path: path, Kind: ErrParseFailure, Err: err}
	}
	return nil
}
