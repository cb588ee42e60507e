package domain

import "errors"

// Build failure classes. Callers wrap these with %w and test with errors.Is.
var (
	// ErrFetch marks a failed download: network error, timeout or non-2xx status.
	ErrFetch = errors.New("fetch failed")
	// ErrDecode marks a gzip or JSON decoding failure.
	ErrDecode = errors.New("decode failed")
	// ErrSchema marks a record missing a required field.
	ErrSchema = errors.New("schema violation")
	// ErrWrite marks a failed partition file write.
	ErrWrite = errors.New("write failed")
)

// Process exit codes for the build command.
const (
	ExitOK     = 0
	ExitOther  = 1
	ExitFetch  = 2
	ExitDecode = 3
	ExitSchema = 4
	ExitWrite  = 5
)

// ExitCode maps a build error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrFetch):
		return ExitFetch
	case errors.Is(err, ErrSchema):
		return ExitSchema
	case errors.Is(err, ErrDecode):
		return ExitDecode
	case errors.Is(err, ErrWrite):
		return ExitWrite
	default:
		return ExitOther
	}
}
