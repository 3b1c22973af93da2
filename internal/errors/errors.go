package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a curation error code.
type ErrorCode string

const (
	ErrAmbiguousAddressing       ErrorCode = "AMBIGUOUS_ADDRESSING"       // 400
	ErrInvalidRequest            ErrorCode = "INVALID_REQUEST"            // 400
	ErrNotFound                  ErrorCode = "NOT_FOUND"                  // 404
	ErrFileNotFound              ErrorCode = "FILE_NOT_FOUND"             // 404
	ErrNameAlreadyExists         ErrorCode = "NAME_ALREADY_EXISTS"        // 409
	ErrUnsupportedFormat         ErrorCode = "UNSUPPORTED_FORMAT"         // 415
	ErrLengthMismatch            ErrorCode = "LENGTH_MISMATCH"            // 422
	ErrUnrecognizedConcentration ErrorCode = "UNRECOGNIZED_CONCENTRATION" // 422
	ErrCancelled                 ErrorCode = "CANCELLED"                  // 499
	ErrInternal                  ErrorCode = "INTERNAL"                   // 500
)

// CurationError represents a structured error with code, status, and details.
type CurationError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAmbiguousAddressing creates a 400 error for when both ID and name are provided.
func NewAmbiguousAddressing() *CurationError {
	return &CurationError{
		Code:    ErrAmbiguousAddressing,
		Status:  400,
		Message: "cannot specify both id and name; use one addressing mode",
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CurationError {
	return &CurationError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a device cannot be found.
func NewNotFound(identifier string) *CurationError {
	return &CurationError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("device not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *CurationError {
	return &CurationError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNameAlreadyExists creates a 409 error for name collisions.
func NewNameAlreadyExists(workspace, name string) *CurationError {
	return &CurationError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("device with name %q already exists in workspace %q", name, workspace),
		Details: map[string]any{"workspace": workspace, "name": name},
	}
}

// NewUnsupportedFormat creates a 415 error for an input file the readers cannot handle.
func NewUnsupportedFormat(path string, supported []string) *CurationError {
	return &CurationError{
		Code:    ErrUnsupportedFormat,
		Status:  415,
		Message: fmt.Sprintf("unsupported file format: %s (supported: %v)", path, supported),
		Details: map[string]any{"path": path, "supported": supported},
	}
}

// NewLengthMismatch creates a 422 error for parallel fields of different lengths.
func NewLengthMismatch(fields []string, counts []int) *CurationError {
	return &CurationError{
		Code:    ErrLengthMismatch,
		Status:  422,
		Message: fmt.Sprintf("parallel fields have different lengths: %v %v", fields, counts),
		Details: map[string]any{"fields": fields, "counts": counts},
	}
}

// NewUnrecognizedConcentration creates a 422 error for a concentration whose
// dimensionality is not a mass or molar concentration or a fraction.
func NewUnrecognizedConcentration(input, dimension string) *CurationError {
	return &CurationError{
		Code:    ErrUnrecognizedConcentration,
		Status:  422,
		Message: fmt.Sprintf("unrecognized concentration %q (dimension %s)", input, dimension),
		Details: map[string]any{"input": input, "dimension": dimension},
	}
}

// NewCancelled creates a 499 error for an operation stopped by its context.
func NewCancelled(op string) *CurationError {
	return &CurationError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CurationError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CurationError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err is, or wraps, a CurationError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CurationError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As returns the CurationError in err's chain, if any.
func As(err error) (*CurationError, bool) {
	var cErr *CurationError
	ok := stderrors.As(err, &cErr)
	return cErr, ok
}
