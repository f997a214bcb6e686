package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Pipeline error taxonomy.
var (
	ErrInvalidDocument    = errors.New("invalid document")
	ErrEngineFailure      = errors.New("engine failure")
	ErrAllEnginesFailed   = errors.New("all engines failed")
	ErrExtractionDegraded = errors.New("extraction degraded")
	ErrValidation         = errors.New("validation failed")
	ErrMappingSkipped     = errors.New("mapping skipped")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// PipelineError is returned by the processor for document-level failures.
// Diagnostics holds whatever was accumulated before the failure; it is typed
// as any to keep this package free of entity imports.
type PipelineError struct {
	Kind        error
	Stage       string
	Diagnostics any
	Cause       error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
}

// Is matches the sentinel kind so callers can use errors.Is(err, ErrAllEnginesFailed).
func (e *PipelineError) Is(target error) bool {
	return target == e.Kind
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError builds a PipelineError for the given stage.
func NewPipelineError(kind error, stage string, diag any, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Diagnostics: diag, Cause: cause}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// GRPCStatus maps a pipeline error onto a gRPC status error.
func GRPCStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidDocument), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMappingSkipped):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrAllEnginesFailed), errors.Is(err, ErrExtractionDegraded):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
