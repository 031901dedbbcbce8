// Package errors defines the structured error type shared by the stowage
// packages. Every error carries a category and a stable code so callers can
// match with errors.Is against the exported sentinels without string
// comparison.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeDuplicate     ErrorType = "duplicate"
	ErrorTypeNotRegistered ErrorType = "not_registered"
	ErrorTypeImport        ErrorType = "import"
	ErrorTypeFinalized     ErrorType = "finalized"
	ErrorTypeCircular      ErrorType = "circular"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeIO            ErrorType = "io"
	ErrorTypeConfig        ErrorType = "config"
	ErrorTypeConstruction  ErrorType = "construction"
)

// Common error codes.
const (
	ErrCodeDuplicateRegistration = "DUPLICATE_REGISTRATION"
	ErrCodeDuplicateKey          = "DUPLICATE_KEY"
	ErrCodeNotRegistered         = "NOT_REGISTERED"
	ErrCodeInvalidImportTarget   = "INVALID_IMPORT_TARGET"
	ErrCodeFinalized             = "REGISTRY_FINALIZED"
	ErrCodeCircularDependency    = "CIRCULAR_DEPENDENCY"
	ErrCodeInvalidDirective      = "INVALID_DIRECTIVE"
	ErrCodeManualFile            = "MANUAL_FILE"
	ErrCodeConfigInvalid         = "INVALID_CONFIG"
	ErrCodeNoLoader              = "NO_LOADER"
	ErrCodeUnknownConstant       = "UNKNOWN_CONSTANT"
	ErrCodeOutsideDir            = "OUTSIDE_COMPONENT_DIR"
	ErrCodeDirScan               = "DIR_SCAN"
	ErrCodeLifecycle             = "LIFECYCLE"
)

// StowageError is a structured error type with context.
type StowageError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Key         string
	FilePath    string
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *StowageError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Key != "" {
		parts = append(parts, "key:"+e.Key)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *StowageError) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same type and code.
func (e *StowageError) Is(target error) bool {
	var t *StowageError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *StowageError) WithContext(key string, value interface{}) *StowageError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithKey records the registry key the error relates to.
func (e *StowageError) WithKey(key string) *StowageError {
	e.Key = key

	return e
}

// WithFilePath records the file the error relates to.
func (e *StowageError) WithFilePath(path string) *StowageError {
	e.FilePath = path

	return e
}

// Sentinels for errors.Is. They carry no key or message of their own.
var (
	ErrDuplicateRegistration = &StowageError{Type: ErrorTypeDuplicate, Code: ErrCodeDuplicateRegistration}
	ErrDuplicateKey          = &StowageError{Type: ErrorTypeDuplicate, Code: ErrCodeDuplicateKey}
	ErrNotRegistered         = &StowageError{Type: ErrorTypeNotRegistered, Code: ErrCodeNotRegistered}
	ErrInvalidImportTarget   = &StowageError{Type: ErrorTypeImport, Code: ErrCodeInvalidImportTarget}
	ErrFinalized             = &StowageError{Type: ErrorTypeFinalized, Code: ErrCodeFinalized}
	ErrCircularDependency    = &StowageError{Type: ErrorTypeCircular, Code: ErrCodeCircularDependency}
	ErrUnknownConstant       = &StowageError{Type: ErrorTypeConstruction, Code: ErrCodeUnknownConstant}
)

// Error creation functions

// NewDuplicateRegistrationError reports a staged component registered twice.
func NewDuplicateRegistrationError(name string) *StowageError {
	return &StowageError{
		Type:    ErrorTypeDuplicate,
		Code:    ErrCodeDuplicateRegistration,
		Message: fmt.Sprintf("bootable component %q was already registered", name),
		Key:     name,
	}
}

// NewDuplicateKeyError reports a key registered twice in one registry.
func NewDuplicateKeyError(key string) *StowageError {
	return &StowageError{
		Type:    ErrorTypeDuplicate,
		Code:    ErrCodeDuplicateKey,
		Message: "an item is already registered with this key",
		Key:     key,
	}
}

// NewNotRegisteredError reports a key that no source could provide.
func NewNotRegisteredError(key string) *StowageError {
	return &StowageError{
		Type:        ErrorTypeNotRegistered,
		Code:        ErrCodeNotRegistered,
		Message:     "nothing registered with this key",
		Key:         key,
		Recoverable: true,
	}
}

// NewInvalidImportTargetError reports an import binding of an unsupported shape.
func NewInvalidImportTargetError(target interface{}) *StowageError {
	return &StowageError{
		Type:    ErrorTypeImport,
		Code:    ErrCodeInvalidImportTarget,
		Message: fmt.Sprintf("import target must be a map of names to registries or a namespace, got %T", target),
	}
}

// NewFinalizedError reports a mutation attempted after finalization.
func NewFinalizedError(op string) *StowageError {
	return &StowageError{
		Type:    ErrorTypeFinalized,
		Code:    ErrCodeFinalized,
		Message: "registry is finalized, cannot " + op,
	}
}

// NewCircularDependencyError reports a key that was requested while it was
// already being loaded on the same call path.
func NewCircularDependencyError(key string, chain []string) *StowageError {
	return &StowageError{
		Type:    ErrorTypeCircular,
		Code:    ErrCodeCircularDependency,
		Message: "circular dependency detected: " + strings.Join(append(append([]string(nil), chain...), key), " -> "),
		Key:     key,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *StowageError {
	return &StowageError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *StowageError {
	return &StowageError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *StowageError {
	return &StowageError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewConstructionError creates an error raised by the engine itself while
// preparing to construct an instance (a missing loader or constant).
func NewConstructionError(code, message string) *StowageError {
	return &StowageError{
		Type:    ErrorTypeConstruction,
		Code:    code,
		Message: message,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *StowageError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsNotRegistered reports whether err signals an absent key.
func IsNotRegistered(err error) bool {
	return errors.Is(err, ErrNotRegistered)
}

// IsFinalized reports whether err signals a mutation on a finalized registry.
func IsFinalized(err error) bool {
	return errors.Is(err, ErrFinalized)
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error reporting for the CLI.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its category.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *StowageError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch se.Type {
	case ErrorTypeNotRegistered, ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Lookup failed",
			"type", se.Type,
			"code", se.Code,
			"key", se.Key)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", se.Type,
			"code", se.Code,
			"key", se.Key,
			"file", se.FilePath)
	}
}

// Is, As, Join and New forward to the standard library so callers importing
// this package under the name errors keep the usual helpers.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }

func New(text string) error { return errors.New(text) }
