// Package errors provides the error handling and warning system for tabfit.
// It exposes structured error types for the model-selection workflow and
// wraps github.com/cockroachdb/errors so every error carries a stack trace.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("tabfit-Warning: %v\n", w)
	}
	// zerolog hook, injected lazily to avoid a circular import
	zerologWarnFunc func(warning error)
)

// SetWarningHandler sets the warning handler used across the library.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog-backed warning function.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through the zerolog hook when present, otherwise
// through the plain handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// SchemaError reports a declared column that is missing from a row or holds
// a value incompatible with its declared role. It is fatal: nothing fitted
// on the offending data is trustworthy.
type SchemaError struct {
	Op     string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tabfit: %s: schema violation on column %q: %s", e.Op, e.Column, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace attached.
func NewSchemaError(op, column, reason string) error {
	err := &SchemaError{Op: op, Column: column, Reason: reason}
	return errors.WithStack(err)
}

// ConfigError reports an invalid configuration value (fold count, split
// fraction, empty grid, worker count). Surfaced immediately, never retried.
type ConfigError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tabfit: invalid configuration for %q: %s (got: %v)", e.Param, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigError")
}

// NewConfigError creates a ConfigError with a stack trace attached.
func NewConfigError(param, reason string, value interface{}) error {
	err := &ConfigError{Param: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// FitError reports a candidate model that failed to fit. During a grid
// search it is isolated to its combination and recorded in the ranked
// table, not allowed to abort the search.
type FitError struct {
	Model  string
	Params string
	Err    error
}

func (e *FitError) Error() string {
	if e.Params != "" {
		return fmt.Sprintf("tabfit: %s failed to fit (%s): %v", e.Model, e.Params, e.Err)
	}
	return fmt.Sprintf("tabfit: %s failed to fit: %v", e.Model, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *FitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).
		Str("params", e.Params).
		AnErr("cause", e.Err).
		Str("type", "FitError")
}

// NewFitError creates a FitError with a stack trace attached.
func NewFitError(model, params string, err error) error {
	fitErr := &FitError{Model: model, Params: params, Err: err}
	return errors.WithStack(fitErr)
}

// LeakageError reports an operation that would let evaluation data
// influence fitted statistics, such as refitting a feature pipeline that
// has already been used to transform other rows.
type LeakageError struct {
	Component string
	Op        string
	Reason    string
}

func (e *LeakageError) Error() string {
	return fmt.Sprintf("tabfit: %s: %s rejected: %s", e.Component, e.Op, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *LeakageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("component", e.Component).
		Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "LeakageError")
}

// NewLeakageError creates a LeakageError with a stack trace attached.
func NewLeakageError(component, op, reason string) error {
	err := &LeakageError{Component: component, Op: op, Reason: reason}
	return errors.WithStack(err)
}

// NotFittedError is returned when Predict or Transform is called on an
// estimator that has not been fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tabfit: %s: this estimator is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError reports an input whose dimensions differ from what the
// fitted estimator expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("tabfit: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValueError is raised for arguments whose value is invalid or out of range.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("tabfit: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common error variables
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an empty dataset or matrix is passed.
	ErrEmptyData = New("empty data")

	// ErrEmptyGrid is returned when a hyperparameter grid has no axes or an
	// axis has no candidate values.
	ErrEmptyGrid = New("empty hyperparameter grid")

	// ErrSingularMatrix is returned when a normal-equations solve meets a
	// singular design matrix.
	ErrSingularMatrix = New("singular matrix")
)
