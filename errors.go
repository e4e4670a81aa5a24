package replica

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrInvalidType indicates discovery was given a nil or non-struct type.
	ErrInvalidType = errors.New("invalid type")

	// ErrTypeMismatch indicates an annotation property cannot be narrowed to the requested type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidTag indicates a clone struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidAnnotation indicates a side-table annotation is malformed or targets a missing field.
	ErrInvalidAnnotation = errors.New("invalid annotation")

	// ErrMethodNotFound indicates a cloning method named by UseCloningMethod does not exist.
	ErrMethodNotFound = errors.New("cloning method not found")

	// ErrMethodSignature indicates a cloning method has an unusable signature.
	ErrMethodSignature = errors.New("invalid cloning method signature")

	// ErrStrategy indicates a cloning method returned an error.
	ErrStrategy = errors.New("cloning method failed")
)

// TypeError reports a type the engine cannot work with.
type TypeError struct {
	Err  error        // Underlying sentinel error (ErrInvalidType)
	Type reflect.Type // Offending type, nil when absent
}

func (e *TypeError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("%s: nil type", e.Err.Error())
	}
	return fmt.Sprintf("%s %s (kind %s)", e.Err.Error(), e.Type, e.Type.Kind())
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// TagError represents a malformed annotation on a field.
// It wraps a sentinel error with the field, the raw tag and the reason.
type TagError struct {
	Err    error  // Underlying sentinel error (ErrInvalidTag, ErrInvalidAnnotation)
	Type   string // Declaring type name
	Field  string // Field name
	Tag    string // Raw tag value, empty for side-table annotations
	Reason string // What is wrong with it
}

func (e *TagError) Error() string {
	msg := e.Err.Error()
	if e.Tag != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Tag)
	}
	if e.Type != "" || e.Field != "" {
		msg = fmt.Sprintf("%s (field %s.%s)", msg, e.Type, e.Field)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

func (e *TagError) Unwrap() error {
	return e.Err
}

// PropertyError represents a failed annotation property lookup.
type PropertyError struct {
	Err      error  // Underlying sentinel error (ErrTypeMismatch)
	Member   string // Member the annotation is attached to
	Kind     string // Annotation kind
	Property string // Property name
	Want     string // Requested type
	Got      string // Stored type
	Cause    error  // Parse or conversion failure, if any
}

func (e *PropertyError) Error() string {
	msg := fmt.Sprintf("%s: %s.%s on %s is %s, want %s",
		e.Err.Error(), e.Kind, e.Property, e.Member, e.Got, e.Want)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

// StrategyError represents a failure resolving or running a cloning method.
type StrategyError struct {
	Err    error  // Underlying sentinel error (ErrMethodNotFound, ErrMethodSignature, ErrStrategy)
	Type   string // Owning type
	Field  string // Field the method produces
	Method string // Method name
	Cause  error  // Error returned by the method, if any
}

func (e *StrategyError) Error() string {
	msg := fmt.Sprintf("%s: %s.%s (field %s)", e.Err.Error(), e.Type, e.Method, e.Field)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// newTypeError creates a TypeError for an unusable type.
func newTypeError(t reflect.Type) error {
	return &TypeError{
		Err:  ErrInvalidType,
		Type: t,
	}
}

// newTagError creates a TagError for a malformed annotation.
func newTagError(sentinel error, typeName, field, tag, reason string) error {
	return &TagError{
		Err:    sentinel,
		Type:   typeName,
		Field:  field,
		Tag:    tag,
		Reason: reason,
	}
}

// newPropertyError creates a PropertyError for a failed narrowing.
func newPropertyError(m Member, kind, property string, want reflect.Type, got any, cause error) error {
	return &PropertyError{
		Err:      ErrTypeMismatch,
		Member:   m.String(),
		Kind:     kind,
		Property: property,
		Want:     want.String(),
		Got:      fmt.Sprintf("%T", got),
		Cause:    cause,
	}
}

// newStrategyError creates a StrategyError for cloning method failures.
func newStrategyError(sentinel error, typeName, field, method string, cause error) error {
	return &StrategyError{
		Err:    sentinel,
		Type:   typeName,
		Field:  field,
		Method: method,
		Cause:  cause,
	}
}
