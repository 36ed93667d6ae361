package dbtype

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateType is returned when adding a logical type that is already registered.
	ErrDuplicateType = errors.New("dbtype: type already registered")

	// ErrMissingBaseType is returned when overriding a logical type that was never registered.
	ErrMissingBaseType = errors.New("dbtype: base type not registered")

	// ErrUnknownType is returned when looking up a logical type that is not registered.
	ErrUnknownType = errors.New("dbtype: unknown type")
)

// DuplicateTypeError reports an Add for a logical name that already has a handler.
type DuplicateTypeError struct {
	Name     string
	Existing string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("type %q already registered with handler %q", e.Name, e.Existing)
}

func (e *DuplicateTypeError) Is(target error) bool {
	return target == ErrDuplicateType
}

// MissingBaseTypeError reports an Override for a logical name that has no handler.
type MissingBaseTypeError struct {
	Name string
}

func (e *MissingBaseTypeError) Error() string {
	return fmt.Sprintf("type %q cannot be overridden: not registered", e.Name)
}

func (e *MissingBaseTypeError) Is(target error) bool {
	return target == ErrMissingBaseType
}

// UnknownTypeError reports a lookup for an unregistered logical name.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.Name)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// IsDuplicateType checks if an error is a duplicate type error
func IsDuplicateType(err error) bool {
	return errors.Is(err, ErrDuplicateType)
}

// IsMissingBaseType checks if an error is a missing base type error
func IsMissingBaseType(err error) bool {
	return errors.Is(err, ErrMissingBaseType)
}

// IsUnknownType checks if an error is an unknown type error
func IsUnknownType(err error) bool {
	return errors.Is(err, ErrUnknownType)
}
