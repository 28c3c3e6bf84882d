package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ConflictError is returned when a unique field is already taken.
type ConflictError struct {
	Resource string
	Field    string
}

func (e ConflictError) Error() string {
	if e.Resource == "" {
		return "conflict"
	}
	return fmt.Sprintf("%s %s taken", e.Resource, e.Field)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// ErrUsernameTaken is returned by user creation when the username exists.
var ErrUsernameTaken = ConflictError{Resource: "user", Field: "username"}

// ReferenceError is returned when an entity refers to another one that does not exist.
type ReferenceError struct {
	Resource  string
	Reference string
}

func (e ReferenceError) Error() string {
	if e.Resource == "" {
		return "dangling reference"
	}
	return fmt.Sprintf("%s: %s not found", e.Resource, e.Reference)
}

func (e ReferenceError) Is(target error) bool {
	_, ok := target.(ReferenceError)
	if ok {
		return true
	}
	_, ok = target.(*ReferenceError)
	return ok
}

var ErrReference = ReferenceError{}

// ErrOwnerNotFound is returned when a document is created for a missing owner.
var ErrOwnerNotFound = ReferenceError{Resource: "document", Reference: "owner"}

// ValidationError rejects malformed input at the boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

var ErrInvalidCredentials = errors.New("invalid credentials")
