package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicatePlate     = errors.New("vehicle already parked")
	ErrNotFound           = errors.New("not found")
	ErrNetwork            = errors.New("network error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInactiveUser       = errors.New("user is inactive")
)

// ValidationError carries every failing field with its message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type DuplicatePlateError struct {
	Plate string
}

func (e *DuplicatePlateError) Error() string {
	return fmt.Sprintf("vehicle %s is already parked", e.Plate)
}

func (e *DuplicatePlateError) Is(target error) bool {
	return target == ErrDuplicatePlate
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s not found", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

const genericNetworkMessage = "could not reach the vehicle service"

// NetworkError reports a failed call to the remote vehicle service.
// Message holds the server's own error text when it sent one.
type NetworkError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = genericNetworkMessage
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return msg
}

// UserMessage is the text shown to the operator.
func (e *NetworkError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return genericNetworkMessage
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
