package domain

import "fmt"

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s", e.Field)
}

// DuplicateSerialError reports an identity collision.
type DuplicateSerialError struct {
	Serial string
	// Edit marks collisions raised while changing an existing record's serial.
	Edit bool
}

func (e DuplicateSerialError) Error() string {
	if e.Edit {
		return fmt.Sprintf("Error: Serial %q already belongs to another item.", e.Serial)
	}
	return fmt.Sprintf("Error: Serial %q already exists.", e.Serial)
}

// NotFoundError reports a missing partition, record or list value.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ConflictError reports a destination name that is already taken or a
// resource that cannot be changed in its current state.
type ConflictError struct {
	Entity EntityType
	Name   string
	Reason string
}

func (e ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %q %s", e.Entity, e.Name, e.Reason)
	}
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}

// ExternalServiceError wraps a failure in the cache, blob store or document
// delivery collaborators.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e ExternalServiceError) Unwrap() error { return e.Err }
