package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrDefinitionNotFound     = errors.New("workflow definition not found")
	ErrInstanceNotFound       = errors.New("workflow instance not found")
	ErrEntityNotFound         = errors.New("entity not found")
	ErrConcurrentModification = errors.New("instance modified concurrently")
)

// MalformedIdentifierError is returned when a value matches neither the
// binary nor the hex identifier form.
type MalformedIdentifierError struct {
	Value string
}

func (e *MalformedIdentifierError) Error() string {
	return fmt.Sprintf("malformed identifier %q", e.Value)
}

// UnknownTenantError is returned when a tenant code does not correspond to
// a provisioned tenant. Callers must never fall back to the system database
// on this error.
type UnknownTenantError struct {
	Code string
}

func (e *UnknownTenantError) Error() string {
	return fmt.Sprintf("tenant %q is not provisioned", e.Code)
}

// NoActiveDefinitionError is returned when no active definition exists for
// a workflow code.
type NoActiveDefinitionError struct {
	Code string
}

func (e *NoActiveDefinitionError) Error() string {
	return fmt.Sprintf("no active workflow definition for code %q", e.Code)
}

// AmbiguousDefinitionError reports more than one active definition for the
// same code. The store prevents this on write; seeing it on read means the
// data predates that guard.
type AmbiguousDefinitionError struct {
	Code  string
	Count int
}

func (e *AmbiguousDefinitionError) Error() string {
	return fmt.Sprintf("%d active workflow definitions for code %q, want exactly 1", e.Count, e.Code)
}

// NoMatchingTransitionError is returned when an event is not valid in the
// instance's current state. It is a business-rule rejection, not a fault.
type NoMatchingTransitionError struct {
	State string
	Event string
}

func (e *NoMatchingTransitionError) Error() string {
	return fmt.Sprintf("no transition for event %q from state %q", e.Event, e.State)
}

// ConditionNotMetError names the first guard condition that rejected a
// transition.
type ConditionNotMetError struct {
	Transition string
	Condition  string
}

func (e *ConditionNotMetError) Error() string {
	return fmt.Sprintf("transition %q rejected: condition %q not met", e.Transition, e.Condition)
}

// ForbiddenError is returned when the acting role does not satisfy a
// transition's role requirement.
type ForbiddenError struct {
	Transition   string
	RequiredRole string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("transition %q requires role %q", e.Transition, e.RequiredRole)
}

// InvalidDefinitionError reports a structurally broken workflow definition,
// surfaced at write or load time rather than at transition time.
type InvalidDefinitionError struct {
	Code   string
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid workflow definition %q: %s", e.Code, e.Reason)
}

// IsRejection reports whether err is a business-rule rejection (invalid
// event, failed guard, missing role) as opposed to a system fault. The HTTP
// layer reports these to the caller without logging them as errors.
func IsRejection(err error) bool {
	var noMatch *NoMatchingTransitionError
	var notMet *ConditionNotMetError
	var forbidden *ForbiddenError
	return errors.As(err, &noMatch) || errors.As(err, &notMet) || errors.As(err, &forbidden)
}
