package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateSubmission is returned when an identical write is already in flight.
var ErrDuplicateSubmission = errors.New("duplicate submission in progress")

// ValidationError reports a rejected input before any write happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IntegrityError reports a location deletion refused because items still reference it.
type IntegrityError struct {
	Location string
	Count    int
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("location %q still holds %d items", e.Location, e.Count)
}

// TransportError wraps a failure of the data-access collaborator.
type TransportError struct {
	Op  string
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }

// ConfirmationRequiredError is returned when an operation needs explicit
// confirmation before it may write.
type ConfirmationRequiredError struct {
	Reason string
	Items  []string
}

func (e ConfirmationRequiredError) Error() string {
	if len(e.Items) == 0 {
		return "confirmation required: " + e.Reason
	}
	return fmt.Sprintf("confirmation required: %s (%s)", e.Reason, strings.Join(e.Items, ", "))
}

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     int64
	Name   string
}

func (e NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.Name)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}
