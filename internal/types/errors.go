package types

import "fmt"

// ValidationError indicates malformed or under-specified feature input.
// Recovered locally by re-prompting, never silently accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// DuplicateIDError indicates a generated feature ID collided with an
// existing row. Callers regenerate with the next sequence number.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("feature ID %s already exists", e.ID)
}

// NotFoundError indicates the requested feature does not exist
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("feature %s not found", e.ID)
}

// InvalidTransitionError indicates an attempt to move a feature or pipeline
// to a state that is not a legal successor. This is a programming or data
// error: it is surfaced, never auto-corrected, and leaves state unchanged.
type InvalidTransitionError struct {
	ID   string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s → %s", e.ID, e.From, e.To)
}

// SelfReferenceError indicates a relation pointing a feature at itself
type SelfReferenceError struct {
	ID string
}

func (e *SelfReferenceError) Error() string {
	return fmt.Sprintf("feature %s cannot relate to itself", e.ID)
}

// ExclusivityError indicates a second supersedes edge on a feature that is
// already superseded. A feature may be superseded by at most one other.
type ExclusivityError struct {
	TargetID     string
	SupersededBy string
}

func (e *ExclusivityError) Error() string {
	return fmt.Sprintf("feature %s is already superseded by %s", e.TargetID, e.SupersededBy)
}

// StageExecutionError indicates the external capability failed to produce
// output for a stage. Retried within the stage up to the revision limit.
type StageExecutionError struct {
	Stage Stage
	Err   error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s execution failed: %v", e.Stage, e.Err)
}

func (e *StageExecutionError) Unwrap() error { return e.Err }

// RevisionLimitError signals that the automatic revision limit for a stage
// was reached. Escalated to the human gate with the full feedback history,
// never auto-resolved.
type RevisionLimitError struct {
	Stage    string
	Limit    int
	Feedback []string
}

func (e *RevisionLimitError) Error() string {
	return fmt.Sprintf("revision limit (%d) exceeded for stage %s", e.Limit, e.Stage)
}

// PersistenceError indicates a ledger write failed. Fatal to the current
// orchestrator run: state must not advance past an unpersisted checkpoint.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
