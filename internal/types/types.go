package types

import (
	"fmt"
	"strings"
	"time"
)

// Feature is a unit of game functionality tracked from request to
// validated implementation.
type Feature struct {
	ID            string      `json:"feature_id"`
	Type          FeatureType `json:"type"`
	Status        Status      `json:"status"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Keywords      []string    `json:"keywords,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	FIPApprovedAt *time.Time  `json:"fip_approved_at,omitempty"`
	ImplementedAt *time.Time  `json:"implemented_at,omitempty"`
	ValidatedAt   *time.Time  `json:"validated_at,omitempty"`
	SupersededAt  *time.Time  `json:"superseded_at,omitempty"`
	CommitHash    string      `json:"commit_hash,omitempty"`
	ChangedFiles  []string    `json:"changed_files,omitempty"`
}

// Validate checks if the feature has valid field values
func (f *Feature) Validate() error {
	if len(strings.TrimSpace(f.Title)) == 0 {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(f.Title) > 500 {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("title must be 500 characters or less (got %d)", len(f.Title))}
	}
	if !f.Type.IsValid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("invalid feature type: %s", f.Type)}
	}
	if !f.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", f.Status)}
	}
	if f.Status == StatusSuperseded && f.SupersededAt == nil {
		return &ValidationError{Field: "superseded_at", Reason: "superseded features must record superseded_at"}
	}
	// Milestone timestamps must be monotonically non-decreasing when present.
	last := f.CreatedAt
	for _, m := range []struct {
		name string
		at   *time.Time
	}{
		{"fip_approved_at", f.FIPApprovedAt},
		{"implemented_at", f.ImplementedAt},
		{"validated_at", f.ValidatedAt},
		{"superseded_at", f.SupersededAt},
	} {
		if m.at == nil {
			continue
		}
		if m.at.Before(last) {
			return &ValidationError{Field: m.name, Reason: fmt.Sprintf("%s precedes an earlier milestone", m.name)}
		}
		last = *m.at
	}
	return nil
}

// FeatureType categorizes the kind of feature work
type FeatureType string

const (
	TypeNewFeature  FeatureType = "new_feature"
	TypeBugFix      FeatureType = "bug_fix"
	TypeRefactor    FeatureType = "refactor"
	TypeEnhancement FeatureType = "enhancement"
)

// IsValid checks if the feature type value is valid
func (t FeatureType) IsValid() bool {
	switch t {
	case TypeNewFeature, TypeBugFix, TypeRefactor, TypeEnhancement:
		return true
	}
	return false
}

// Status represents where a feature sits in its ledger lifecycle
type Status string

const (
	StatusRequested              Status = "requested"
	StatusInReview               Status = "in_review"
	StatusAwaitingImplementation Status = "awaiting_implementation"
	StatusAwaitingValidation     Status = "awaiting_validation"
	StatusValidated              Status = "validated"
	StatusSuperseded             Status = "superseded"
	StatusCancelled              Status = "cancelled"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusInReview, StatusAwaitingImplementation,
		StatusAwaitingValidation, StatusValidated, StatusSuperseded, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further status transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSuperseded || s == StatusCancelled
}

// ValidTransitions defines the legal successor statuses for each status.
//
// Status Machine Diagram:
//
//	requested → in_review → awaiting_implementation → awaiting_validation → validated → superseded
//	    ↓           ↓                 ↓                        ↓                ↓
//	cancelled   cancelled         cancelled                cancelled       (terminal)
//
// Cancelled is reachable from every non-terminal status. Superseded is
// reachable only from validated.
func (s Status) ValidTransitions() []Status {
	switch s {
	case StatusRequested:
		return []Status{StatusInReview, StatusCancelled}
	case StatusInReview:
		return []Status{StatusAwaitingImplementation, StatusCancelled}
	case StatusAwaitingImplementation:
		return []Status{StatusAwaitingValidation, StatusCancelled}
	case StatusAwaitingValidation:
		return []Status{StatusValidated, StatusCancelled}
	case StatusValidated:
		return []Status{StatusSuperseded}
	case StatusSuperseded, StatusCancelled:
		return []Status{} // Terminal
	default:
		return []Status{}
	}
}

// CanTransitionTo checks if a transition from this status to the target is legal
func (s Status) CanTransitionTo(target Status) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// Relation is a directed edge between two features
type Relation struct {
	ID        int64        `json:"id"`
	FeatureID string       `json:"feature_id"`
	Type      RelationType `json:"relation_type"`
	TargetID  string       `json:"target_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// RelationType categorizes the relationship between features
type RelationType string

const (
	RelBuildsOn      RelationType = "builds_on"
	RelSupersedes    RelationType = "supersedes"
	RelRefactors     RelationType = "refactors"
	RelFixes         RelationType = "fixes"
	RelDuplicate     RelationType = "duplicate"
	RelConflictsWith RelationType = "conflicts_with"
)

// IsValid checks if the relation type value is valid
func (r RelationType) IsValid() bool {
	switch r {
	case RelBuildsOn, RelSupersedes, RelRefactors, RelFixes, RelDuplicate, RelConflictsWith:
		return true
	}
	return false
}

// Document is one appended artifact version for a feature. Documents are
// append-only for audit; the current document of a type is the most
// recently created row for that type and feature.
type Document struct {
	ID        int64        `json:"id"`
	FeatureID string       `json:"feature_id"`
	Type      DocumentType `json:"document_type"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// DocumentType categorizes feature artifacts
type DocumentType string

const (
	DocRequest            DocumentType = "request"
	DocArchitecture       DocumentType = "architecture"
	DocImplementationPlan DocumentType = "implementation_plan"
	DocCodeChange         DocumentType = "code_change"
	DocReview             DocumentType = "review"
	DocADR                DocumentType = "adr"
)

// IsValid checks if the document type value is valid
func (d DocumentType) IsValid() bool {
	switch d {
	case DocRequest, DocArchitecture, DocImplementationPlan, DocCodeChange, DocReview, DocADR:
		return true
	}
	return false
}

// FeatureFilter narrows QueryFeatures results
type FeatureFilter struct {
	Status  *Status
	Type    *FeatureType
	Keyword string // free-text match against title/description/keywords
	Limit   int
}

// SearchHit is a keyword search result with its relevance score
type SearchHit struct {
	Feature *Feature
	Score   int
}

// Statistics summarizes the ledger contents
type Statistics struct {
	TotalFeatures int
	ByStatus      map[Status]int
	ByType        map[FeatureType]int
}

// Event is an audit trail entry recorded alongside every ledger mutation
type Event struct {
	ID        string    `json:"id"`
	FeatureID string    `json:"feature_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType categorizes audit trail events
type EventType string

const (
	EventCreated        EventType = "created"
	EventStatusChanged  EventType = "status_changed"
	EventDocumentAdded  EventType = "document_added"
	EventRelationAdded  EventType = "relation_added"
	EventImplemented    EventType = "implemented"
	EventPipelineOpened EventType = "pipeline_opened"
	EventPipelineClosed EventType = "pipeline_closed"
)
