// Package gate implements the human approval checkpoints between
// pipeline stages.
package gate

import (
	"context"

	"github.com/featforge/featforge/internal/types"
)

// Action is a human's disposition at an approval gate
type Action string

const (
	ActionApprove        Action = "approve"
	ActionRequestChanges Action = "request_changes"
	ActionCancel         Action = "cancel"
)

// EscalationAction is a human's disposition when a stage exhausts its
// revision budget.
type EscalationAction string

const (
	EscalationRetry   EscalationAction = "retry_with_override" // Retry the stage with human guidance
	EscalationAbandon EscalationAction = "abandon"             // Accept the last draft as-is and continue
	EscalationCancel  EscalationAction = "cancel"              // Cancel the feature entirely
)

// ApprovalRequest presents a stage document for human review
type ApprovalRequest struct {
	Feature   *types.Feature
	Stage     types.Stage // The review stage being gated
	Document  string      // The document under review
	Revisions int         // Reviewer-requested revisions already consumed
}

// Decision is the human's response at an approval gate. Feedback is
// required when the action is request_changes; human-requested changes
// do not count against the stage's revision budget.
type Decision struct {
	Action   Action
	Feedback string
}

// EscalationRequest asks a human what to do after the revision budget ran out
type EscalationRequest struct {
	Feature         *types.Feature
	Stage           types.Stage
	Document        string   // The last draft produced
	FeedbackHistory []string // Every reviewer complaint, oldest first
}

// EscalationDecision is the human's response to an escalation. Guidance
// is required when the action is retry_with_override.
type EscalationDecision struct {
	Action   EscalationAction
	Guidance string
}

// Gate collects human decisions at pipeline checkpoints
type Gate interface {
	// RequestApproval blocks until the human approves, requests changes,
	// or cancels.
	RequestApproval(ctx context.Context, req *ApprovalRequest) (*Decision, error)

	// Escalate blocks until the human resolves an exhausted revision budget.
	Escalate(ctx context.Context, req *EscalationRequest) (*EscalationDecision, error)
}
