package gate

import (
	"context"
	"fmt"
)

// AutoGate answers gates from a pre-scripted queue of decisions. Used by
// the --auto CLI mode and by pipeline tests; it never blocks on a
// terminal.
type AutoGate struct {
	decisions   []Decision
	escalations []EscalationDecision

	// Requests records every gate presented, in order, for inspection
	Requests    []*ApprovalRequest
	Escalations []*EscalationRequest
}

var _ Gate = (*AutoGate)(nil)

// NewAutoGate creates a gate that approves everything
func NewAutoGate() *AutoGate {
	return &AutoGate{}
}

// Script queues decisions to be returned in order. Once the queue is
// drained the gate approves.
func (g *AutoGate) Script(decisions ...Decision) *AutoGate {
	g.decisions = append(g.decisions, decisions...)
	return g
}

// ScriptEscalations queues escalation decisions. Once drained the gate
// cancels, since unattended retries past the budget would loop forever.
func (g *AutoGate) ScriptEscalations(decisions ...EscalationDecision) *AutoGate {
	g.escalations = append(g.escalations, decisions...)
	return g
}

// RequestApproval returns the next scripted decision, or approval
func (g *AutoGate) RequestApproval(ctx context.Context, req *ApprovalRequest) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gate canceled: %w", err)
	}
	g.Requests = append(g.Requests, req)

	if len(g.decisions) > 0 {
		decision := g.decisions[0]
		g.decisions = g.decisions[1:]
		if decision.Action == ActionRequestChanges && decision.Feedback == "" {
			return nil, fmt.Errorf("scripted request_changes decision has no feedback")
		}
		return &decision, nil
	}
	return &Decision{Action: ActionApprove}, nil
}

// Escalate returns the next scripted escalation decision, or cancel
func (g *AutoGate) Escalate(ctx context.Context, req *EscalationRequest) (*EscalationDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gate canceled: %w", err)
	}
	g.Escalations = append(g.Escalations, req)

	if len(g.escalations) > 0 {
		decision := g.escalations[0]
		g.escalations = g.escalations[1:]
		if decision.Action == EscalationRetry && decision.Guidance == "" {
			return nil, fmt.Errorf("scripted retry decision has no guidance")
		}
		return &decision, nil
	}
	return &EscalationDecision{Action: EscalationCancel}, nil
}
