package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/featforge/featforge/internal/types"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &types.ValidationError{Field: "title", Reason: "required"}, 2},
		{"not found", &types.NotFoundError{ID: "TS-001"}, 3},
		{"invalid transition", &types.InvalidTransitionError{ID: "TS-001", From: "requested", To: "validated"}, 4},
		{"self reference", &types.SelfReferenceError{ID: "TS-001"}, 5},
		{"exclusivity", &types.ExclusivityError{TargetID: "TS-001", SupersededBy: "TS-002"}, 5},
		{"revision limit", &types.RevisionLimitError{Stage: "plan_draft", Limit: 3}, 6},
		{"persistence", &types.PersistenceError{Op: "save", Err: errors.New("disk full")}, 7},
		{"generic", errors.New("boom"), 1},
		{"wrapped not found", fmt.Errorf("lookup: %w", &types.NotFoundError{ID: "TS-001"}), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.code {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.code)
			}
		})
	}
}
