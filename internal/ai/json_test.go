package ai

import (
	"testing"
)

type testPayload struct {
	Status   string  `json:"status"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

func TestParseDirect(t *testing.T) {
	result := Parse[testPayload](`{"status": "approved", "score": 0.9}`, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Data.Status != "approved" || result.Data.Score != 0.9 {
		t.Errorf("unexpected data: %+v", result.Data)
	}
}

func TestParseCodeFences(t *testing.T) {
	inputs := []string{
		"```json\n{\"status\": \"approved\"}\n```",
		"```\n{\"status\": \"approved\"}\n```",
		"```json{\"status\": \"approved\"}```",
	}
	for _, input := range inputs {
		result := Parse[testPayload](input, "test")
		if !result.Success {
			t.Errorf("parse failed for %q: %s", input, result.Error)
			continue
		}
		if result.Data.Status != "approved" {
			t.Errorf("unexpected data for %q: %+v", input, result.Data)
		}
	}
}

func TestParseTrailingCommas(t *testing.T) {
	result := Parse[testPayload](`{"status": "approved", "score": 0.5,}`, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Data.Score != 0.5 {
		t.Errorf("unexpected data: %+v", result.Data)
	}
}

func TestParseUnquotedKeys(t *testing.T) {
	result := Parse[testPayload](`{status: "approved"}`, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Data.Status != "approved" {
		t.Errorf("unexpected data: %+v", result.Data)
	}
}

func TestParseMixedContent(t *testing.T) {
	input := `Here is my assessment of the document:

{"status": "needs_revision", "feedback": "missing risk section"}

Let me know if you need more detail.`
	result := Parse[testPayload](input, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Data.Status != "needs_revision" || result.Data.Feedback != "missing risk section" {
		t.Errorf("unexpected data: %+v", result.Data)
	}
}

func TestParseArrayNotTruncatedToObject(t *testing.T) {
	result := Parse[[]testPayload](`[{"status": "a"}, {"status": "b"}]`, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 elements, got %d", len(result.Data))
	}
}

func TestParseApostrophesPreserved(t *testing.T) {
	result := Parse[testPayload](`{"status": "approved", "feedback": "it's fine"}`, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Data.Feedback != "it's fine" {
		t.Errorf("apostrophe mangled: %q", result.Data.Feedback)
	}
}

func TestParseFailure(t *testing.T) {
	result := Parse[testPayload]("no json here at all", "review response")
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error == "" {
		t.Error("expected error message")
	}
}

func TestParseEmptyInput(t *testing.T) {
	result := Parse[testPayload]("   ", "test")
	if result.Success {
		t.Fatal("expected failure for blank input")
	}
}
