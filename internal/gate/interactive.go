package gate

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/featforge/featforge/internal/types"
)

// InteractiveGate prompts a human on the terminal for gate decisions
type InteractiveGate struct {
	rl *readline.Instance
}

var _ Gate = (*InteractiveGate)(nil)

// NewInteractiveGate creates a terminal-backed approval gate
func NewInteractiveGate() (*InteractiveGate, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &InteractiveGate{rl: rl}, nil
}

// Close releases the terminal
func (g *InteractiveGate) Close() error {
	return g.rl.Close()
}

// RequestApproval shows the stage document and prompts for a decision
func (g *InteractiveGate) RequestApproval(ctx context.Context, req *ApprovalRequest) (*Decision, error) {
	displayDocument(req)

	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("%s %s / %s / %s\n", bold("Decision:"),
		green("[a]pprove"), yellow("[r]equest changes"), red("[c]ancel"))

	for {
		line, err := g.readLine(ctx)
		if err != nil {
			return nil, err
		}

		action, ok := parseApprovalChoice(line)
		if !ok {
			fmt.Println("Please enter a, r, or c.")
			continue
		}

		if action != ActionRequestChanges {
			return &Decision{Action: action}, nil
		}

		fmt.Println("Describe the changes you want:")
		feedback, err := g.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(feedback) == "" {
			fmt.Println("Feedback cannot be empty when requesting changes.")
			continue
		}
		return &Decision{Action: ActionRequestChanges, Feedback: feedback}, nil
	}
}

// Escalate shows the feedback history and prompts for an escalation decision
func (g *InteractiveGate) Escalate(ctx context.Context, req *EscalationRequest) (*EscalationDecision, error) {
	bold := color.New(color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Printf("\n%s\n", cyan("═══════════════════════════════════════════════════════════════"))
	fmt.Printf("%s %s stage for %s exhausted its revision budget\n",
		yellow("⚠"), req.Stage, req.Feature.ID)
	fmt.Printf("%s\n", cyan("═══════════════════════════════════════════════════════════════"))
	fmt.Println()
	fmt.Printf("%s\n", bold("Reviewer feedback history:"))
	for i, fb := range req.FeedbackHistory {
		fmt.Printf("  %d. %s\n", i+1, fb)
	}
	fmt.Println()
	fmt.Printf("%s %s / %s / %s\n", bold("Decision:"),
		"[o]verride and retry with guidance", yellow("[k]eep last draft and continue"), red("[c]ancel feature"))

	for {
		line, err := g.readLine(ctx)
		if err != nil {
			return nil, err
		}

		action, ok := parseEscalationChoice(line)
		if !ok {
			fmt.Println("Please enter o, k, or c.")
			continue
		}

		if action != EscalationRetry {
			return &EscalationDecision{Action: action}, nil
		}

		fmt.Println("Guidance for the retry:")
		guidance, err := g.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(guidance) == "" {
			fmt.Println("Guidance cannot be empty when overriding.")
			continue
		}
		return &EscalationDecision{Action: EscalationRetry, Guidance: guidance}, nil
	}
}

func (g *InteractiveGate) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := g.rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return "", fmt.Errorf("input aborted: %w", err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func displayDocument(req *ApprovalRequest) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("═══════════════════════════════════════════════════════════════"))
	fmt.Printf("%s %s — %s\n", cyan("Approval gate:"), req.Stage, req.Feature.ID)
	fmt.Printf("%s\n", cyan("═══════════════════════════════════════════════════════════════"))
	fmt.Println()
	fmt.Printf("%s %s\n", bold("Feature:"), req.Feature.Title)
	fmt.Printf("%s review the %s below\n", bold("Task:"), stageNoun(req.Stage))
	if req.Revisions > 0 {
		fmt.Printf("%s %d reviewer revision(s) were needed before this draft\n", gray("Note:"), req.Revisions)
	}
	fmt.Println()
	fmt.Println(req.Document)
	fmt.Println()
}

func parseApprovalChoice(line string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "a", "approve":
		return ActionApprove, true
	case "r", "request", "request changes", "changes":
		return ActionRequestChanges, true
	case "c", "cancel":
		return ActionCancel, true
	}
	return "", false
}

func parseEscalationChoice(line string) (EscalationAction, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "o", "override", "retry":
		return EscalationRetry, true
	case "k", "keep", "abandon":
		return EscalationAbandon, true
	case "c", "cancel":
		return EscalationCancel, true
	}
	return "", false
}

// stageNoun gives a human-readable name for the gated stage
func stageNoun(stage types.Stage) string {
	switch stage {
	case types.StageArchitectureReview:
		return "architecture document"
	case types.StagePlanReview:
		return "implementation plan"
	case types.StageCodeReview:
		return "code change"
	case types.StageHumanFinalApproval:
		return "final implementation"
	}
	return string(stage)
}
