// Package ai provides the model-backed writer, reviewer, and resolver
// capabilities used by the feature pipeline.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Model tiers. Drafting and review need deep reasoning; similarity
// screening is cheap enough for the small model.
//
// Environment variable overrides:
// - FEATFORGE_MODEL: override the default model
// - FEATFORGE_MODEL_SIMPLE: override the model for simple tasks
const (
	// ModelSonnet is the high-end model for drafting and review
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient model for similarity screening
	ModelHaiku = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the default model, checking FEATFORGE_MODEL env var first
func GetDefaultModel() string {
	if model := os.Getenv("FEATFORGE_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// GetSimpleTaskModel returns the model for simple tasks, checking FEATFORGE_MODEL_SIMPLE env var first
func GetSimpleTaskModel() string {
	if model := os.Getenv("FEATFORGE_MODEL_SIMPLE"); model != "" {
		return model
	}
	return ModelHaiku
}

// ModelCaller is the low-level model invocation used by the writer,
// reviewer, and resolver. Satisfied by Engine; tests substitute a fake.
type ModelCaller interface {
	CallModel(ctx context.Context, prompt, operation, model string, maxTokens int) (string, error)
}

// Engine wraps the Anthropic client with retry, circuit breaking, rate
// limiting, and a concurrency cap shared by every pipeline capability.
type Engine struct {
	client         *anthropic.Client
	model          string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
}

var _ ModelCaller = (*Engine)(nil)

// Config holds engine configuration
type Config struct {
	APIKey string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model  string      // Model to use (default: claude-sonnet-4-5-20250929)
	Retry  RetryConfig // Retry configuration (uses defaults if not specified)
}

// NewEngine creates a new model engine
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(
			retry.FailureThreshold,
			retry.SuccessThreshold,
			retry.OpenTimeout,
		)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	var limiter *rate.Limiter
	if retry.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(retry.RequestsPerSecond), 1)
	}

	return &Engine{
		client:         &client,
		model:          model,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
		limiter:        limiter,
	}, nil
}

// HealthCheck reports whether the engine can currently serve calls
func (e *Engine) HealthCheck(ctx context.Context) error {
	if e.circuitBreaker != nil {
		state, failures, _ := e.circuitBreaker.GetMetrics()
		if state == CircuitOpen {
			return fmt.Errorf("model engine unavailable: %w (failures=%d, retry in %v)",
				ErrCircuitOpen, failures, e.retry.OpenTimeout)
		}
	}
	return nil
}

// CallModel makes a model API call with the given prompt, applying the
// engine's retry and circuit breaker policy.
func (e *Engine) CallModel(ctx context.Context, prompt, operation, model string, maxTokens int) (string, error) {
	startTime := time.Now()

	if model == "" {
		model = e.model
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var response *anthropic.Message
	err := e.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := e.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	duration := time.Since(startTime)
	fmt.Printf("AI %s call: input=%d tokens, output=%d tokens, duration=%v\n",
		operation, response.Usage.InputTokens, response.Usage.OutputTokens, duration)

	return responseText, nil
}
