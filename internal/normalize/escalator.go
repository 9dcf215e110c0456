package normalize

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/resilience"
	"github.com/sells-group/laser-ci/pkg/anthropic"
	"github.com/sells-group/laser-ci/pkg/openai"
)

// EscalatorConfig is shared by the LLM-backed escalators.
type EscalatorConfig struct {
	Model     string
	MaxTokens int
	// RatePerSec caps request rate; zero or negative means unlimited.
	RatePerSec float64
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
}

func (c EscalatorConfig) caller(service string, statusOf func(error) int) *resilience.Caller {
	return resilience.NewCaller(resilience.CallerConfig{
		Service:    service,
		RatePerSec: c.RatePerSec,
		MaxRetries: c.MaxRetries,
		StatusOf:   statusOf,
	})
}

// AnthropicEscalator escalates through the Anthropic Messages API.
type AnthropicEscalator struct {
	client anthropic.Client
	cfg    EscalatorConfig
	caller *resilience.Caller
}

// NewAnthropicEscalator creates an escalator backed by client.
func NewAnthropicEscalator(client anthropic.Client, cfg EscalatorConfig) *AnthropicEscalator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &AnthropicEscalator{
		client: client,
		cfg:    cfg,
		caller: cfg.caller("anthropic", anthropic.StatusCode),
	}
}

// Escalate implements Escalator.
func (a *AnthropicEscalator) Escalate(ctx context.Context, req EscalationRequest) (*Escalation, error) {
	user, err := userPrompt(req)
	if err != nil {
		return nil, err
	}
	temp := 0.0
	resp, err := resilience.Call(ctx, a.caller, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       a.cfg.Model,
			MaxTokens:   int64(a.cfg.MaxTokens),
			System:      anthropic.CachedSystem(systemPrompt, "1h"),
			Messages:    []anthropic.Message{{Role: "user", Content: user}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "normalize: anthropic escalation")
	}
	resp.Usage.LogCost(a.cfg.Model, "normalize")

	return ParseEscalation(resp.Text())
}

// OpenAIEscalator escalates through OpenAI chat completions in JSON mode.
type OpenAIEscalator struct {
	client openai.Client
	cfg    EscalatorConfig
	caller *resilience.Caller
}

// NewOpenAIEscalator creates an escalator backed by client.
func NewOpenAIEscalator(client openai.Client, cfg EscalatorConfig) *OpenAIEscalator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &OpenAIEscalator{
		client: client,
		cfg:    cfg,
		caller: cfg.caller("openai", openai.StatusCode),
	}
}

// Escalate implements Escalator.
func (o *OpenAIEscalator) Escalate(ctx context.Context, req EscalationRequest) (*Escalation, error) {
	user, err := userPrompt(req)
	if err != nil {
		return nil, err
	}
	resp, err := resilience.Call(ctx, o.caller, func(ctx context.Context) (*openai.ChatResponse, error) {
		return o.client.ChatJSON(ctx, openai.ChatRequest{
			Model:     o.cfg.Model,
			System:    systemPrompt,
			User:      user,
			MaxTokens: o.cfg.MaxTokens,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "normalize: openai escalation")
	}
	zap.L().Debug("openai: usage",
		zap.String("model", o.cfg.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return ParseEscalation(resp.Content)
}
