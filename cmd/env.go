package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/laser-ci/internal/config"
	"github.com/sells-group/laser-ci/internal/monitoring"
	"github.com/sells-group/laser-ci/internal/normalize"
	"github.com/sells-group/laser-ci/internal/pipeline"
	"github.com/sells-group/laser-ci/internal/store"
	anthropicpkg "github.com/sells-group/laser-ci/pkg/anthropic"
	openaipkg "github.com/sells-group/laser-ci/pkg/openai"
)

// pipelineEnv holds the store and the normalize runner.
type pipelineEnv struct {
	Store   store.Store
	Runner  *pipeline.Runner
	Metrics *monitoring.Metrics
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens the store and builds the normalize runner. When
// noLLM is set the engine runs heuristics only. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, noLLM bool) (*pipelineEnv, error) {
	st, err := openStore(ctx, "normalize")
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	opts := []normalize.Option{normalize.WithMetrics(metrics)}

	provider := cfg.Normalize.Provider
	if noLLM {
		provider = config.ProviderNone
	}
	esc, err := newEscalator(provider, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if esc != nil {
		opts = append(opts, normalize.WithEscalator(esc, provider))
	}

	engine := normalize.NewEngine(normalize.Config{
		SufficiencyThreshold: cfg.Normalize.SufficiencyThreshold,
		MaxWorkers:           cfg.Normalize.MaxWorkers,
		EscalationTimeout:    cfg.Normalize.EscalationTimeout(),
	}, opts...)

	p := pipeline.New(st, st, nil, engine, metrics)
	return &pipelineEnv{
		Store:   st,
		Runner:  pipeline.NewRunner(p, st, metrics),
		Metrics: metrics,
	}, nil
}

// newEscalator returns the escalator for provider, or nil when escalation
// is disabled.
func newEscalator(provider string, c *config.Config) (normalize.Escalator, error) {
	escCfg := normalize.EscalatorConfig{
		RatePerSec: c.Normalize.RatePerSec,
		MaxRetries: c.Normalize.MaxRetries,
	}
	switch provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderAnthropic:
		escCfg.Model = c.Anthropic.Model
		escCfg.MaxTokens = c.Anthropic.MaxTokens
		return normalize.NewAnthropicEscalator(anthropicpkg.NewClient(c.Anthropic.Key, c.Anthropic.BaseURL), escCfg), nil
	case config.ProviderOpenAI:
		escCfg.Model = c.OpenAI.Model
		escCfg.MaxTokens = c.OpenAI.MaxTokens
		return normalize.NewOpenAIEscalator(openaipkg.NewClient(c.OpenAI.Key, c.OpenAI.BaseURL), escCfg), nil
	default:
		return nil, eris.Errorf("unknown escalation provider: %s", provider)
	}
}
