// Package factory constructs model clients with their middleware chains.
package factory

import (
	"fmt"

	"agentexec/pkg/config"
	"agentexec/pkg/llm"
	"agentexec/pkg/llm/anthropic"
	"agentexec/pkg/llm/google"
	"agentexec/pkg/llm/middleware/logging"
	"agentexec/pkg/llm/middleware/metrics"
	"agentexec/pkg/llm/ollama"
	"agentexec/pkg/llm/openai"
	"agentexec/pkg/logx"
)

// Factory creates model clients with a configured middleware chain.
type Factory struct {
	config   config.Config
	recorder metrics.Recorder
	logger   *logx.Logger
}

// New creates a client factory. A nil recorder disables metrics.
func New(cfg config.Config, recorder metrics.Recorder) *Factory {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Factory{
		config:   cfg,
		recorder: recorder,
		logger:   logx.NewLogger("llm"),
	}
}

// NewClient creates a client for modelName with logging and metrics middleware.
// The provider is inferred from the model name and credentials come from the
// environment.
func (f *Factory) NewClient(modelName string, runProvider metrics.RunProvider) (llm.Client, error) {
	raw, err := f.newRawClient(modelName)
	if err != nil {
		return nil, err
	}

	return llm.Chain(raw,
		metrics.Middleware(f.recorder, nil, runProvider, f.logger),
		logging.Middleware(f.logger),
	), nil
}

func (f *Factory) newRawClient(modelName string) (llm.Client, error) {
	provider, err := config.GetModelProvider(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", modelName, err)
	}

	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials for provider %s: %w", provider, err)
	}

	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClient(apiKey, modelName)
	case config.ProviderOpenAI:
		return openai.NewClient(apiKey, modelName)
	case config.ProviderGoogle:
		return google.NewClient(apiKey, modelName), nil
	case config.ProviderOllama:
		host := f.config.OllamaHost
		if host == "" {
			host = apiKey // GetAPIKey returns the host URL for Ollama
		}
		return ollama.NewClient(host, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
