package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/anthropic"
	"github.com/fwojciec/chatstream/gemini"
)

// generatorConfig carries the resolved model settings. All env var values
// are passed in; env is only read in main().
type generatorConfig struct {
	Provider     string // anthropic, gemini or "" to auto-detect
	APIKey       string // CHAT_MODEL_API_KEY or -api-key
	BaseURL      string // CHAT_MODEL_BASE_URL
	Model        string // CHAT_MODEL_NAME or -model
	SystemPrompt string
	AnthropicKey string // ANTHROPIC_API_KEY
	GeminiKey    string // GEMINI_API_KEY
}

// resolveProvider picks the provider name and API key.
func resolveProvider(cfg generatorConfig) (name, key string, err error) {
	name = cfg.Provider

	// Auto-detect from env vars if no flag.
	if name == "" {
		hasAnthropic := cfg.AnthropicKey != ""
		hasGemini := cfg.GeminiKey != ""
		switch {
		case hasAnthropic && hasGemini:
			return "", "", fmt.Errorf("multiple API keys found (ANTHROPIC_API_KEY, GEMINI_API_KEY): use -provider flag to select")
		case hasAnthropic:
			name = "anthropic"
		case hasGemini:
			name = "gemini"
		case cfg.APIKey != "":
			name = "anthropic"
		default:
			return "", "", fmt.Errorf("no API key found: set CHAT_MODEL_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY")
		}
	}

	// Resolve API key: the generic key overrides the provider's env var.
	key = cfg.APIKey
	switch name {
	case "anthropic":
		if key == "" {
			key = cfg.AnthropicKey
		}
		if key == "" {
			return "", "", fmt.Errorf("ANTHROPIC_API_KEY not set (use -api-key flag or CHAT_MODEL_API_KEY)")
		}
	case "gemini":
		if key == "" {
			key = cfg.GeminiKey
		}
		if key == "" {
			return "", "", fmt.Errorf("GEMINI_API_KEY not set (use -api-key flag or CHAT_MODEL_API_KEY)")
		}
	default:
		return "", "", fmt.Errorf("unknown provider %q: must be \"anthropic\" or \"gemini\"", name)
	}
	return name, key, nil
}

// resolveGenerator selects and constructs the generator.
func resolveGenerator(ctx context.Context, cfg generatorConfig) (chatstream.Generator, string, error) {
	name, key, err := resolveProvider(cfg)
	if err != nil {
		return nil, "", err
	}
	switch name {
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithSystemPrompt(cfg.SystemPrompt)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		return anthropic.New(key, opts...), name, nil
	default:
		opts := []gemini.Option{gemini.WithSystemPrompt(cfg.SystemPrompt)}
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		client, err := gemini.New(ctx, key, opts...)
		if err != nil {
			return nil, "", err
		}
		return client, name, nil
	}
}
