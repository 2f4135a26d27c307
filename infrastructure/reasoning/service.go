package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/felixgeelhaar/ragent/domain/reasoning"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// ErrUnknownProvider indicates the configured provider name is not supported.
var ErrUnknownProvider = errors.New("unknown reasoning provider")

// ServiceConfig holds per-request generation settings.
type ServiceConfig struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Service adapts a Provider to the agent's reasoning service: one system
// prompt and one user prompt in, the reply text out.
type Service struct {
	provider Provider
	config   ServiceConfig
}

var _ domain.Service = (*Service)(nil)

// NewService creates a reasoning service over the provider.
func NewService(provider Provider, cfg ServiceConfig) *Service {
	return &Service{provider: provider, config: cfg}
}

// Generate sends the prompts and returns the reply text.
func (s *Service) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	start := time.Now()
	resp, err := s.provider.Complete(ctx, CompletionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		logging.Warn().
			Add(logging.Provider(s.provider.Name())).
			Add(logging.Duration(time.Since(start))).
			Add(logging.ErrorField(err)).
			Msg("completion failed")
		return "", fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%s: %w", s.provider.Name(), domain.ErrEmptyResponse)
	}

	logging.Debug().
		Add(logging.Provider(s.provider.Name())).
		Add(logging.Duration(time.Since(start))).
		Add(logging.Int("tokens", resp.Usage.TotalTokens)).
		Msg("completion received")
	return resp.Content, nil
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// NewProvider builds a provider by name. Responses are only used by the
// static provider.
func NewProvider(name string, cfg ProviderConfig, responses []string) (Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "static":
		return NewStaticProvider(responses...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
