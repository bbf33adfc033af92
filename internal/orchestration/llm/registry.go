package llm

import (
	"fmt"

	"campaign-writer/internal/common/config"
	"campaign-writer/internal/models"
)

// Binding is the client and model identifier serving one model class.
type Binding struct {
	Client    Client
	ModelID   string
	MaxTokens int
}

// Registry resolves model classes to provider bindings.
type Registry struct {
	bindings map[models.ModelClass]Binding
}

func NewRegistry(bindings map[models.ModelClass]Binding) *Registry {
	return &Registry{bindings: bindings}
}

// NewRegistryFromConfig builds one client per configured model class.
func NewRegistryFromConfig(cfg config.ModelsConfig) (*Registry, error) {
	bindings := make(map[models.ModelClass]Binding, 2)
	for class, mc := range map[models.ModelClass]config.ModelConfig{
		models.ModelCreative: cfg.Creative,
		models.ModelNuanced:  cfg.Nuanced,
	} {
		client, err := newClient(mc)
		if err != nil {
			return nil, fmt.Errorf("model class %s: %w", class, err)
		}
		bindings[class] = Binding{Client: client, ModelID: mc.Model, MaxTokens: mc.MaxTokens}
	}
	return NewRegistry(bindings), nil
}

func newClient(mc config.ModelConfig) (Client, error) {
	switch mc.Provider {
	case "openai":
		return NewOpenAIClient(mc.APIKey, mc.BaseURL), nil
	case "anthropic":
		return NewAnthropicClient(mc.APIKey, mc.BaseURL), nil
	case "gateway":
		if mc.BaseURL == "" {
			return nil, fmt.Errorf("gateway provider requires base_url")
		}
		return NewGatewayClient(mc.BaseURL, mc.APIKey, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", mc.Provider)
	}
}

// Resolve returns the binding for class.
func (r *Registry) Resolve(class models.ModelClass) (Binding, error) {
	b, ok := r.bindings[class]
	if !ok || b.Client == nil {
		return Binding{}, fmt.Errorf("no model bound to class %s", class)
	}
	return b, nil
}

// ModelID returns the configured identifier for class, or "".
func (r *Registry) ModelID(class models.ModelClass) string {
	return r.bindings[class].ModelID
}
