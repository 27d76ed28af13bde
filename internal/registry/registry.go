package registry

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"genboard/internal/domain"
	"genboard/internal/providers"
)

// Registry is the static directory mapping a model id to its configuration
// and to the adapter factory that serves it. It is built once at startup and
// read-only afterwards; Register is not safe to call concurrently with reads.
type Registry struct {
	entries map[string]entry
}

type entry struct {
	config  providers.ModelConfig
	factory providers.Factory
}

func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or overwrites the entry keyed by cfg.ID. A missing display
// name is derived from the model id.
func (r *Registry) Register(cfg providers.ModelConfig, factory providers.Factory) {
	if cfg.DisplayName == "" {
		cfg.DisplayName = displayNameFromID(cfg.ID)
	}
	r.entries[cfg.ID] = entry{config: cfg, factory: factory}
}

// Resolve constructs a fresh adapter bound to the model's configuration.
// An unknown model id is a permanent, non-retryable failure.
func (r *Registry) Resolve(modelID string) (providers.Adapter, error) {
	e, ok := r.entries[modelID]
	if !ok {
		return nil, domain.ErrUnknownModel
	}
	return e.factory(e.config), nil
}

// GetConfig returns the configuration for modelID.
func (r *Registry) GetConfig(modelID string) (providers.ModelConfig, bool) {
	e, ok := r.entries[modelID]
	return e.config, ok
}

// ListByType returns the registered configurations of the given type, sorted
// by model id.
func (r *Registry) ListByType(t providers.ModelType) []providers.ModelConfig {
	var out []providers.ModelConfig
	for _, e := range r.entries {
		if e.config.Type == t {
			out = append(out, e.config)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DisplayName returns the display name for modelID, falling back to a name
// derived from the id itself when the model is not registered.
func (r *Registry) DisplayName(modelID string) string {
	if e, ok := r.entries[modelID]; ok {
		return e.config.DisplayName
	}
	return displayNameFromID(modelID)
}

// ProviderForModelID attributes a model id to a provider from its prefix.
// Attribution is best effort: unregistered ids with no recognized prefix land
// in "unknown" so aggregate totals still reconcile.
func (r *Registry) ProviderForModelID(modelID string) string {
	if e, ok := r.entries[modelID]; ok && e.config.Provider != "" {
		return e.config.Provider
	}
	return providerFromPrefix(modelID)
}

var prefixProviders = []struct {
	prefix   string
	provider string
}{
	{"gemini-", "google"},
	{"imagen-", "google"},
	{"veo-", "google"},
	{"nano-banana", "google"},
	{"qwen-", "alibaba"},
	{"wan-", "alibaba"},
}

func providerFromPrefix(modelID string) string {
	id := strings.ToLower(strings.TrimSpace(modelID))
	for _, p := range prefixProviders {
		if strings.HasPrefix(id, p.prefix) {
			return p.provider
		}
	}
	return "unknown"
}

func displayNameFromID(id string) string {
	c := cases.Title(language.Und)
	return c.String(strings.ReplaceAll(strings.TrimSpace(id), "-", " "))
}
