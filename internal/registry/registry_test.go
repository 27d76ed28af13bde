package registry

import (
	"errors"
	"testing"

	"genboard/internal/domain"
	"genboard/internal/providers"
)

func TestResolveUnknownModel(t *testing.T) {
	r := New()
	if _, err := r.Resolve("no-such-model"); !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("err = %v, want ErrUnknownModel", err)
	}
}

func TestRegisterDerivesDisplayName(t *testing.T) {
	r := New()
	r.Register(providers.ModelConfig{
		ID:       "qwen-image-turbo",
		Provider: "alibaba",
		Type:     providers.ModelTypeImage,
	}, nil)
	if got := r.DisplayName("qwen-image-turbo"); got != "Qwen Image Turbo" {
		t.Fatalf("display name = %q", got)
	}
}

func TestDisplayNameFallsBackForUnregistered(t *testing.T) {
	r := New()
	if got := r.DisplayName("veo-2"); got != "Veo 2" {
		t.Fatalf("display name = %q", got)
	}
}

func TestProviderForModelIDPrefersConfig(t *testing.T) {
	r := New()
	r.Register(providers.ModelConfig{
		ID:       "qwen-special",
		Provider: "internal-lab",
		Type:     providers.ModelTypeImage,
	}, nil)
	if got := r.ProviderForModelID("qwen-special"); got != "internal-lab" {
		t.Fatalf("provider = %q, want config value over prefix", got)
	}
}

func TestProviderForModelIDPrefixes(t *testing.T) {
	r := New()
	cases := map[string]string{
		"gemini-2.5-flash-image": "google",
		"imagen-3":               "google",
		"veo-3":                  "google",
		"nano-banana":            "google",
		"qwen-image-plus":        "alibaba",
		"wan-2.1":                "alibaba",
		"mystery-model":          "unknown",
	}
	for modelID, want := range cases {
		if got := r.ProviderForModelID(modelID); got != want {
			t.Fatalf("ProviderForModelID(%q) = %q, want %q", modelID, got, want)
		}
	}
}

func TestListByTypeSorted(t *testing.T) {
	r := New()
	r.Register(providers.ModelConfig{ID: "veo-3", Type: providers.ModelTypeVideo}, nil)
	r.Register(providers.ModelConfig{ID: "imagen-3", Type: providers.ModelTypeImage}, nil)
	r.Register(providers.ModelConfig{ID: "gemini-2.5-flash-image", Type: providers.ModelTypeImage}, nil)

	images := r.ListByType(providers.ModelTypeImage)
	if len(images) != 2 {
		t.Fatalf("images = %d, want 2", len(images))
	}
	if images[0].ID != "gemini-2.5-flash-image" || images[1].ID != "imagen-3" {
		t.Fatalf("order = %v, %v", images[0].ID, images[1].ID)
	}
}

func TestBuiltinCatalogResolvesEveryModel(t *testing.T) {
	r := BuiltinCatalog(nil, nil)
	for _, modelType := range []providers.ModelType{providers.ModelTypeImage, providers.ModelTypeVideo} {
		for _, cfg := range r.ListByType(modelType) {
			adapter, err := r.Resolve(cfg.ID)
			if err != nil {
				t.Fatalf("resolve %q: %v", cfg.ID, err)
			}
			if adapter == nil {
				t.Fatalf("resolve %q returned nil adapter", cfg.ID)
			}
			if cfg.Pricing.PerOutputUSD <= 0 {
				t.Fatalf("model %q has no price", cfg.ID)
			}
		}
	}
}
