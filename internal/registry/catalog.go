package registry

import (
	"genboard/internal/providers"
	"genboard/internal/providers/dashscope"
	"genboard/internal/providers/genai"
	"genboard/internal/providers/google"
)

// BuiltinCatalog wires the models the dashboard exposes today. Adding a
// provider means adding a factory and Register calls here; job lifecycle code
// never changes.
func BuiltinCatalog(googleClient *genai.Client, dashscopeClient *dashscope.Client) *Registry {
	r := New()

	googleFactory := google.NewFactory(googleClient)
	dashscopeFactory := dashscope.NewFactory(dashscopeClient)

	r.Register(providers.ModelConfig{
		ID:          "gemini-2.5-flash-image",
		DisplayName: "Gemini 2.5 Flash Image",
		Provider:    "google",
		Type:        providers.ModelTypeImage,
		Pricing:     providers.Pricing{PerOutputUSD: 0.039},
	}, googleFactory)

	r.Register(providers.ModelConfig{
		ID:          "imagen-3",
		DisplayName: "Imagen 3",
		Provider:    "google",
		Type:        providers.ModelTypeImage,
		Pricing:     providers.Pricing{PerOutputUSD: 0.04},
	}, googleFactory)

	r.Register(providers.ModelConfig{
		ID:          "nano-banana",
		DisplayName: "Nano Banana",
		Provider:    "google",
		Type:        providers.ModelTypeImage,
		Pricing:     providers.Pricing{PerOutputUSD: 0.02},
	}, googleFactory)

	r.Register(providers.ModelConfig{
		ID:          "veo-2",
		DisplayName: "Veo 2",
		Provider:    "google",
		Type:        providers.ModelTypeVideo,
		Pricing:     providers.Pricing{PerOutputUSD: 1.75},
	}, googleFactory)

	r.Register(providers.ModelConfig{
		ID:          "veo-3",
		DisplayName: "Veo 3",
		Provider:    "google",
		Type:        providers.ModelTypeVideo,
		Pricing:     providers.Pricing{PerOutputUSD: 3.0},
	}, googleFactory)

	r.Register(providers.ModelConfig{
		ID:          "qwen-image-plus",
		DisplayName: "Qwen Image Plus",
		Provider:    "alibaba",
		Type:        providers.ModelTypeImage,
		Pricing:     providers.Pricing{PerOutputUSD: 0.03},
	}, dashscopeFactory)

	r.Register(providers.ModelConfig{
		ID:          "qwen-image-turbo",
		DisplayName: "Qwen Image Turbo",
		Provider:    "alibaba",
		Type:        providers.ModelTypeImage,
		Pricing:     providers.Pricing{PerOutputUSD: 0.015},
	}, dashscopeFactory)

	return r
}
