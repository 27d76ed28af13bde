package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genboard/internal/infra"
)

// Options controls how the Google generative client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a lightweight facade over the Google generative API family:
// synchronous Gemini image generation and long-running Veo video operations.
// Without an API key it degrades to deterministic synthetic assets so the
// pipeline stays operational in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// ImageRequest represents the information required to generate images.
type ImageRequest struct {
	Model          string
	Prompt         string
	NegativePrompt string
	Quantity       int
	RequestID      string
}

// VideoRequest represents the information required to start a video operation.
type VideoRequest struct {
	Model          string
	Prompt         string
	NegativePrompt string
	RequestID      string
}

// ImageAsset is the normalized representation returned by the client.
type ImageAsset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// VideoOperation is the polled state of a long-running video generation.
type VideoOperation struct {
	Name string
	Done bool
	URI  string
	MIME string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type veoStartRequest struct {
	Instances []veoInstance `json:"instances"`
}

type veoInstance struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

type veoOperationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI      string `json:"uri"`
					MimeType string `json:"mimeType,omitempty"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults. Callers may provide a nil
// HTTP client; a reusable one with a timeout will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImages performs one synchronous Gemini image generation call.
func (c *Client) GenerateImages(ctx context.Context, req ImageRequest) ([]ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !c.HasCredentials() {
		return c.syntheticImages(req), nil
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildImagePrompt(req)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     quantity,
			ResponseModalities: []string{"IMAGE"},
		},
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(req.Model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &response); err != nil {
		return nil, err
	}

	var assets []ImageAsset
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			asset, err := c.decodeInlineAsset(ctx, part)
			if err != nil || len(asset.Data) == 0 {
				continue
			}
			format := asset.Format
			if format == "" {
				format = "image/png"
			}
			w, h := decodeImageDimensions(asset.Data)
			assets = append(assets, ImageAsset{
				URL:    asset.URL,
				Format: format,
				Width:  w,
				Height: h,
				Data:   asset.Data,
			})
			if len(assets) >= quantity {
				break
			}
		}
		if len(assets) >= quantity {
			break
		}
	}

	if len(assets) == 0 {
		return nil, fmt.Errorf("gemini: no image content returned")
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Int("quantity", len(assets)).
		Msg("genai: generated image assets")

	return assets, nil
}

// StartVideoGeneration begins a long-running Veo operation and returns the
// operation name callers must poll.
func (c *Client) StartVideoGeneration(ctx context.Context, req VideoRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !c.HasCredentials() {
		return syntheticOperationName(req), nil
	}

	payload := veoStartRequest{Instances: []veoInstance{{
		Prompt:         strings.TrimSpace(req.Prompt),
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
	}}}

	var response veoOperationResponse
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(req.Model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &response); err != nil {
		return "", err
	}
	if response.Name == "" {
		return "", fmt.Errorf("veo: operation name missing")
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Str("operation", response.Name).
		Msg("genai: started video operation")

	return response.Name, nil
}

// PollVideoOperation fetches the current state of a Veo operation.
func (c *Client) PollVideoOperation(ctx context.Context, name string) (*VideoOperation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.HasPrefix(name, syntheticOperationPrefix) {
		return c.syntheticVideoOperation(name), nil
	}

	var response veoOperationResponse
	if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(name, "/"), nil, &response); err != nil {
		return nil, err
	}
	if response.Error.Message != "" {
		return nil, fmt.Errorf("veo: %s (code %d)", response.Error.Message, response.Error.Code)
	}

	op := &VideoOperation{Name: response.Name, Done: response.Done}
	if response.Done {
		samples := response.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) == 0 {
			return nil, fmt.Errorf("veo: operation finished without samples")
		}
		op.URI = samples[0].Video.URI
		op.MIME = samples[0].Video.MimeType
		if op.MIME == "" {
			op.MIME = "video/mp4"
		}
	}
	return op, nil
}

// DownloadFile fetches a provider-hosted artifact for local persistence.
func (c *Client) DownloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

type inlineAsset struct {
	Data   []byte
	Format string
	URL    string
}

func (c *Client) decodeInlineAsset(ctx context.Context, part geminiPart) (inlineAsset, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return inlineAsset{}, fmt.Errorf("decode inline data: %w", err)
		}
		return inlineAsset{Data: data, Format: part.InlineData.MimeType}, nil
	}

	if part.FileData != nil && part.FileData.FileURI != "" {
		data, mime, err := c.DownloadFile(ctx, part.FileData.FileURI)
		if err != nil {
			return inlineAsset{}, err
		}
		format := part.FileData.MimeType
		if format == "" {
			format = mime
		}
		return inlineAsset{Data: data, Format: format, URL: part.FileData.FileURI}, nil
	}

	return inlineAsset{}, nil
}

func buildImagePrompt(req ImageRequest) string {
	var b strings.Builder
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		b.WriteString(prompt)
	}
	if negative := strings.TrimSpace(req.NegativePrompt); negative != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Avoid: ")
		b.WriteString(negative)
	}
	if b.Len() == 0 {
		b.WriteString("Create an image")
	}
	return b.String()
}

const syntheticOperationPrefix = "synthetic/operations/"

func syntheticOperationName(req VideoRequest) string {
	return syntheticOperationPrefix + deterministicSeed(req.RequestID, req.Model, req.Prompt)
}

func (c *Client) syntheticVideoOperation(name string) *VideoOperation {
	seed := strings.TrimPrefix(name, syntheticOperationPrefix)
	return &VideoOperation{
		Name: name,
		Done: true,
		URI:  fmt.Sprintf("https://cdn.example.com/synthetic/videos/%s.mp4", seed),
		MIME: "video/mp4",
	}
}

func (c *Client) syntheticImages(req ImageRequest) []ImageAsset {
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	assets := make([]ImageAsset, quantity)
	for i := range assets {
		seed := deterministicSeed(req.RequestID, req.Model, req.Prompt, fmt.Sprint(i))
		assets[i] = ImageAsset{
			URL:    fmt.Sprintf("https://cdn.example.com/synthetic/images/%s.png", seed),
			Format: "image/png",
			Width:  1024,
			Height: 1024,
			Data:   renderSyntheticImage(seed),
		}
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Int("quantity", quantity).
		Msg("genai: generated synthetic image assets")
	return assets
}

func deterministicSeed(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}

// renderSyntheticImage draws a small flat-color placeholder derived from the
// seed so repeated runs produce identical bytes.
func renderSyntheticImage(seed string) []byte {
	raw, _ := hex.DecodeString(seed)
	var r, g, b uint8 = 0x80, 0x80, 0x80
	if len(raw) >= 3 {
		r, g, b = raw[0], raw[1], raw[2]
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	fill := color.RGBA{R: r, G: g, B: b, A: 0xff}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
