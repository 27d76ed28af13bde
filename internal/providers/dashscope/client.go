package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genboard/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("dashscope: api key is required")

// Task statuses as reported by the DashScope async task API.
const (
	TaskStatusPending   = "PENDING"
	TaskStatusRunning   = "RUNNING"
	TaskStatusSucceeded = "SUCCEEDED"
	TaskStatusFailed    = "FAILED"
)

// Options configures the DashScope client.
type Options struct {
	APIKey         string
	BaseURL        string
	DefaultSize    string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the DashScope asynchronous image
// synthesis API: a creation call returns a task id which is then polled until
// it reaches a terminal status.
type Client struct {
	apiKey      string
	baseURL     string
	defaultSize string
	httpClient  *http.Client
	logger      *infra.Logger
}

// TaskRequest captures the inputs for one image synthesis task.
type TaskRequest struct {
	Model          string
	Prompt         string
	NegativePrompt string
	Size           string
	RequestID      string
}

// TaskResult is one artifact of a finished task.
type TaskResult struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// TaskStatus is the polled state of an async task.
type TaskStatus struct {
	TaskID  string
	Status  string
	Results []TaskResult
	Code    string
	Message string
}

type synthesisRequest struct {
	Model      string          `json:"model"`
	Input      synthesisInput  `json:"input"`
	Parameters synthesisParams `json:"parameters"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type synthesisParams struct {
	Size string `json:"size,omitempty"`
	N    int    `json:"n,omitempty"`
}

type createTaskResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type taskStatusResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	defaultSize := strings.TrimSpace(opts.DefaultSize)
	if defaultSize == "" {
		defaultSize = "1024*1024"
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
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		defaultSize: defaultSize,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateImageTask submits an asynchronous image synthesis task and returns
// its id.
func (c *Client) CreateImageTask(ctx context.Context, req TaskRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("dashscope: prompt is required")
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = c.defaultSize
	}
	payload := synthesisRequest{
		Model: req.Model,
		Input: synthesisInput{
			Prompt:         prompt,
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		},
		Parameters: synthesisParams{Size: size, N: 1},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("dashscope: encode request: %w", err)
	}
	endpoint := c.baseURL + "/services/aigc/text2image/image-synthesis"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("dashscope: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-DashScope-Async", "enable")

	raw, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var decoded createTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("dashscope: decode response: %w", err)
	}
	if decoded.Code != "" {
		return "", fmt.Errorf("dashscope: %s (%s)", decoded.Message, decoded.Code)
	}
	if decoded.Output.TaskID == "" {
		return "", errors.New("dashscope: task id missing")
	}

	c.logger.Debug().
		Str("model", req.Model).
		Str("request_id", req.RequestID).
		Str("task_id", decoded.Output.TaskID).
		Msg("dashscope: created image task")

	return decoded.Output.TaskID, nil
}

// GetTask polls the status of an asynchronous task. Artifacts of succeeded
// tasks are downloaded so the caller can persist them locally.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("dashscope: task id is required")
	}
	endpoint := c.baseURL + "/tasks/" + url.PathEscape(taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dashscope: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var decoded taskStatusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("dashscope: decode response: %w", err)
	}
	if decoded.Code != "" {
		return nil, fmt.Errorf("dashscope: %s (%s)", decoded.Message, decoded.Code)
	}

	status := &TaskStatus{
		TaskID:  decoded.Output.TaskID,
		Status:  decoded.Output.TaskStatus,
		Code:    decoded.Output.Code,
		Message: decoded.Output.Message,
	}
	if status.Status != TaskStatusSucceeded {
		return status, nil
	}

	for _, result := range decoded.Output.Results {
		if strings.TrimSpace(result.URL) == "" {
			continue
		}
		data, format, err := c.download(ctx, result.URL)
		if err != nil {
			c.logger.Warn().Err(err).Str("task_id", taskID).Msg("dashscope: artifact download failed")
			status.Results = append(status.Results, TaskResult{URL: result.URL, Format: "image/png"})
			continue
		}
		width, height := 0, 0
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
		status.Results = append(status.Results, TaskResult{
			URL:    result.URL,
			Format: format,
			Width:  width,
			Height: height,
			Data:   data,
		})
	}
	if len(status.Results) == 0 {
		return nil, errors.New("dashscope: task succeeded without results")
	}
	return status, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dashscope: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dashscope: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return nil, fmt.Errorf("dashscope: %s (%s)", detail.Message, detail.Code)
		}
		return nil, fmt.Errorf("dashscope: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("dashscope: invalid image url: %s", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("dashscope: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("dashscope: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("dashscope: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("dashscope: read image: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "image/png"
	}
	return data, format, nil
}
