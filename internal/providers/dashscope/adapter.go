package dashscope

import (
	"context"
	"errors"
	"fmt"

	"genboard/internal/providers"
)

// Adapter drives DashScope models through the async task API: submit returns
// a task id, poll reports the task status until it reaches a terminal state.
type Adapter struct {
	client *Client
	model  providers.ModelConfig
}

// NewFactory returns the pure constructor bound to a shared API client.
func NewFactory(client *Client) providers.Factory {
	return func(cfg providers.ModelConfig) providers.Adapter {
		return &Adapter{client: client, model: cfg}
	}
}

func (a *Adapter) Submit(ctx context.Context, req providers.SubmitRequest) (providers.Handle, error) {
	size, _ := req.Params["size"].(string)
	taskID, err := a.client.CreateImageTask(ctx, TaskRequest{
		Model:          a.model.ID,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Size:           size,
		RequestID:      req.GenerationID,
	})
	if err != nil {
		return providers.Handle{}, err
	}
	return providers.Handle{ProviderJobID: taskID}, nil
}

func (a *Adapter) Poll(ctx context.Context, handle providers.Handle) (providers.PollResult, error) {
	if handle.ProviderJobID == "" {
		return providers.PollResult{}, errors.New("dashscope: handle has no task id")
	}
	status, err := a.client.GetTask(ctx, handle.ProviderJobID)
	if err != nil {
		return providers.PollResult{}, err
	}
	switch status.Status {
	case TaskStatusSucceeded:
		artifacts := make([]providers.Artifact, len(status.Results))
		for i, result := range status.Results {
			artifacts[i] = providers.Artifact{
				URL:    result.URL,
				MIME:   result.Format,
				Width:  result.Width,
				Height: result.Height,
				Data:   result.Data,
			}
		}
		return providers.PollResult{Done: true, Artifacts: artifacts}, nil
	case TaskStatusFailed:
		msg := status.Message
		if msg == "" {
			msg = "task failed"
		}
		return providers.PollResult{}, fmt.Errorf("dashscope: %s (%s)", msg, status.Code)
	default:
		return providers.PollResult{}, nil
	}
}

func (a *Adapter) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return providers.Fault(a.model.Provider, err)
}

var _ providers.Adapter = (*Adapter)(nil)
