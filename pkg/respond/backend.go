package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/session"
)

// Backend is the generation backend boundary: a best-effort completion
// call subject to the orchestrator's turn timeout.
type Backend interface {
	Complete(ctx context.Context, prompt string, sctx session.Context) (string, error)
}

// HTTPBackend talks to an OpenAI-compatible Chat Completions endpoint.
// Recent session turns are replayed as conversation history.
type HTTPBackend struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewHTTPBackend creates a backend client. timeout caps a single request;
// zero means 30 seconds.
func NewHTTPBackend(baseURL, apiKey, model string, timeout time.Duration) *HTTPBackend {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt with the session's recent history and returns
// the completion text. Unreachable or failing backends yield a
// backend_unavailable error; context expiry is passed through so the
// caller can classify it as a timeout.
func (b *HTTPBackend) Complete(ctx context.Context, prompt string, sctx session.Context) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: "You are a helpful, concise assistant."},
	}
	for _, turn := range sctx.Turns {
		messages = append(messages,
			chatMessage{Role: "user", Content: turn.UserInput},
			chatMessage{Role: "assistant", Content: turn.AssistantResponse},
		)
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: b.model, Messages: messages})
	if err != nil {
		return "", api.NewBackendUnavailableError(fmt.Sprintf("marshaling request: %s", err))
	}

	url := b.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", api.NewBackendUnavailableError(fmt.Sprintf("building request: %s", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	httpResp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", ctx.Err()
		}
		return "", api.NewBackendUnavailableError(err.Error())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", api.NewBackendUnavailableError(fmt.Sprintf("backend returned status %d", httpResp.StatusCode))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return "", api.NewBackendUnavailableError(fmt.Sprintf("parsing response: %s", err))
	}
	if len(chatResp.Choices) == 0 {
		return "", api.NewBackendUnavailableError("backend produced no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// BackendStrategy answers an intent by delegating to a generation
// backend, using the user's raw input (carried in the "input" entity or
// slot) as the prompt.
type BackendStrategy struct {
	backend Backend
}

// NewBackendStrategy wraps a backend as a response strategy.
func NewBackendStrategy(backend Backend) *BackendStrategy {
	return &BackendStrategy{backend: backend}
}

func (s *BackendStrategy) Generate(ctx context.Context, intent api.Intent, sctx session.Context) (Result, error) {
	prompt := intent.Entities["input"]
	if prompt == "" {
		prompt = sctx.Slots["last_input"]
	}
	if prompt == "" {
		return Result{}, api.NewBackendUnavailableError("no prompt available for backend generation")
	}

	text, err := s.backend.Complete(ctx, prompt, sctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Intent: intent.Name, Variant: -1}, nil
}
