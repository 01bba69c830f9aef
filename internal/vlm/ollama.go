// Package vlm sends screen captures to a vision language model.
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderOllama  = "ollama"
	DefaultModel    = "qwen2.5-vl:3b"
	DefaultEndpoint = "http://localhost:11434"

	defaultTimeout = 2 * time.Minute
)

// Settings selects the model behind analyze_screen and analyze_image.
type Settings struct {
	Enabled  bool
	Provider string
	Model    string
	Endpoint string
}

// DefaultSettings returns a disabled local Ollama setup.
func DefaultSettings() Settings {
	return Settings{Provider: ProviderOllama, Model: DefaultModel, Endpoint: DefaultEndpoint}
}

// ErrEmptyResponse is returned when the model replies with no text.
var ErrEmptyResponse = errors.New("VLM returned empty response")

// APIError is an error reported by the Ollama API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama API error %d: %s", e.StatusCode, e.Message)
}

// ModelNotFound reports whether the server does not have the requested
// model pulled.
func (e *APIError) ModelNotFound() bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "model") && strings.Contains(msg, "not found")
}

// IsConnectionError reports whether err means the server could not be
// reached at all.
func IsConnectionError(err error) bool {
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// Ollama is a client for the Ollama chat API.
type Ollama struct {
	endpoint string
	client   *http.Client
}

// NewOllama returns a client for the server at endpoint. A nil client uses
// one with a two minute timeout, since local vision models are slow.
func NewOllama(endpoint string, client *http.Client) *Ollama {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Ollama{endpoint: strings.TrimSuffix(endpoint, "/"), client: client}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Chat sends prompt with images attached to model and returns the reply.
func (o *Ollama) Chat(ctx context.Context, model, prompt string, images ...[]byte) (string, error) {
	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt, Images: encoded}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out chatResponse
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &out) == nil && out.Error != "" {
			msg = out.Error
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if out.Error != "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	if out.Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Message.Content, nil
}
