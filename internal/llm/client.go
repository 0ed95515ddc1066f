// ABOUTME: Client for the external chat completion and transcription services.
// ABOUTME: Thin request/response boundary; retry and prompt policy live with callers.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/2389/parley-gateway/internal/config"
	"github.com/2389/parley-gateway/internal/history"
)

// ErrEmptyCompletion indicates the model call succeeded but returned no
// usable text. Callers treat this as a soft failure.
var ErrEmptyCompletion = errors.New("inference returned no usable text")

// ErrEmptyTranscript indicates the transcription call returned no text.
var ErrEmptyTranscript = errors.New("transcription returned no text")

// Client wraps an OpenAI-compatible inference endpoint. It carries no
// conversation state; callers supply the full ordered message list.
type Client struct {
	api             *openai.Client
	model           string
	transcribeModel string
	logger          *slog.Logger
}

// New creates a client from inference configuration. Pass nil logger for
// default.
func New(cfg config.InferenceConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	transcribeModel := cfg.TranscribeModel
	if transcribeModel == "" {
		transcribeModel = openai.Whisper1
	}

	return &Client{
		api:             openai.NewClientWithConfig(apiCfg),
		model:           model,
		transcribeModel: transcribeModel,
		logger:          logger.With("component", "llm"),
	}
}

// Complete sends the ordered message list and returns the assistant text.
// History roles map one-to-one onto the wire roles. A transport or API
// failure is returned wrapped; a successful call with no text returns
// ErrEmptyCompletion.
func (c *Client) Complete(ctx context.Context, messages []history.Message) (string, error) {
	apiMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		apiMsgs = append(apiMsgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: apiMsgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug("completion received",
		"model", c.model,
		"chars", len(text))
	return text, nil
}

// Transcribe converts an audio payload into text. The filename is passed
// through so the service can infer the container format. No retry here;
// that is the caller's policy.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}

	c.logger.Debug("transcription received",
		"model", c.transcribeModel,
		"chars", len(text))
	return text, nil
}
