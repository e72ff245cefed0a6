package gpt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wiltort/bot-constructor/bot/chat"
	"github.com/wiltort/bot-constructor/internal/lib/sl"

	"github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT4oMini

var ErrEmptyResponse = errors.New("completion has no choices")

// ChatClient is the part of the OpenAI client used for completions.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Completer answers chat messages with an OpenAI-compatible backend.
type Completer struct {
	client  ChatClient
	timeout time.Duration
	log     *slog.Logger
}

// NewCompleter builds a client for the key; baseURL overrides the
// endpoint for compatible providers.
func NewCompleter(apiKey, baseURL string, log *slog.Logger) *Completer {
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	return NewCompleterWithClient(openai.NewClientWithConfig(conf), log)
}

func NewCompleterWithClient(client ChatClient, log *slog.Logger) *Completer {
	return &Completer{
		client:  client,
		timeout: 2 * time.Minute,
		log:     log.With(sl.Module("gpt")),
	}
}

func (c *Completer) Complete(ctx context.Context, model string, messages []chat.Message) (string, error) {
	if model == "" {
		model = DefaultModel
	}

	request := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.log.With(
		slog.String("model", model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)),
	).Debug("chat completion")

	return resp.Choices[0].Message.Content, nil
}
