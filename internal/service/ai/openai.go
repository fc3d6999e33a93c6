package ai

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
)

// OpenAICompleter calls the OpenAI chat completion API without streaming.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter binds a client to a fixed model identifier.
func NewOpenAICompleter(client *openai.Client, model string) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model}
}

// Model returns the model identifier every request is sent to.
func (c *OpenAICompleter) Model() string {
	return c.model
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return chat.Turn{}, err
	}
	if len(resp.Choices) == 0 {
		return chat.Turn{}, ErrNoChoices
	}

	msg := resp.Choices[0].Message
	return chat.Turn{Role: chat.Role(msg.Role), Content: msg.Content}, nil
}
