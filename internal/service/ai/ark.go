package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
)

// ArkCompleter forwards transcripts to an eino chat model (Volcengine Ark).
type ArkCompleter struct {
	chatModel model.BaseChatModel
	name      string
}

// NewArkCompleter wraps a chat model; name is reported as the model identifier.
func NewArkCompleter(chatModel model.BaseChatModel, name string) *ArkCompleter {
	return &ArkCompleter{chatModel: chatModel, name: name}
}

// Model returns the configured Ark model or endpoint id.
func (c *ArkCompleter) Model() string {
	return c.name
}

// Complete implements Completer using a single non-streaming Generate call.
func (c *ArkCompleter) Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	input := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		input = append(input, &schema.Message{
			Role:    schema.RoleType(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := c.chatModel.Generate(ctx, input)
	if err != nil {
		return chat.Turn{}, err
	}
	if resp == nil {
		return chat.Turn{}, ErrNoChoices
	}

	role := chat.Role(resp.Role)
	if role == "" {
		role = chat.RoleAssistant
	}
	return chat.Turn{Role: role, Content: resp.Content}, nil
}
