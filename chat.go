package aidefense

import (
	"context"
)

// ChatClient inspects conversational AI traffic: prompts on their way to a
// model, responses on their way back, or whole conversations. All methods
// share one connection pool and may be called concurrently.
type ChatClient struct {
	*inspectClient
}

// NewChatClient creates a client for the chat inspection endpoint.
//
//	client, err := aidefense.NewChatClient(
//		aidefense.WithAPIKey(key),
//		aidefense.WithRegion(aidefense.RegionEU),
//	)
func NewChatClient(options ...Option) (*ChatClient, error) {
	ic, err := newInspectClient(chatInspectPath, options)
	if err != nil {
		return nil, err
	}
	return &ChatClient{inspectClient: ic}, nil
}

// chatInspectRequest is the wire shape of a chat inspection call.
type chatInspectRequest struct {
	Messages []Message         `json:"messages"`
	Metadata *Metadata         `json:"metadata,omitempty"`
	Config   *InspectionConfig `json:"config,omitempty"`
}

// InspectPrompt inspects a prompt before it reaches the model.
func (c *ChatClient) InspectPrompt(ctx context.Context, prompt string, opts InspectOptions) (*InspectResult, error) {
	if prompt == "" {
		return nil, validationErr("prompt", "prompt is required")
	}
	return c.InspectConversation(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts)
}

// InspectResponse inspects a model response on its own. Use
// InspectPromptResponse when the prompt that produced it is at hand; the
// service detects more with both sides present.
func (c *ChatClient) InspectResponse(ctx context.Context, response string, opts InspectOptions) (*InspectResult, error) {
	if response == "" {
		return nil, validationErr("response", "response is required")
	}
	return c.InspectConversation(ctx, []Message{{Role: RoleAssistant, Content: response}}, opts)
}

// InspectPromptResponse inspects a model response together with the prompt
// that produced it.
func (c *ChatClient) InspectPromptResponse(ctx context.Context, prompt, response string, opts InspectOptions) (*InspectResult, error) {
	if prompt == "" {
		return nil, validationErr("prompt", "prompt is required")
	}
	if response == "" {
		return nil, validationErr("response", "response is required")
	}
	return c.InspectConversation(ctx, []Message{
		{Role: RoleUser, Content: prompt},
		{Role: RoleAssistant, Content: response},
	}, opts)
}

// InspectConversation inspects an ordered sequence of messages. Messages must
// be non-empty and every role must be one of user, assistant, or system.
func (c *ChatClient) InspectConversation(ctx context.Context, messages []Message, opts InspectOptions) (*InspectResult, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}
	return c.doInspect(ctx, &chatInspectRequest{
		Messages: messages,
		Metadata: opts.Metadata,
		Config:   opts.Config,
	}, opts)
}

// ConversationBuilder simplifies the construction of a message sequence.
// First, create the builder with `NewConversationBuilder()`.
// Then, add messages in order with the Add methods.
// Finally, call `Build()` to get the messages.
//
// Example:
//
//	builder := NewConversationBuilder()
//	messages := builder.
//		AddSystem("You are a helpful assistant.").
//		AddPrompt("What's our refund policy?").
//		AddResponse("Refunds are available within 30 days.").
//		Build()
//
// You can then use the messages with the InspectConversation method.
type ConversationBuilder struct {
	messages []Message
}

// NewConversationBuilder creates a new ConversationBuilder.
func NewConversationBuilder() *ConversationBuilder {
	return &ConversationBuilder{
		messages: make([]Message, 0, 10),
	}
}

// AddPrompt appends a user message.
func (b *ConversationBuilder) AddPrompt(content string) *ConversationBuilder {
	return b.Add(RoleUser, content)
}

// AddResponse appends an assistant message.
func (b *ConversationBuilder) AddResponse(content string) *ConversationBuilder {
	return b.Add(RoleAssistant, content)
}

// AddSystem appends a system message.
func (b *ConversationBuilder) AddSystem(content string) *ConversationBuilder {
	return b.Add(RoleSystem, content)
}

// Add appends a message with the given role.
func (b *ConversationBuilder) Add(role Role, content string) *ConversationBuilder {
	b.messages = append(b.messages, Message{Role: role, Content: content})
	return b
}

// Build returns the accumulated messages.
func (b *ConversationBuilder) Build() []Message {
	return b.messages
}
