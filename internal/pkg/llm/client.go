package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"

	"github.com/grantforge/backend/config"
)

// Completion is one model reply with its token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Completer is the single text-completion contract the drafting pipeline
// depends on. Model identity is configuration, not a per-call decision.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (*Completion, error)
}

// Client talks to an OpenAI-compatible chat endpoint through eino.
type Client struct {
	chatModel model.ToolCallingChatModel
	model     string
	timeout   time.Duration
}

func NewClient(cfg config.LLMConfig) (*Client, error) {
	modelConfig := &openai.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}
	if cfg.APIURL != "" {
		modelConfig.BaseURL = cfg.APIURL
	}

	chatModel, err := openai.NewChatModel(context.Background(), modelConfig)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &Client{chatModel: chatModel, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Complete sends one system+user exchange and returns the reply text with
// token counts. An empty reply is an error; callers never receive a
// zero-content completion.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (*Completion, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPrompt},
	}

	var opts []model.Option
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	klog.V(6).Infof("completion request: model=%s, maxTokens=%d, promptChars=%d",
		c.model, maxTokens, len(systemPrompt)+len(userPrompt))

	msg, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("completion returned empty content")
	}

	completion := &Completion{Text: msg.Content, Model: c.model}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		completion.InputTokens = msg.ResponseMeta.Usage.PromptTokens
		completion.OutputTokens = msg.ResponseMeta.Usage.CompletionTokens
	}

	klog.V(6).Infof("completion done: outputChars=%d, inputTokens=%d, outputTokens=%d",
		len(msg.Content), completion.InputTokens, completion.OutputTokens)
	return completion, nil
}
