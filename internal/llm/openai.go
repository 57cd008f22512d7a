package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// AnthropicBaseURL is Anthropic's OpenAI-compatible endpoint.
const AnthropicBaseURL = "https://api.anthropic.com/v1/"

const systemPrompt = "You are a senior technical writer who turns source code projects into clear, accurate articles."

// ChatSettings configures a chat-completions client.
type ChatSettings struct {
	Name        string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// ChatClient speaks the OpenAI chat-completions protocol. It serves OpenAI
// directly and Anthropic through its compatibility endpoint.
type ChatClient struct {
	name     string
	model    string
	settings ChatSettings
	client   openai.Client
}

var _ Completer = (*ChatClient)(nil)

// NewChatClient builds a client. SDK retries are disabled; the gateway
// retries.
func NewChatClient(s ChatSettings) (*ChatClient, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New("llm: chat client: missing api key")
	}
	if s.Model == "" {
		return nil, errors.New("llm: chat client: missing model")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(0),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	name := s.Name
	if name == "" {
		name = "openai"
	}
	return &ChatClient{
		name:     name + ":" + s.Model,
		model:    s.Model,
		settings: s,
		client:   openai.NewClient(opts...),
	}, nil
}

// NewOpenAI returns a completer for OpenAI.
func NewOpenAI(apiKey, model string, opts Options) (*ChatClient, error) {
	return NewChatClient(ChatSettings{
		Name:        string(ProviderOpenAI),
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     opts.BaseURL,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
}

// NewAnthropic returns a completer for Anthropic's compatibility endpoint.
func NewAnthropic(apiKey, model string, opts Options) (*ChatClient, error) {
	base := opts.BaseURL
	if base == "" {
		base = AnthropicBaseURL
	}
	return NewChatClient(ChatSettings{
		Name:        string(ProviderAnthropic),
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     base,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
}

func (c *ChatClient) Name() string { return c.name }

func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	}
	if c.settings.Temperature > 0 {
		params.Temperature = openai.Float(c.settings.Temperature)
	}
	if c.settings.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.settings.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: %s: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: %s: %w", c.name, ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("llm: %s: %w", c.name, ErrEmptyResponse)
	}
	return text, nil
}
