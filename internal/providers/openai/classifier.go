package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Choice is one action the classifier may return.
type Choice struct {
	Intent string
	Label  string
}

// Config controls the chat completion request.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// DefaultIntent is returned by the model when the request is unclear.
	DefaultIntent string
}

// Classifier maps a transcript to one intent token with a chat completion.
type Classifier struct {
	client *openai.Client
	cfg    Config
	prompt string
}

func NewClassifier(cfg Config, choices []Choice) (*Classifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if len(choices) == 0 {
		return nil, errors.New("classifier needs at least one choice")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 50
	}
	if cfg.DefaultIntent == "" {
		cfg.DefaultIntent = choices[0].Intent
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Classifier{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		prompt: systemPrompt(choices, cfg.DefaultIntent),
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errors.New("transcript is empty")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("classify transcript: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("classify transcript: empty choices")
	}
	return cleanIntent(resp.Choices[0].Message.Content), nil
}

func cleanIntent(content string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(content), "'\"`. "))
}

func systemPrompt(choices []Choice, defaultIntent string) string {
	var b strings.Builder
	b.WriteString("Bạn là trợ lý AI chuyên xử lý các yêu cầu từ văn bản chuyển đổi từ giọng nói.\n")
	b.WriteString("Dựa trên nội dung của yêu cầu, hãy trả về ID duy nhất của hành động phù hợp nhất từ danh sách dưới đây:\n\n")
	for _, choice := range choices {
		fmt.Fprintf(&b, "- '%s' - %s.\n", choice.Intent, choice.Label)
	}
	b.WriteString("\nQuy tắc:\n")
	b.WriteString("- Chỉ trả về ID duy nhất. Không thêm bất kỳ văn bản nào khác.\n")
	fmt.Fprintf(&b, "- Nếu yêu cầu không chắc chắn hoặc không rõ ràng, hãy trả về '%s' làm mặc định.\n", defaultIntent)
	b.WriteString("- Ưu tiên trả về ID chính xác nhất dựa trên ngữ cảnh của yêu cầu.\n")
	fmt.Fprintf(&b, "- Nếu không có ID phù hợp trong danh sách, hãy trả về '%s'.\n", defaultIntent)
	return b.String()
}
