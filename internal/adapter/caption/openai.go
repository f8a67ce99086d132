package caption

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"shoprag/internal/domain"
)

const captionPrompt = "Describe the clothing or accessory in this image in one short sentence. " +
	"Mention the item type, colours, pattern and style."

// OpenAICaptioner describes images through an OpenAI-compatible vision chat model.
type OpenAICaptioner struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAICaptioner reads the API key from apiKeyEnv. An empty baseURL
// targets api.openai.com.
func NewOpenAICaptioner(apiKeyEnv, model, baseURL string, timeout time.Duration) (*OpenAICaptioner, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return NewOpenAICompatibleCaptioner(apiKey, model, baseURL, timeout), nil
}

// NewOpenAICompatibleCaptioner builds a captioner from an explicit key.
func NewOpenAICompatibleCaptioner(apiKey, model, baseURL string, timeout time.Duration) *OpenAICaptioner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAICaptioner{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Caption sends the image as a base64 data URL and returns the model's answer.
func (c *OpenAICaptioner) Caption(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("caption: empty image")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 60,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: captionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    DataURL(image),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: caption: %w", domain.ErrProviderUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: caption: empty response", domain.ErrProviderUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAICaptioner) ModelName() string {
	return c.model
}

// DataURL encodes image as a data URL with a sniffed content type.
func DataURL(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// DecodeImage accepts raw base64 or a data URL and returns the image bytes.
func DecodeImage(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		i := strings.IndexByte(data, ',')
		if i < 0 {
			return nil, fmt.Errorf("decode image: malformed data URL")
		}
		data = data[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("decode image: empty payload")
	}
	return img, nil
}
