package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/providers"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI is a provider for OpenAI vision models
type OpenAI struct {
	client openai.Client
	apiKey string
}

// New returns a new OpenAI provider. The API key is read from OPENAI_API_KEY.
// The SDK's automatic retries are disabled: a failed page is reported once.
func New(opts ...option.RequestOption) *OpenAI {
	apiKey := os.Getenv("OPENAI_API_KEY")
	base := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		base = append(base, option.WithAPIKey(apiKey))
	}
	return &OpenAI{
		client: openai.NewClient(append(base, opts...)...),
		apiKey: apiKey,
	}
}

func (o *OpenAI) Name() string {
	return "openai"
}

// ExtractText sends the prompt and page image as a single user message
func (o *OpenAI) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(config.Prompt),
	}
	if len(config.Image) > 0 {
		mimeType := config.MimeType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(config.Image)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(config.Model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		Temperature: openai.Float(config.Temperature),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
