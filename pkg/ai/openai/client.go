package openai

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"lyrics-engine/pkg/ai"
)

const defaultModel = openai.GPT4oMini

var _ ai.AiInterface = (*OpenAi)(nil)

// OpenAi OpenAI 兼容接口客户端
type OpenAi struct {
	model  string
	client *openai.Client
	logger zerolog.Logger
}

// NewOpenAi 创建客户端，baseURL 为空时使用官方地址
func NewOpenAi(apiKey, modelName, baseURL string) *OpenAi {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &OpenAi{
		model:  modelName,
		client: openai.NewClientWithConfig(config),
		logger: log.With().Str("component", "openai").Logger(),
	}
}

// Name 返回名称
func (o *OpenAi) Name() string {
	return "openai"
}

// HandleText 单轮对话
func (o *OpenAi) HandleText(ctx context.Context, msg string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		},
		MaxTokens: 2000,
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("could not get response from openai")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
