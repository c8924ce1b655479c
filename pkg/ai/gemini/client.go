package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"lyrics-engine/pkg/ai"
)

const defaultModel = "gemini-2.5-flash"

var _ ai.AiInterface = (*Gemini)(nil)

// Gemini Google Gemini 客户端
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger zerolog.Logger
}

// NewGemini 创建 Gemini 客户端
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	if modelName == "" {
		modelName = defaultModel
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	return &Gemini{
		client: client,
		model:  model,
		logger: log.With().Str("component", "gemini").Logger(),
	}, nil
}

// Name 返回名称
func (g *Gemini) Name() string {
	return "gemini"
}

// HandleText 发送一条消息并返回第一段文本回复
func (g *Gemini) HandleText(ctx context.Context, msg string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(msg))
	if err != nil {
		g.logger.Error().Err(err).Msg("could not get response from gemini")
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Close 关闭底层连接
func (g *Gemini) Close() error {
	return g.client.Close()
}
