// Package ai defines the minimal LLM surface the title resolver needs.
package ai

import "context"

// AiInterface 单轮文本对话
type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}
