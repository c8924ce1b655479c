// Package translation annotates lyric lines with translations and
// romanizations, caching every answer for the life of the process.
package translation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnsupported 后端不支持该操作
var ErrUnsupported = errors.New("operation not supported by translation backend")

// Result 翻译结果
type Result struct {
	TranslatedText   string `json:"translatedText"`
	OriginalLanguage string `json:"originalLanguage"`
}

// Backend 翻译服务后端
type Backend interface {
	Name() string
	Translate(ctx context.Context, text, target string) (*Result, error)
	Romanize(ctx context.Context, sourceLang, text string) (string, error)
}

type cacheKey struct {
	text   string
	target string
}

// Service 带缓存的翻译服务
type Service struct {
	backend Backend
	logger  zerolog.Logger

	mu            sync.RWMutex
	translations  map[cacheKey]*Result
	romanizations map[string]string
}

// NewService 创建翻译服务
func NewService(backend Backend) *Service {
	return &Service{
		backend:       backend,
		logger:        log.With().Str("component", "translation").Str("backend", backend.Name()).Logger(),
		translations:  make(map[cacheKey]*Result),
		romanizations: make(map[string]string),
	}
}

// Translate returns nil when text is empty, the backend fails, or the
// translation is identical to the input.
func (s *Service) Translate(ctx context.Context, text, target string) *Result {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if r := s.CachedTranslation(text, target); r != nil {
		return r
	}

	r, err := s.backend.Translate(ctx, text, target)
	if err != nil {
		s.logger.Debug().Err(err).Str("target", target).Msg("Translation failed")
		return nil
	}
	if r == nil || r.TranslatedText == "" || strings.TrimSpace(r.TranslatedText) == strings.TrimSpace(text) {
		return nil
	}

	s.mu.Lock()
	s.translations[cacheKey{text, target}] = r
	s.mu.Unlock()
	return r
}

// Romanize returns "" when text is empty, the backend fails or has no
// romanization, or the romanization equals the input.
func (s *Service) Romanize(ctx context.Context, sourceLang, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if r := s.CachedRomanization(text); r != "" {
		return r
	}

	r, err := s.backend.Romanize(ctx, sourceLang, text)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			s.logger.Debug().Err(err).Str("language", sourceLang).Msg("Romanization failed")
		}
		return ""
	}
	if r == "" || strings.TrimSpace(r) == strings.TrimSpace(text) {
		return ""
	}

	s.mu.Lock()
	s.romanizations[text] = r
	s.mu.Unlock()
	return r
}

// CachedTranslation 只查缓存
func (s *Service) CachedTranslation(text, target string) *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.translations[cacheKey{text, target}]
}

// CachedRomanization 只查缓存
func (s *Service) CachedRomanization(text string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.romanizations[text]
}

// ClearCache 清空翻译和罗马音缓存
func (s *Service) ClearCache() {
	s.mu.Lock()
	s.translations = make(map[cacheKey]*Result)
	s.romanizations = make(map[string]string)
	s.mu.Unlock()
	s.logger.Info().Msg("Translation cache cleared")
}
