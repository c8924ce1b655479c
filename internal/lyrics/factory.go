package lyrics

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"lyrics-engine/internal/config"
	"lyrics-engine/internal/sniffer"
	"lyrics-engine/pkg/ai"
	"lyrics-engine/pkg/ai/gemini"
	"lyrics-engine/pkg/ai/openai"
	"lyrics-engine/pkg/clyrics"
	"lyrics-engine/pkg/httputil"
	"lyrics-engine/pkg/kvstore"
	"lyrics-engine/pkg/lrclib"
	"lyrics-engine/pkg/netease"
	"lyrics-engine/pkg/redis"
	"lyrics-engine/pkg/source"
	"lyrics-engine/pkg/translation"
	"lyrics-engine/pkg/unison"
)

const redisKeyPrefix = "lyrics-engine:result:"

// httpOptions 远程来源共用的重试设置
func httpOptions(cfg *config.Config) []httputil.Option {
	return []httputil.Option{
		httputil.WithMaxRetries(cfg.Providers.MaxRetries),
		httputil.WithBackoff(cfg.Providers.RetryBackoff),
	}
}

// CreateFiller 按名称创建歌词来源
func CreateFiller(name string, cfg *config.Config, sn *sniffer.Sniffer) (source.Filler, io.Closer, error) {
	p := cfg.Providers
	switch name {
	case "clyrics":
		store, err := clyrics.Open(cfg.Store.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open custom lyrics store: %w", err)
		}
		return clyrics.NewFiller(store), store, nil
	case "unison":
		ids, err := kvstore.Open(cfg.Store.KVPath)
		if err != nil {
			return nil, nil, err
		}
		return unison.NewClient(p.UnisonURL, p.RequestTimeout, ids, cfg.Fixers, httpOptions(cfg)...), nil, nil
	case "lrclib":
		return lrclib.NewClient(p.LRCLibURL, p.RequestTimeout, cfg.Fixers, httpOptions(cfg)...), nil, nil
	case "netease":
		return netease.NewClient(p.NeteaseURL, p.RequestTimeout, cfg.Fixers, httpOptions(cfg)...), nil, nil
	case "yt":
		if sn == nil {
			return nil, nil, fmt.Errorf("yt provider needs the page sniffer")
		}
		return sniffer.NewFiller(sn), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown lyrics provider: %s", name)
	}
}

// NewFromConfig builds the full provider stack. Optional pieces that fail
// to start (a provider, Redis, translation, AI) are logged and skipped.
func NewFromConfig(ctx context.Context, cfg *config.Config, sn *sniffer.Sniffer) (*Provider, error) {
	var (
		fillers []source.Filler
		closers []io.Closer
	)
	for _, name := range cfg.Providers.Enabled {
		f, closer, err := CreateFiller(name, cfg, sn)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		log.Info().Str("provider", f.Name()).Strs("slots", f.Sources()).Msg("Provider enabled")
		fillers = append(fillers, f)
		if closer != nil {
			closers = append(closers, closer)
		}
	}
	if len(fillers) == 0 {
		return nil, fmt.Errorf("no lyrics providers available")
	}

	manager := source.NewManager(fillers,
		source.WithPriority(cfg.Providers.Priority),
		source.WithRaceTimeout(cfg.Providers.RaceTimeout),
	)

	cache, closer := newResultCache(cfg)
	if closer != nil {
		closers = append(closers, closer)
	}

	var translator Translator
	if cfg.Translation.Enabled {
		backend, err := newTranslationBackend(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Translation disabled")
		} else {
			translator = translation.NewService(backend)
		}
	}

	var resolver *TitleResolver
	if cfg.AI.APIKey != "" {
		client, closer, err := newAIClient(ctx, cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("AI title resolver disabled")
		} else {
			resolver = NewTitleResolver(client)
			if closer != nil {
				closers = append(closers, closer)
			}
		}
	}

	var page PageData
	if sn != nil {
		page = sn
	}

	p := NewProvider(manager, cache, page, translator, resolver, Options{
		MatchingRetries: cfg.Sniffer.MatchingRetries,
		TargetLanguage:  cfg.Translation.TargetLanguage,
		Romanize:        cfg.Translation.Romanize,
	})
	p.closers = closers
	return p, nil
}

// newResultCache prefers Redis and falls back to JSON files in the cache dir.
func newResultCache(cfg *config.Config) (ResultCache, io.Closer) {
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redisKeyPrefix)
		if err == nil {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis result cache")
			return newRedisCache(client, cfg.Redis.TTL), client
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to file cache")
	}
	if err := os.MkdirAll(cfg.App.CacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("cache_dir", cfg.App.CacheDir).Msg("Result cache disabled")
		return nil, nil
	}
	log.Info().Str("cache_dir", cfg.App.CacheDir).Msg("Using file result cache")
	return newFileCache(cfg.App.CacheDir), nil
}

func newTranslationBackend(cfg *config.Config) (translation.Backend, error) {
	t := cfg.Translation
	switch t.Backend {
	case "", "google":
		return translation.NewGoogle(t.GoogleURL, cfg.Providers.RequestTimeout, httpOptions(cfg)...), nil
	case "tencent":
		return translation.NewTencent(t.TencentSecretID, t.TencentSecretKey, t.TencentRegion, int(cfg.Providers.RequestTimeout.Seconds()))
	default:
		return nil, fmt.Errorf("unknown translation backend: %s", t.Backend)
	}
}

func newAIClient(ctx context.Context, cfg config.AIConfig) (ai.AiInterface, io.Closer, error) {
	if cfg.ModuleName == "gemini" {
		g, err := gemini.NewGemini(ctx, cfg.APIKey, "")
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	}
	return openai.NewOpenAi(cfg.APIKey, cfg.ModuleName, cfg.BaseURL), nil, nil
}
