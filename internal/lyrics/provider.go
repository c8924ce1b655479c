package lyrics

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/translation"
)

const (
	// 补全专辑只等很短的时间
	defaultAlbumRetries = 10
	annotateLimit       = 4
)

// Lookuper runs a race for one track.
type Lookuper interface {
	Lookup(ctx context.Context, track lyric.Track) (*lyric.SourceResult, error)
}

// PageData answers questions about the host page's current video.
type PageData interface {
	GetSongAlbum(ctx context.Context, videoID string, retries int) string
	GetMatchingSong(ctx context.Context, videoID string, retries int) *lyric.MatchingSong
}

// Translator annotates lyric text.
type Translator interface {
	Translate(ctx context.Context, text, target string) *translation.Result
	Romanize(ctx context.Context, sourceLang, text string) string
	ClearCache()
}

// Options 查询流程参数
type Options struct {
	AlbumRetries    int
	MatchingRetries int
	TargetLanguage  string
	Romanize        bool
}

// Provider 编排一次完整的歌词查询
type Provider struct {
	manager    Lookuper
	cache      ResultCache
	page       PageData
	translator Translator
	resolver   *TitleResolver
	opts       Options
	closers    []io.Closer
	logger     zerolog.Logger
}

// NewProvider wires a provider. cache, page, translator and resolver may
// be nil.
func NewProvider(manager Lookuper, cache ResultCache, page PageData, translator Translator, resolver *TitleResolver, opts Options) *Provider {
	if opts.AlbumRetries <= 0 {
		opts.AlbumRetries = defaultAlbumRetries
	}
	if opts.TargetLanguage == "" {
		opts.TargetLanguage = "en"
	}
	return &Provider{
		manager:    manager,
		cache:      cache,
		page:       page,
		translator: translator,
		resolver:   resolver,
		opts:       opts,
		logger:     log.With().Str("component", "lyrics").Logger(),
	}
}

// GetLyrics resolves the title, backfills the album, serves from cache or
// races the sources, then aligns and annotates the result. The returned
// error is source.ErrSuperseded or a context error; "no lyrics" is a
// result, not an error.
func (p *Provider) GetLyrics(ctx context.Context, track lyric.Track) (*lyric.SourceResult, error) {
	start := time.Now()

	if p.resolver != nil {
		track = p.resolver.Resolve(ctx, track)
	}
	if track.Album == "" && track.VideoID != "" && p.page != nil {
		if album := p.page.GetSongAlbum(ctx, track.VideoID, p.opts.AlbumRetries); album != "" {
			p.logger.Debug().Str("album", album).Msg("Backfilled album")
			track.Album = album
		}
	}

	key := track.Key()
	res, hit := p.fromCache(ctx, key)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !hit {
		var err error
		res, err = p.manager.Lookup(ctx, track)
		if err != nil {
			return nil, err
		}
		if res.CacheAllowed && !res.IsNoLyrics() && p.cache != nil {
			if err := p.cache.Set(ctx, key, res); err != nil {
				p.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache result")
			}
		}
	}

	if res.IsNoLyrics() {
		return res, nil
	}
	res = p.align(ctx, track, res)
	res = p.annotate(ctx, res)
	res.RTL = res.HasRTL()
	// 被取消的查询不返回结果，避免覆盖新曲目
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("track", track.String()).
		Str("source", res.Source).
		Bool("cache_hit", hit).
		Dur("elapsed", time.Since(start)).
		Msg("Lyrics ready")
	return res, nil
}

func (p *Provider) fromCache(ctx context.Context, key string) (*lyric.SourceResult, bool) {
	if p.cache == nil {
		return nil, false
	}
	res, ok := p.cache.Get(ctx, key)
	if ok {
		p.logger.Info().Str("key", key).Msg("Cache HIT")
	}
	return res, ok
}

// align moves a music-video result onto the video's own timeline.
func (p *Provider) align(ctx context.Context, track lyric.Track, res *lyric.SourceResult) *lyric.SourceResult {
	if !track.MusicVideo || track.VideoID == "" || p.page == nil || res.MusicVideoSynced {
		return res
	}
	match := p.page.GetMatchingSong(ctx, track.VideoID, p.opts.MatchingRetries)
	if match == nil || match.SegmentMap == nil || len(match.SegmentMap.Segment) == 0 {
		p.logger.Debug().Str("video_id", track.VideoID).Msg("No segment map for music video")
		return res
	}
	p.logger.Debug().
		Str("video_id", track.VideoID).
		Str("counterpart", match.CounterpartVideoID).
		Int("segments", len(match.SegmentMap.Segment)).
		Msg("Aligning lyrics to music video")
	return lyric.AlignToPrimary(res, match.SegmentMap)
}

// annotate fills translations and romanizations on a copy of res. Lines
// that fail keep their text only.
func (p *Provider) annotate(ctx context.Context, res *lyric.SourceResult) *lyric.SourceResult {
	if p.translator == nil || len(res.Lyrics) == 0 {
		return res
	}
	out := res.Clone()
	target := p.opts.TargetLanguage

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(annotateLimit)
	for i := range out.Lyrics {
		l := &out.Lyrics[i]
		if l.Words == "" {
			continue
		}
		g.Go(func() error {
			lang := out.Language
			if l.Translation == "" {
				if t := p.translator.Translate(gctx, l.Words, target); t != nil {
					if t.OriginalLanguage != target {
						l.Translation = t.TranslatedText
					}
					if lang == "" {
						lang = t.OriginalLanguage
					}
				}
			}
			if p.opts.Romanize && l.Romanization == "" && lyric.ContainsNonLatin(l.Words) {
				if lang == "" {
					lang = "auto"
				}
				l.Romanization = p.translator.Romanize(gctx, lang, l.Words)
			}
			return nil
		})
	}
	g.Wait()
	return out
}

// ClearCache drops the translation cache and every cached result.
func (p *Provider) ClearCache(ctx context.Context) error {
	if p.translator != nil {
		p.translator.ClearCache()
	}
	if p.cache == nil {
		return nil
	}
	return p.cache.Clear(ctx)
}

// Close 释放底层资源
func (p *Provider) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
