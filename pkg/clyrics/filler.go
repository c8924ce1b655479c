package clyrics

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/source"
)

const (
	// CustomSource 自定义歌词槽位
	CustomSource = "custom-lyrics"

	sourceName = "Custom Lyrics"
)

// Filler serves stored records verbatim.
type Filler struct {
	store  *Store
	logger zerolog.Logger
}

// NewFiller 创建自定义歌词来源
func NewFiller(store *Store) *Filler {
	return &Filler{
		store:  store,
		logger: log.With().Str("component", "clyrics").Logger(),
	}
}

// Name 返回提供商名称
func (f *Filler) Name() string {
	return sourceName
}

// Sources 该来源负责的槽位
func (f *Filler) Sources() []string {
	return []string{CustomSource}
}

// Fill 查找自定义歌词
func (f *Filler) Fill(ctx context.Context, track lyric.Track, out *source.Outputs) {
	rec, err := f.store.Match(ctx, track)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			f.logger.Warn().Err(err).Str("track", track.String()).Msg("Custom lyrics lookup failed")
		}
		out.MissAll()
		return
	}
	if len(rec.Lyrics) == 0 {
		out.MissAll()
		return
	}

	f.logger.Info().Uint("id", rec.ID).Str("track", track.String()).Msg("Using custom lyrics")
	out.Set(CustomSource, &lyric.SourceResult{
		Lyrics:       rec.Lyrics,
		Source:       sourceName,
		SourceHref:   "",
		CacheAllowed: false,
		Duration:     rec.Duration,
		Song:         rec.Song,
		Artist:       rec.Artist,
		Album:        rec.Album,
	})
}
