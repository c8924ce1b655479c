package sniffer

import (
	"context"
	"strings"

	"lyrics-engine/pkg/lrc"
	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/source"
)

// PageSource 页面自带歌词槽位
const PageSource = "yt-lyrics"

// Filler reads lyrics the host page already fetched for the video.
type Filler struct {
	sniffer *Sniffer
}

// NewFiller 创建页面歌词来源
func NewFiller(s *Sniffer) *Filler {
	return &Filler{sniffer: s}
}

// Name 返回提供商名称
func (f *Filler) Name() string {
	return "YT"
}

// Sources 该来源负责的槽位
func (f *Filler) Sources() []string {
	return []string{PageSource}
}

// Fill 等待页面歌词并填充槽位
func (f *Filler) Fill(ctx context.Context, track lyric.Track, out *source.Outputs) {
	if track.VideoID == "" {
		out.MissAll()
		return
	}
	info := f.sniffer.GetLyrics(ctx, track.VideoID, 0)
	if !info.HasLyrics {
		f.sniffer.logger.Debug().Str("video_id", track.VideoID).Msg("No page lyrics")
		out.MissAll()
		return
	}

	out.Set(PageSource, &lyric.SourceResult{
		Lyrics:       lrc.ParsePlainLyrics(info.Lyrics),
		Source:       strings.TrimPrefix(info.SourceText, "Source: ") + " (via YT)",
		SourceHref:   "",
		CacheAllowed: false,
	})
}
