package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/ai"
	"lyrics-engine/pkg/lyric"
)

const resolverRetries = 3

// SongInfo AI 返回的歌曲信息
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式，并将繁体中文转换为简体。 媒体标题是：%s`, title)
}

// TitleResolver splits a raw media title into song and artist with an LLM.
type TitleResolver struct {
	client     ai.AiInterface
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewTitleResolver 创建标题解析器
func NewTitleResolver(client ai.AiInterface) *TitleResolver {
	return &TitleResolver{
		client:     client,
		retryDelay: time.Second,
		logger:     log.With().Str("component", "resolver").Str("ai", client.Name()).Logger(),
	}
}

// Resolve returns track with Song and Artist filled in from the title.
// Tracks that already have an artist, non-songs and failures come back
// unchanged.
func (r *TitleResolver) Resolve(ctx context.Context, track lyric.Track) lyric.Track {
	if track.Artist != "" || track.Song == "" {
		return track
	}

	info, err := r.query(ctx, track.Song)
	if err != nil {
		r.logger.Warn().Err(err).Str("title", track.Song).Msg("Failed to resolve title")
		return track
	}
	if !info.IsSong || info.Title == "" {
		r.logger.Info().Str("title", track.Song).Msg("Title is not a song, looking up as-is")
		return track
	}

	r.logger.Info().Str("title", info.Title).Str("artist", info.Artist).Msg("AI resolved title")
	track.Song = info.Title
	track.Artist = info.Artist
	return track
}

func (r *TitleResolver) query(ctx context.Context, title string) (*SongInfo, error) {
	var raw string
	var err error
	for i := 0; i < resolverRetries; i++ {
		raw, err = r.client.HandleText(ctx, formatQuerySong(title))
		if err == nil {
			break
		}
		r.logger.Warn().Err(err).Int("attempt", i+1).Msg("AI query failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("ai query failed after %d attempts: %w", resolverRetries, err)
	}

	var info SongInfo
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &info); err != nil {
		return nil, fmt.Errorf("failed to parse ai response: %w", err)
	}
	return &info, nil
}

// stripCodeFence removes a markdown ``` wrapper some models add anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
