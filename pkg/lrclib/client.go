package lrclib

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/httputil"
	"lyrics-engine/pkg/lrc"
	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/source"
)

const (
	// SyncedSource 逐行同步歌词槽位
	SyncedSource = "lrclib-synced"
	// PlainSource holds the unsynced text. It is never cached: a plain-only
	// match is low confidence.
	PlainSource = "lrclib-plain"

	DefaultBaseURL = "https://lrclib.net/api"

	sourceName   = "LRCLib"
	sourceHref   = "https://lrclib.net"
	clientHeader = "lyrics-engine v1.0"
)

// Client LRCLib客户端
type Client struct {
	http           *httputil.Client
	baseURL        string
	requestTimeout time.Duration
	fixers         lrc.FixerConfig
	logger         zerolog.Logger
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LRCLibSearchResponse LRCLib API搜索响应（列表）
type LRCLibSearchResponse []LRCLibResponse

// NewClient 创建新的 LRCLib 客户端，opts 传给底层 HTTP 客户端
func NewClient(baseURL string, requestTimeout time.Duration, fixers lrc.FixerConfig, opts ...httputil.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestTimeout <= 0 {
		requestTimeout = httputil.DefaultTimeout
	}
	return &Client{
		http:           httputil.NewClient("lrclib", requestTimeout, opts...),
		baseURL:        strings.TrimRight(baseURL, "/"),
		requestTimeout: requestTimeout,
		fixers:         fixers,
		logger:         log.With().Str("component", "lrclib").Logger(),
	}
}

// Name 返回提供商名称
func (c *Client) Name() string {
	return sourceName
}

// Sources 该来源负责的槽位
func (c *Client) Sources() []string {
	return []string{SyncedSource, PlainSource}
}

// Fill fills the synced and plain slots from one LRCLib lookup. Each slot
// is answered on its own: a record with only plain text still fills the
// plain slot.
func (c *Client) Fill(ctx context.Context, track lyric.Track, out *source.Outputs) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	record, err := c.GetLyrics(ctx, track)
	if err != nil {
		c.logger.Warn().Err(err).Str("track", track.String()).Msg("LRCLib lookup failed")
		out.MissAll()
		return
	}
	if record.Instrumental {
		c.logger.Debug().Str("track", track.String()).Msg("Track is instrumental")
		out.MissAll()
		return
	}

	songLength := track.DurationMs()
	if songLength <= 0 {
		songLength = int64(math.Round(record.Duration * 1000))
	}

	if record.SyncedLyrics != "" {
		lines := lrc.ParseLRC(record.SyncedLyrics, songLength)
		lrc.Fix(lines, c.fixers)
		out.Set(SyncedSource, c.result(record, lines, true))
	} else {
		out.Miss(SyncedSource)
	}

	if record.PlainLyrics != "" {
		out.Set(PlainSource, c.result(record, lrc.ParsePlainLyrics(record.PlainLyrics), false))
	} else {
		out.Miss(PlainSource)
	}
}

func (c *Client) result(record *LRCLibResponse, lines []lyric.Line, cacheAllowed bool) *lyric.SourceResult {
	if len(lines) == 0 {
		return nil
	}
	return &lyric.SourceResult{
		Lyrics:           lines,
		Source:           sourceName,
		SourceHref:       sourceHref,
		CacheAllowed:     cacheAllowed,
		MusicVideoSynced: false,
		Duration:         record.Duration,
		Song:             record.TrackName,
		Artist:           record.ArtistName,
		Album:            record.AlbumName,
	}
}

// GetLyrics asks /get for an exact signature match and falls back to
// /search when LRCLib has no such record.
func (c *Client) GetLyrics(ctx context.Context, track lyric.Track) (*LRCLibResponse, error) {
	params := url.Values{}
	params.Set("track_name", track.Song)
	params.Set("artist_name", track.Artist)
	if track.Album != "" {
		params.Set("album_name", track.Album)
	}
	if track.Duration > 0 {
		params.Set("duration", strconv.FormatFloat(track.Duration, 'f', -1, 64))
	}

	var record LRCLibResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/get?"+params.Encode(), c.header(), &record)
	if err == nil {
		c.logger.Info().
			Str("track", record.TrackName).
			Str("artist", record.ArtistName).
			Float64("duration", record.Duration).
			Msg("Found exact match")
		return &record, nil
	}
	if !httputil.IsStatus(err, http.StatusNotFound) {
		return nil, err
	}

	c.logger.Debug().Str("track", track.String()).Msg("No exact match, searching")
	return c.search(ctx, track)
}

func (c *Client) search(ctx context.Context, track lyric.Track) (*LRCLibResponse, error) {
	params := url.Values{}
	params.Set("track_name", track.Song)
	params.Set("artist_name", track.Artist)

	var results LRCLibSearchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/search?"+params.Encode(), c.header(), &results); err != nil {
		return nil, err
	}

	c.logger.Info().Int("results", len(results)).Str("track", track.String()).Msg("Search finished")
	if len(results) == 0 {
		return nil, fmt.Errorf("no lyrics found for '%s'", track)
	}
	return c.findBestMatch(results, track.Song, track.Artist, track.Duration), nil
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Lrclib-Client", clientHeader)
	return h
}

// findBestMatch 从搜索结果中找到最佳匹配的歌词
func (c *Client) findBestMatch(responses LRCLibSearchResponse, targetTitle, targetArtist string, targetDuration float64) *LRCLibResponse {
	if len(responses) == 0 {
		return nil
	}

	var exactMatches []*LRCLibResponse
	var titleMatches []*LRCLibResponse

	for i := range responses {
		response := &responses[i]

		if containsIgnoreCase(response.TrackName, targetTitle) && containsIgnoreCase(response.ArtistName, targetArtist) {
			exactMatches = append(exactMatches, response)
		} else if containsIgnoreCase(response.TrackName, targetTitle) {
			titleMatches = append(titleMatches, response)
		}
	}

	// 优先从标题+艺术家都匹配的结果中筛选时长
	matchPool := exactMatches
	if len(matchPool) == 0 {
		matchPool = titleMatches
	}
	if len(matchPool) == 0 {
		matchPool = make([]*LRCLibResponse, len(responses))
		for i := range responses {
			matchPool[i] = &responses[i]
		}
	}
	// 相似度高的排在前面，同分保持原顺序
	slices.SortStableFunc(matchPool, func(a, b *LRCLibResponse) int {
		return cmp.Compare(matchScore(b, targetTitle, targetArtist), matchScore(a, targetTitle, targetArtist))
	})

	if targetDuration > 0 {
		const maxDurationDiff = 3 // 最大允许3秒误差
		bestMatch := matchPool[0]
		minDiff := math.Abs(bestMatch.Duration - targetDuration)

		for _, m := range matchPool {
			diff := math.Abs(m.Duration - targetDuration)
			if diff < minDiff {
				minDiff = diff
				bestMatch = m
			}
			if diff <= maxDurationDiff {
				c.logger.Debug().Float64("diff", diff).Msg("Found duration match within threshold")
				return m
			}
		}

		c.logger.Debug().Float64("diff", minDiff).Msg("Using best duration match")
		return bestMatch
	}

	return matchPool[0]
}

// matchScore 标题与艺术家相似度之和
func matchScore(r *LRCLibResponse, title, artist string) float64 {
	return lyric.StringSimilarity(r.TrackName, title, 2, false) +
		lyric.StringSimilarity(r.ArtistName, artist, 2, false)
}

// containsIgnoreCase 忽略大小写检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
