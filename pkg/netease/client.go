package netease

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
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
	// SyncedSource 网易云逐行歌词槽位
	SyncedSource = "netease-synced"

	DefaultBaseURL = "https://music.163.com"

	sourceName = "NetEase Cloud Music"
	sourceHref = "https://music.163.com"

	// 网易云接口拒绝非浏览器的 User-Agent
	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// maxDurationDiff 搜索结果与目标时长的最大误差（秒）
	maxDurationDiff = 5
)

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Result struct {
		Songs []NeteaseSong `json:"songs"`
	} `json:"result"`
}

// NeteaseSong 搜索结果中的歌曲
type NeteaseSong struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Duration int64 `json:"duration"` // 毫秒
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
}

// Client 网易云音乐客户端
type Client struct {
	http           *httputil.Client
	baseURL        string
	cookie         string
	requestTimeout time.Duration
	fixers         lrc.FixerConfig
	logger         zerolog.Logger
}

// NewClient 创建新的网易云音乐客户端
func NewClient(baseURL string, requestTimeout time.Duration, fixers lrc.FixerConfig, opts ...httputil.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestTimeout <= 0 {
		requestTimeout = httputil.DefaultTimeout
	}
	return &Client{
		http:           httputil.NewClient("netease", requestTimeout,
			append([]httputil.Option{httputil.WithUserAgent(browserUserAgent)}, opts...)...),
		baseURL:        strings.TrimRight(baseURL, "/"),
		cookie:         os.Getenv("NETEASE_COOKIE"),
		requestTimeout: requestTimeout,
		fixers:         fixers,
		logger:         log.With().Str("component", "netease").Logger(),
	}
}

// Name 获取提供商名称
func (c *Client) Name() string {
	return sourceName
}

// Sources 该来源负责的槽位
func (c *Client) Sources() []string {
	return []string{SyncedSource}
}

// Fill searches the track, downloads its LRC and attaches the translated
// LRC line by line.
func (c *Client) Fill(ctx context.Context, track lyric.Track, out *source.Outputs) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	song, err := c.SearchSong(ctx, track.Song, track.Artist, track.Duration)
	if err != nil {
		c.logger.Warn().Err(err).Str("track", track.String()).Msg("NetEase search failed")
		out.MissAll()
		return
	}

	resp, err := c.GetLyrics(ctx, strconv.Itoa(song.ID))
	if err != nil {
		c.logger.Warn().Err(err).Int("song_id", song.ID).Msg("NetEase lyrics request failed")
		out.MissAll()
		return
	}

	songLength := track.DurationMs()
	if songLength <= 0 {
		songLength = song.Duration
	}
	lines := lrc.ParseLRC(resp.Lrc.Lyric, songLength)
	if len(lines) == 0 {
		c.logger.Debug().Int("song_id", song.ID).Msg("NetEase returned no synced lines")
		out.MissAll()
		return
	}
	lrc.Fix(lines, c.fixers)
	if resp.Tlyric.Lyric != "" {
		attachTranslations(lines, lrc.ParseLRC(resp.Tlyric.Lyric, songLength))
	}

	artist := ""
	if len(song.Artists) > 0 {
		artist = song.Artists[0].Name
	}
	out.Set(SyncedSource, &lyric.SourceResult{
		Lyrics:       lines,
		Source:       sourceName,
		SourceHref:   fmt.Sprintf("%s/#/song?id=%d", sourceHref, song.ID),
		CacheAllowed: true,
		Duration:     float64(song.Duration) / 1000,
		Song:         song.Name,
		Artist:       artist,
	})
}

// SearchSong 搜索歌曲
func (c *Client) SearchSong(ctx context.Context, title, artist string, duration float64) (*NeteaseSong, error) {
	params := url.Values{}
	params.Set("s", strings.TrimSpace(title+" "+artist))
	params.Set("type", "1")
	params.Set("limit", "30")
	searchURL := c.baseURL + "/api/search/get/web?" + params.Encode()
	c.logger.Debug().Str("url", searchURL).Msg("Searching for song")

	var searchResp NeteaseSearchResponse
	if err := c.http.GetJSON(ctx, searchURL, c.header(), &searchResp); err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if len(searchResp.Result.Songs) == 0 {
		return nil, fmt.Errorf("no songs found for '%s'", title)
	}

	song := c.findBestMatch(searchResp, artist, title, duration)
	if song == nil {
		return nil, fmt.Errorf("no matching song found for '%s' by '%s'", title, artist)
	}
	return song, nil
}

// GetLyrics 获取歌词
func (c *Client) GetLyrics(ctx context.Context, songID string) (*NeteaseLyricResponse, error) {
	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%s&lv=-1&kv=-1&tv=-1", c.baseURL, url.QueryEscape(songID))
	c.logger.Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	var lyricResp NeteaseLyricResponse
	if err := c.http.GetJSON(ctx, lyricURL, c.header(), &lyricResp); err != nil {
		return nil, fmt.Errorf("lyric request failed: %w", err)
	}
	return &lyricResp, nil
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.cookie != "" {
		h.Set("Cookie", c.cookie)
	}
	return h
}

// findBestMatch 找到最佳匹配的歌曲
func (c *Client) findBestMatch(resp NeteaseSearchResponse, targetArtist, targetTitle string, targetDuration float64) *NeteaseSong {
	durationOK := func(song *NeteaseSong) bool {
		if targetDuration <= 0 || song.Duration <= 0 {
			return true
		}
		return math.Abs(float64(song.Duration)/1000-targetDuration) <= maxDurationDiff
	}

	// 标题、时长、艺术家都满足的候选里取相似度最高的
	var best *NeteaseSong
	bestScore := -1.0
	for i := range resp.Result.Songs {
		song := &resp.Result.Songs[i]
		if !containsIgnoreCase(song.Name, targetTitle) || !durationOK(song) {
			continue
		}

		// artists 可能有多个，只要一个满足就算
		artistScore := -1.0
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				artistScore = max(artistScore, lyric.StringSimilarity(artist.Name, targetArtist, 2, false))
			}
		}
		if artistScore < 0 {
			continue
		}
		score := lyric.StringSimilarity(song.Name, targetTitle, 2, false) + artistScore
		if score > bestScore {
			best, bestScore = song, score
		}
	}
	if best != nil {
		c.logger.Debug().Str("song", best.Name).Int("id", best.ID).Float64("score", bestScore).Msg("Found matching song")
		return best
	}

	// 没有完全匹配时，退回第一个标题匹配的
	first := &resp.Result.Songs[0]
	if containsIgnoreCase(first.Name, targetTitle) && durationOK(first) {
		c.logger.Debug().Str("song", first.Name).Int("id", first.ID).Msg("Using first matching song")
		return first
	}

	return nil
}

// attachTranslations 按时间戳把翻译歌词挂到原文行上
func attachTranslations(lines, translated []lyric.Line) {
	byStart := make(map[int64]string, len(translated))
	for _, t := range translated {
		if t.Words != "" {
			byStart[t.StartTimeMs] = t.Words
		}
	}
	for i := range lines {
		if t, ok := byStart[lines[i].StartTimeMs]; ok && t != lines[i].Words {
			lines[i].Translation = t
		}
	}
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase 忽略大小写和空格的包含关系检查
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}
