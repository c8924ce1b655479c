// Package unison fetches word-synced timed text from the Unison lyrics API.
package unison

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/httputil"
	"lyrics-engine/pkg/lrc"
	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/source"
	"lyrics-engine/pkg/ttml"
)

const (
	// RichSyncedSource 逐字歌词槽位
	RichSyncedSource = "unison-richsynced"

	sourceName     = "Unison"
	deviceIDKey    = "odid"
	deviceIDHeader = "X-Device-ID"
)

// DeviceIDStore persists the per-install device identity.
type DeviceIDStore interface {
	GetOrCreate(key string, create func() string) (string, error)
}

type response struct {
	Data struct {
		Lyrics string `json:"lyrics"`
	} `json:"data"`
}

// Client Unison客户端
type Client struct {
	http           *httputil.Client
	baseURL        string
	requestTimeout time.Duration
	ids            DeviceIDStore
	fixers         lrc.FixerConfig
	logger         zerolog.Logger

	fallbackOnce sync.Once
	fallbackID   string
}

// NewClient 创建新的Unison客户端。baseURL 为空时该来源总是未命中
func NewClient(baseURL string, requestTimeout time.Duration, ids DeviceIDStore, fixers lrc.FixerConfig, opts ...httputil.Option) *Client {
	if requestTimeout <= 0 {
		requestTimeout = httputil.DefaultTimeout
	}
	return &Client{
		http:           httputil.NewClient("unison", requestTimeout, opts...),
		baseURL:        baseURL,
		requestTimeout: requestTimeout,
		ids:            ids,
		fixers:         fixers,
		logger:         log.With().Str("component", "unison").Logger(),
	}
}

// Name 返回提供商名称
func (c *Client) Name() string {
	return sourceName
}

// Sources 该来源负责的槽位
func (c *Client) Sources() []string {
	return []string{RichSyncedSource}
}

// DeviceID returns the persisted install identity, generating it on first
// use. Without a store, or when the store cannot be written, an identity
// that lives as long as the process is used instead.
func (c *Client) DeviceID() string {
	if c.ids != nil {
		id, err := c.ids.GetOrCreate(deviceIDKey, uuid.NewString)
		if err == nil {
			return id
		}
		c.logger.Warn().Err(err).Msg("Failed to persist device id")
		if id != "" {
			return id
		}
	}
	c.fallbackOnce.Do(func() {
		c.fallbackID = uuid.NewString()
	})
	return c.fallbackID
}

// Fill 查询逐字歌词并填充槽位
func (c *Client) Fill(ctx context.Context, track lyric.Track, out *source.Outputs) {
	if c.baseURL == "" {
		out.MissAll()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	res, err := c.GetLyrics(ctx, track)
	if err != nil {
		c.logger.Warn().Err(err).Str("track", track.String()).Msg("Unison lookup failed")
		out.MissAll()
		return
	}
	out.Set(RichSyncedSource, res)
}

// GetLyrics 请求并解析 TTML 歌词
func (c *Client) GetLyrics(ctx context.Context, track lyric.Track) (*lyric.SourceResult, error) {
	params := url.Values{}
	params.Set("song", track.Song)
	params.Set("artist", track.Artist)
	params.Set("duration", strconv.FormatFloat(track.Duration, 'f', -1, 64))
	if track.Album != "" {
		params.Set("album", track.Album)
	}

	header := http.Header{}
	header.Set(deviceIDHeader, c.DeviceID())

	var resp response
	if err := c.http.GetJSON(ctx, c.baseURL+"?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Lyrics == "" {
		return nil, fmt.Errorf("empty lyrics for '%s'", track)
	}

	lines, lang, err := ttml.Parse(resp.Data.Lyrics)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ttml: %w", err)
	}
	lrc.Fix(lines, c.fixers)

	c.logger.Info().
		Str("track", track.String()).
		Int("lines", len(lines)).
		Str("language", lang).
		Msg("Got rich-synced lyrics")

	return &lyric.SourceResult{
		Lyrics:       lines,
		Language:     lang,
		Source:       sourceName,
		CacheAllowed: true,
		Duration:     track.Duration,
		Song:         track.Song,
		Artist:       track.Artist,
		Album:        track.Album,
	}, nil
}
