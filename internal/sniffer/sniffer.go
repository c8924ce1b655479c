// Package sniffer consumes the host page's intercepted API traffic and
// answers lyrics, album and counterpart-video questions about the videos
// it has seen.
package sniffer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/lyric"
)

const (
	nextPath   = "/youtubei/v1/next"
	browsePath = "/youtubei/v1/browse"

	DefaultRetryInterval   = 20 * time.Millisecond
	DefaultLyricsRetries   = 250
	DefaultMatchingRetries = 250
	DefaultAlbumRetries    = 250
)

// Config 重试参数，零值使用默认值
type Config struct {
	RetryInterval   time.Duration
	LyricsRetries   int
	MatchingRetries int
	AlbumRetries    int
}

// Sniffer holds everything learned from page events. Lookups wait for the
// data to arrive, bounded by retries × RetryInterval.
type Sniffer struct {
	cfg    Config
	logger zerolog.Logger

	mu            sync.RWMutex
	changed       chan struct{}
	lyrics        map[string]LyricsInfo // videoId
	pendingBrowse map[string]LyricsInfo // browseId, seen before its next event
	videoToBrowse map[string]string
	browseToVideo map[string]string
	matching      map[string]*lyric.MatchingSong
	albums        map[string]string
}

// New 创建 Sniffer
func New(cfg Config) *Sniffer {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.LyricsRetries <= 0 {
		cfg.LyricsRetries = DefaultLyricsRetries
	}
	if cfg.MatchingRetries <= 0 {
		cfg.MatchingRetries = DefaultMatchingRetries
	}
	if cfg.AlbumRetries <= 0 {
		cfg.AlbumRetries = DefaultAlbumRetries
	}
	s := &Sniffer{
		cfg:    cfg,
		logger: log.With().Str("component", "sniffer").Logger(),
	}
	s.reset()
	return s
}

func (s *Sniffer) reset() {
	s.changed = make(chan struct{})
	s.lyrics = make(map[string]LyricsInfo)
	s.pendingBrowse = make(map[string]LyricsInfo)
	s.videoToBrowse = make(map[string]string)
	s.browseToVideo = make(map[string]string)
	s.matching = make(map[string]*lyric.MatchingSong)
	s.albums = make(map[string]string)
}

// Clear 丢弃所有已知数据
func (s *Sniffer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.changed)
	s.reset()
}

// HandleEvent ingests one intercepted response. Events for other endpoints
// are ignored.
func (s *Sniffer) HandleEvent(ev Event) error {
	var err error
	switch {
	case strings.Contains(ev.URL, nextPath):
		err = s.handleNext(ev)
	case strings.Contains(ev.URL, browsePath):
		err = s.handleBrowse(ev)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to handle %s event: %w", ev.URL, err)
	}
	return nil
}

func (s *Sniffer) handleNext(ev Event) error {
	var req nextRequest
	if len(ev.RequestJSON) > 0 {
		if err := json.Unmarshal(ev.RequestJSON, &req); err != nil {
			return err
		}
	}
	var resp nextResponse
	if err := json.Unmarshal(ev.ResponseJSON, &resp); err != nil {
		return err
	}
	tabs := resp.Contents.SingleColumnMusicWatchNextResultsRenderer.TabbedRenderer.WatchNextTabbedResultsRenderer.Tabs

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()

	videoID := req.VideoID
	if videoID != "" && len(tabs) > 1 && tabs[1].TabRenderer != nil {
		lyricsTab := tabs[1].TabRenderer
		browseID := lyricsTab.Endpoint.BrowseEndpoint.BrowseID
		switch {
		case lyricsTab.Unselectable:
			s.lyrics[videoID] = LyricsInfo{}
			s.logger.Debug().Str("video_id", videoID).Msg("Video has no lyrics tab")
		case browseID != "":
			s.videoToBrowse[videoID] = browseID
			s.browseToVideo[browseID] = videoID
			if info, ok := s.pendingBrowse[browseID]; ok {
				s.lyrics[videoID] = info
				delete(s.pendingBrowse, browseID)
			}
		}
	}

	if album := resp.PlayerOverlays.PlayerOverlayRenderer.BrowserMediaSession.BrowserMediaSessionRenderer.Album.String(); videoID != "" && album != "" {
		s.albums[videoID] = album
	}

	if len(tabs) > 0 && tabs[0].TabRenderer != nil {
		for _, item := range tabs[0].TabRenderer.Content.MusicQueueRenderer.Content.PlaylistPanelRenderer.Contents {
			s.recordQueueItem(item)
		}
	}
	return nil
}

// recordQueueItem stores counterpart data in both directions. Entries
// learned directly are never replaced by synthesized reverse entries.
func (s *Sniffer) recordQueueItem(item panelItem) {
	if item.PlaylistPanelVideoRenderer != nil {
		if id := item.PlaylistPanelVideoRenderer.VideoID; id != "" {
			if _, ok := s.matching[id]; !ok {
				s.matching[id] = &lyric.MatchingSong{}
			}
		}
		return
	}

	w := item.PlaylistPanelVideoWrapperRenderer
	if w == nil {
		return
	}
	primary := w.PrimaryRenderer.PlaylistPanelVideoRenderer.VideoID
	if primary == "" {
		return
	}
	if len(w.Counterpart) == 0 {
		if _, ok := s.matching[primary]; !ok {
			s.matching[primary] = &lyric.MatchingSong{}
		}
		return
	}

	cp := w.Counterpart[0]
	counterpart := cp.CounterpartRenderer.PlaylistPanelVideoRenderer.VideoID
	segMap := cp.SegmentMap.toSegmentMap()
	s.matching[primary] = &lyric.MatchingSong{CounterpartVideoID: counterpart, SegmentMap: segMap}

	if counterpart == "" {
		return
	}
	if existing, ok := s.matching[counterpart]; ok && existing.CounterpartVideoID != "" &&
		(existing.SegmentMap == nil || !existing.SegmentMap.Reversed) {
		return
	}
	s.matching[counterpart] = &lyric.MatchingSong{CounterpartVideoID: primary, SegmentMap: segMap.Reverse()}
}

func (s *Sniffer) handleBrowse(ev Event) error {
	var req browseRequest
	if err := json.Unmarshal(ev.RequestJSON, &req); err != nil {
		return err
	}
	if req.BrowseID == "" {
		return nil
	}
	var resp browseResponse
	if err := json.Unmarshal(ev.ResponseJSON, &resp); err != nil {
		return err
	}

	var info LyricsInfo
	for _, c := range resp.Contents.SectionListRenderer.Contents {
		if shelf := c.MusicDescriptionShelfRenderer; shelf != nil {
			info = LyricsInfo{
				HasLyrics:  true,
				Lyrics:     shelf.Description.String(),
				SourceText: shelf.Footer.String(),
			}
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()

	if videoID, ok := s.browseToVideo[req.BrowseID]; ok {
		s.lyrics[videoID] = info
		return nil
	}
	// 没有歌词的结果也要记下，next 到达时直接给出否定答案
	s.pendingBrowse[req.BrowseID] = info
	return nil
}

// notify wakes every waiter; callers hold mu.
func (s *Sniffer) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// wait blocks until check reports true, the retry budget is spent, or ctx
// ends. check runs with mu read-locked.
func (s *Sniffer) wait(ctx context.Context, retries int, check func() bool) bool {
	deadline := time.NewTimer(time.Duration(retries) * s.cfg.RetryInterval)
	defer deadline.Stop()

	for {
		s.mu.RLock()
		ok := check()
		changed := s.changed
		s.mu.RUnlock()
		if ok {
			return true
		}

		select {
		case <-changed:
		case <-deadline.C:
			s.mu.RLock()
			defer s.mu.RUnlock()
			return check()
		case <-ctx.Done():
			return false
		}
	}
}

// GetLyrics returns the page lyrics of videoID, or a result with
// HasLyrics=false once retries run out. retries <= 0 uses the default.
func (s *Sniffer) GetLyrics(ctx context.Context, videoID string, retries int) LyricsInfo {
	if retries <= 0 {
		retries = s.cfg.LyricsRetries
	}
	var info LyricsInfo
	s.wait(ctx, retries, func() bool {
		v, ok := s.lyrics[videoID]
		info = v
		return ok
	})
	return info
}

// GetMatchingSong returns the counterpart data of videoID, or nil once
// retries run out. A video known to have no counterpart yields an empty,
// non-nil value.
func (s *Sniffer) GetMatchingSong(ctx context.Context, videoID string, retries int) *lyric.MatchingSong {
	if retries <= 0 {
		retries = s.cfg.MatchingRetries
	}
	var match *lyric.MatchingSong
	s.wait(ctx, retries, func() bool {
		match = s.matching[videoID]
		return match != nil
	})
	if match == nil {
		return nil
	}
	out := *match
	return &out
}

// GetSongAlbum returns the album name of videoID, or "" once retries run
// out.
func (s *Sniffer) GetSongAlbum(ctx context.Context, videoID string, retries int) string {
	if retries <= 0 {
		retries = s.cfg.AlbumRetries
	}
	var album string
	s.wait(ctx, retries, func() bool {
		album = s.albums[videoID]
		return album != ""
	})
	return album
}
