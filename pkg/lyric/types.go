// Package lyric holds the canonical timed-lyrics model shared by every
// parser, filler and the race coordinator.
package lyric

import (
	"fmt"
	"math"
	"strings"
)

// NoLyricsMarker is the text of the single line returned when no source
// produced usable lyrics. Renderers compare against it.
const NoLyricsMarker = "___NO_LYRICS___"

// Track 一次歌词查询的请求标识
type Track struct {
	Song     string  `json:"song"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album,omitempty"`
	Duration float64 `json:"duration"` // 秒
	VideoID  string  `json:"videoId,omitempty"`

	// MusicVideo marks the playing video as the music-video counterpart of
	// the audio track, so results need remapping onto its timeline.
	MusicVideo bool `json:"musicVideo,omitempty"`
}

// DurationMs 返回毫秒时长
func (t Track) DurationMs() int64 {
	return int64(math.Round(t.Duration * 1000))
}

// Key 用于结果缓存的键
func (t Track) Key() string {
	return strings.ToLower(fmt.Sprintf("%s|%s|%s|%d", t.Song, t.Artist, t.Album, int64(math.Round(t.Duration))))
}

func (t Track) String() string {
	if t.Artist == "" {
		return t.Song
	}
	return t.Artist + " - " + t.Song
}

// Part is a word or syllable level fragment of a line.
type Part struct {
	StartTimeMs  int64  `json:"startTimeMs"`
	Words        string `json:"words"`
	DurationMs   int64  `json:"durationMs"`
	IsBackground bool   `json:"isBackground,omitempty"`
}

// Line 一行歌词
type Line struct {
	StartTimeMs       int64  `json:"startTimeMs"`
	Words             string `json:"words"`
	DurationMs        int64  `json:"durationMs"`
	Parts             []Part `json:"parts,omitempty"`
	Translation       string `json:"translation,omitempty"`
	Romanization      string `json:"romanization,omitempty"`
	TimedRomanization []Part `json:"timedRomanization,omitempty"`
}

// EndTimeMs 返回行结束时间
func (l Line) EndTimeMs() int64 {
	return l.StartTimeMs + l.DurationMs
}

// SourceResult is what a filler writes into its slot.
type SourceResult struct {
	Lyrics           []Line  `json:"lyrics"`
	Language         string  `json:"language,omitempty"`
	Source           string  `json:"source"`
	SourceHref       string  `json:"sourceHref"`
	CacheAllowed     bool    `json:"cacheAllowed"`
	MusicVideoSynced bool    `json:"musicVideoSynced"`
	Duration         float64 `json:"duration,omitempty"`
	Song             string  `json:"song,omitempty"`
	Artist           string  `json:"artist,omitempty"`
	Album            string  `json:"album,omitempty"`
	// RTL 歌词以从右到左的文字书写，客户端据此设置排版方向
	RTL bool `json:"rtl,omitempty"`
}

// Timing classifies how finely a result is timed.
type Timing int

const (
	TimingNone Timing = iota // plain text
	TimingLine
	TimingWord
)

func (t Timing) String() string {
	switch t {
	case TimingWord:
		return "word"
	case TimingLine:
		return "line"
	default:
		return "none"
	}
}

// Timing reports the richest timing present in the result.
func (r *SourceResult) Timing() Timing {
	if r == nil {
		return TimingNone
	}
	timing := TimingNone
	for _, l := range r.Lyrics {
		if len(l.Parts) > 0 {
			return TimingWord
		}
		if l.StartTimeMs != 0 || l.DurationMs != 0 {
			timing = TimingLine
		}
	}
	return timing
}

// Usable 结果非空且至少有一行歌词
func (r *SourceResult) Usable() bool {
	return r != nil && len(r.Lyrics) > 0 && !r.IsNoLyrics()
}

// HasRTL reports whether any line is written in a right-to-left script.
func (r *SourceResult) HasRTL() bool {
	if r == nil {
		return false
	}
	for _, l := range r.Lyrics {
		if IsRTL(l.Words) {
			return true
		}
	}
	return false
}

// IsNoLyrics reports whether r is the sentinel built by NoLyrics.
func (r *SourceResult) IsNoLyrics() bool {
	return r != nil && len(r.Lyrics) == 1 && r.Lyrics[0].Words == NoLyricsMarker
}

// Clone returns a deep copy so callers can annotate without touching
// cached or shared results.
func (r *SourceResult) Clone() *SourceResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Lyrics = make([]Line, len(r.Lyrics))
	for i, l := range r.Lyrics {
		out.Lyrics[i] = l
		if l.Parts != nil {
			out.Lyrics[i].Parts = append([]Part(nil), l.Parts...)
		}
		if l.TimedRomanization != nil {
			out.Lyrics[i].TimedRomanization = append([]Part(nil), l.TimedRomanization...)
		}
	}
	return &out
}

// NoLyrics 所有来源都失败时返回的占位结果
func NoLyrics() *SourceResult {
	return &SourceResult{
		Lyrics:       []Line{{Words: NoLyricsMarker}},
		CacheAllowed: false,
	}
}
