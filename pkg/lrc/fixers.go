package lrc

import (
	"strings"

	"lyrics-engine/pkg/lyric"
)

// FixerConfig holds the thresholds of the word-timing repair pass.
type FixerConfig struct {
	// ShortSpaceMs: a space part shorter than this is merged into the word before it.
	ShortSpaceMs int64
	// SimilarDurationMs: a space whose duration is this close to the previous
	// word's is an encoder artifact and is merged too.
	SimilarDurationMs int64
	// MinWordMs 单词最短显示时长
	MinWordMs int64
	// ShortWordRatio: stretching kicks in when more than this share of a
	// line's words are shorter than MinWordMs.
	ShortWordRatio float64
}

// DefaultFixerConfig 默认阈值
func DefaultFixerConfig() FixerConfig {
	return FixerConfig{
		ShortSpaceMs:      100,
		SimilarDurationMs: 30,
		MinWordMs:         100,
		ShortWordRatio:    0.5,
	}
}

// Fix repairs degenerate word timings in place. Lines without parts are left
// alone and applying Fix twice gives the same result as applying it once.
func Fix(lines []lyric.Line, cfg FixerConfig) {
	for i := range lines {
		l := &lines[i]
		if len(l.Parts) == 0 {
			continue
		}
		mergeSpaces(l.Parts, cfg)
		stretchShortWords(l, cfg)
		// stretching can bring a word's duration close to the following space
		mergeSpaces(l.Parts, cfg)
	}
}

func isSpace(p lyric.Part) bool {
	return p.Words == " "
}

func isWord(p lyric.Part) bool {
	return strings.TrimSpace(p.Words) != ""
}

// mergeSpaces folds short or artifact spaces into the preceding word and
// leaves them behind as zero-width markers.
func mergeSpaces(parts []lyric.Part, cfg FixerConfig) {
	for i := 1; i < len(parts); i++ {
		space := &parts[i]
		if !isSpace(*space) || space.DurationMs <= 0 {
			continue
		}
		prev := &parts[i-1]
		if isSpace(*prev) {
			continue
		}

		diff := space.DurationMs - prev.DurationMs
		if diff < 0 {
			diff = -diff
		}
		if space.DurationMs >= cfg.ShortSpaceMs && diff > cfg.SimilarDurationMs {
			continue
		}

		end := space.StartTimeMs + space.DurationMs
		if end-prev.StartTimeMs > prev.DurationMs {
			prev.DurationMs = end - prev.StartTimeMs
		}
		space.DurationMs = 0
	}
}

func stretchShortWords(l *lyric.Line, cfg FixerConfig) {
	if cfg.MinWordMs <= 0 {
		return
	}

	words, short := 0, 0
	for _, p := range l.Parts {
		if !isWord(p) {
			continue
		}
		words++
		if p.DurationMs < cfg.MinWordMs {
			short++
		}
	}
	if words == 0 || float64(short)/float64(words) <= cfg.ShortWordRatio {
		return
	}

	for i := range l.Parts {
		p := &l.Parts[i]
		if !isWord(*p) || p.DurationMs >= cfg.MinWordMs {
			continue
		}

		target := p.StartTimeMs + cfg.MinWordMs
		if limit, ok := nextBoundary(l, i); ok && limit < target {
			target = limit
		}
		if target-p.StartTimeMs > p.DurationMs {
			p.DurationMs = target - p.StartTimeMs
		}
	}
}

// nextBoundary returns the start of the next part that still occupies time,
// or the line end for the last one.
func nextBoundary(l *lyric.Line, i int) (int64, bool) {
	for _, p := range l.Parts[i+1:] {
		if isSpace(p) && p.DurationMs == 0 {
			continue
		}
		return p.StartTimeMs, true
	}
	if l.DurationMs > 0 {
		return l.EndTimeMs(), true
	}
	return 0, false
}
