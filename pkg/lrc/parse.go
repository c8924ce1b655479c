package lrc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"lyrics-engine/pkg/lyric"
)

var (
	leadingTagRe = regexp.MustCompile(`^\s*\[([^\]]*)\]`)
	wordTagRe    = regexp.MustCompile(`<(\d+:\d+(?:\.\d+)?)>`)
)

// metadataKeys 标准 LRC 头部标签
var metadataKeys = map[string]bool{
	"ti": true, "ar": true, "al": true, "au": true, "by": true,
	"length": true, "offset": true, "re": true, "tool": true,
	"ve": true, "version": true, "#": true,
}

// fragment is an enhanced-LRC word before empty fragments are dropped;
// empty ones still bound the duration of the fragment before them.
type fragment struct {
	start int64
	words string
}

type rawLine struct {
	start     int64
	words     string
	fragments []fragment
}

// ParseLRC parses LRC or enhanced-LRC text. Lines without a leading time tag
// are dropped. The last line runs until songLengthMs.
func ParseLRC(text string, songLengthMs int64) []lyric.Line {
	var (
		raws   []rawLine
		offset int64
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")

		var times []int64
		for {
			m := leadingTagRe.FindStringSubmatchIndex(line)
			if m == nil {
				break
			}
			tag := line[m[2]:m[3]]
			key, value, ok := strings.Cut(tag, ":")
			if !ok {
				// 普通方括号文本，如 [Chorus]，属于歌词
				break
			}
			if t, err := ParseTime(tag); err == nil {
				times = append(times, t-offset)
				line = line[m[1]:]
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			if !metadataKeys[key] {
				break
			}
			line = line[m[1]:]
			if key == "offset" {
				if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
					offset = n
				}
			}
		}
		if len(times) == 0 {
			continue
		}

		words, frags := parseWords(line, times[0], offset)
		for _, t := range times {
			t = max(t, 0)
			raw := rawLine{start: t, words: words}
			if frags != nil {
				shift := t - max(times[0], 0)
				raw.fragments = make([]fragment, len(frags))
				for i, f := range frags {
					raw.fragments[i] = fragment{start: max(f.start+shift, 0), words: f.words}
				}
			}
			raws = append(raws, raw)
		}
	}

	sort.SliceStable(raws, func(i, j int) bool { return raws[i].start < raws[j].start })

	lines := make([]lyric.Line, len(raws))
	for i, raw := range raws {
		end := songLengthMs
		partEnd := songLengthMs
		if i+1 < len(raws) {
			next := raws[i+1]
			end = next.start
			partEnd = next.start
			if len(next.fragments) > 0 {
				partEnd = next.fragments[0].start
			}
		}

		lines[i] = lyric.Line{
			StartTimeMs: raw.start,
			Words:       raw.words,
			DurationMs:  max(end-raw.start, 0),
			Parts:       buildParts(raw.fragments, partEnd),
		}
	}
	return lines
}

// parseWords splits the text after the line tags into word fragments. A
// non-blank prefix before the first word tag starts at the line time.
func parseWords(text string, lineStart, offset int64) (string, []fragment) {
	locs := wordTagRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(text), nil
	}

	var frags []fragment
	if prefix := strings.TrimSpace(text[:locs[0][0]]); prefix != "" {
		frags = append(frags, fragment{start: lineStart, words: prefix})
	}
	for i, loc := range locs {
		t, err := ParseTime(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		frags = append(frags, fragment{start: t - offset, words: strings.TrimSpace(text[loc[1]:end])})
	}

	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.words)
	}
	return strings.TrimSpace(b.String()), frags
}

func buildParts(frags []fragment, end int64) []lyric.Part {
	var parts []lyric.Part
	for i, f := range frags {
		if f.words == "" {
			continue
		}
		next := end
		if i+1 < len(frags) {
			next = frags[i+1].start
		}
		parts = append(parts, lyric.Part{
			StartTimeMs: f.start,
			Words:       f.words,
			DurationMs:  max(next-f.start, 0),
		})
	}
	return parts
}

// ParsePlainLyrics 按换行拆分纯文本歌词，每行原样保留
func ParsePlainLyrics(text string) []lyric.Line {
	rows := strings.Split(text, "\n")
	lines := make([]lyric.Line, len(rows))
	for i, row := range rows {
		lines[i] = lyric.Line{Words: strings.TrimSuffix(row, "\r")}
	}
	return lines
}
