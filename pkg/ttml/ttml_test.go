package ttml

import (
	"errors"
	"testing"
)

const wordSynced = `<tt xmlns="http://www.w3.org/ns/ttml" xmlns:itunes="http://music.apple.com/lyric-ttml-internal" xmlns:ttm="http://www.w3.org/ns/ttml#metadata" xml:lang="ja">
<head><metadata><iTunesMetadata xmlns="http://music.apple.com/lyric-ttml-internal">
<translations><translation type="replacement" xml:lang="en"><text for="L1">Hello world</text></translation></translations>
<transliterations><transliteration xml:lang="ja-Latn"><text for="L1"><span begin="1.000" end="1.400">konnichiwa</span> <span begin="1.500" end="2.000">sekai</span></text></transliteration></transliterations>
</iTunesMetadata></metadata></head>
<body dur="10.000"><div begin="1.000" end="4.000">
<p begin="1.000" end="2.500" itunes:key="L1" ttm:agent="v1"><span begin="1.000" end="1.400">こんにちは</span> <span begin="1.500" end="2.000">世界</span><span ttm:role="x-bg"><span begin="2.000" end="2.500">(ああ)</span></span></p>
<p begin="00:03.000" end="00:04.000" itunes:key="L2"><span begin="3s" end="4s">次</span></p>
</div></body></tt>`

func TestParseWordSynced(t *testing.T) {
	lines, lang, err := Parse(wordSynced)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if lang != "ja" {
		t.Errorf("expected language ja, got %q", lang)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	first := lines[0]
	if first.StartTimeMs != 1000 || first.DurationMs != 1500 {
		t.Errorf("unexpected line timing: %d +%d", first.StartTimeMs, first.DurationMs)
	}
	if len(first.Parts) != 4 {
		t.Fatalf("expected 4 parts (word, space, word, background), got %+v", first.Parts)
	}
	space := first.Parts[1]
	if space.Words != " " || space.StartTimeMs != 1400 || space.DurationMs != 100 {
		t.Errorf("unexpected space part: %+v", space)
	}
	if !first.Parts[3].IsBackground || first.Parts[0].IsBackground {
		t.Errorf("background flag misplaced: %+v", first.Parts)
	}
	if first.Words != "こんにちは 世界(ああ)" {
		t.Errorf("unexpected words %q", first.Words)
	}
	if first.Translation != "Hello world" {
		t.Errorf("expected translation, got %q", first.Translation)
	}
	if first.Romanization != "konnichiwa sekai" {
		t.Errorf("expected romanization, got %q", first.Romanization)
	}
	if len(first.TimedRomanization) != 3 {
		t.Errorf("expected timed romanization parts, got %+v", first.TimedRomanization)
	}

	second := lines[1]
	if second.StartTimeMs != 3000 || second.Parts[0].StartTimeMs != 3000 || second.Parts[0].DurationMs != 1000 {
		t.Errorf("unexpected second line: %+v", second)
	}
	if second.Translation != "" {
		t.Errorf("second line has no translation, got %q", second.Translation)
	}
}

func TestParseLineSynced(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" xml:lang="en"><body><div>
<p begin="0.5" end="2.0">Just a   line</p>
<p begin="2.0" end="3.0">Another<br/>one</p>
</div></body></tt>`
	lines, _, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Words != "Just a line" || lines[0].Parts != nil {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if lines[0].StartTimeMs != 500 || lines[0].DurationMs != 1500 {
		t.Errorf("unexpected timing: %+v", lines[0])
	}
	if lines[1].Words != "Another one" {
		t.Errorf("expected 'Another one', got %q", lines[1].Words)
	}
}

func TestParseErrors(t *testing.T) {
	if _, _, err := Parse(`<tt><body></body></tt>`); !errors.Is(err, ErrNoLines) {
		t.Errorf("expected ErrNoLines, got %v", err)
	}
	if _, _, err := Parse(`<tt><body><p begin="x">a</p></body></tt>`); !errors.Is(err, ErrNoLines) {
		t.Errorf("a document whose only line is bad has no lines, got %v", err)
	}
	if _, _, err := Parse(`<tt><body><p>unclosed`); err == nil {
		t.Error("expected error for truncated document")
	}
}

func TestParseSkipsLinesWithBadTimes(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml"><body><div>
<p begin="1.0" end="2.0">first</p>
<p begin="oops" end="3.0">broken</p>
<p begin="3.0" end="4.0"><span begin="3.0" end="3.5">good</span> <span begin="nope" end="4.0">bad</span></p>
<p begin="4.0" end="5.0">last</p>
</div></body></tt>`
	lines, _, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(lines) != 2 || lines[0].Words != "first" || lines[1].Words != "last" {
		t.Fatalf("expected only the two good lines, got %+v", lines)
	}
	if lines[1].StartTimeMs != 4000 {
		t.Errorf("unexpected timing after skipped lines: %+v", lines[1])
	}
}

func TestParseTimeExpressions(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1500ms", 1500},
		{"2.5ms", 3},
		{"62.5s", 62500},
		{"1.5m", 90000},
		{"0.5h", 1800000},
		{"1:02.5", 62500},
		{"00:01:02.500", 62500},
		{"3", 3000},
	}
	for _, tt := range tests {
		got, err := parseTimeExpr(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseTimeExpr(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
	for _, bad := range []string{"oops", "ms", "-5ms", "1.2.3s"} {
		if _, err := parseTimeExpr(bad); err == nil {
			t.Errorf("parseTimeExpr(%q) should fail", bad)
		}
	}

	doc := `<tt><body><p begin="1500ms" end="2500ms">metric</p></body></tt>`
	lines, _, err := Parse(doc)
	if err != nil || len(lines) != 1 || lines[0].StartTimeMs != 1500 || lines[0].DurationMs != 1000 {
		t.Errorf("unexpected metric-time line: %+v, %v", lines, err)
	}
}
