package lyrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/source"
	"lyrics-engine/pkg/translation"
)

type fakeManager struct {
	mu     sync.Mutex
	calls  int
	tracks []lyric.Track
	res    *lyric.SourceResult
	err    error
}

func (f *fakeManager) Lookup(ctx context.Context, track lyric.Track) (*lyric.SourceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tracks = append(f.tracks, track)
	if f.err != nil {
		return nil, f.err
	}
	return f.res.Clone(), nil
}

type fakePage struct {
	album string
	match *lyric.MatchingSong
}

func (f *fakePage) GetSongAlbum(context.Context, string, int) string { return f.album }

func (f *fakePage) GetMatchingSong(context.Context, string, int) *lyric.MatchingSong { return f.match }

type fakeTranslator struct {
	mu      sync.Mutex
	cleared bool
}

func (f *fakeTranslator) Translate(_ context.Context, text, target string) *translation.Result {
	if text == "fail" {
		return nil
	}
	return &translation.Result{TranslatedText: "T:" + text, OriginalLanguage: "ja"}
}

func (f *fakeTranslator) Romanize(_ context.Context, lang, text string) string {
	return "roma:" + lang
}

func (f *fakeTranslator) ClearCache() {
	f.mu.Lock()
	f.cleared = true
	f.mu.Unlock()
}

func syncedResult() *lyric.SourceResult {
	return &lyric.SourceResult{
		Lyrics: []lyric.Line{
			{StartTimeMs: 0, Words: "こんにちは", DurationMs: 60000},
			{StartTimeMs: 60000, Words: "hello", DurationMs: 1000},
			{StartTimeMs: 61000, Words: "fail", DurationMs: 1000},
		},
		Source:       "Test",
		CacheAllowed: true,
	}
}

func TestGetLyricsCachesAllowedResults(t *testing.T) {
	ctx := context.Background()
	m := &fakeManager{res: syncedResult()}
	p := NewProvider(m, newFileCache(t.TempDir()), nil, nil, nil, Options{})
	track := lyric.Track{Song: "Song", Artist: "Artist", Duration: 200}

	first, err := p.GetLyrics(ctx, track)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	second, err := p.GetLyrics(ctx, track)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if m.calls != 1 {
		t.Errorf("second lookup should be served from cache, got %d races", m.calls)
	}
	if len(second.Lyrics) != len(first.Lyrics) || second.Source != "Test" {
		t.Errorf("cached result differs: %+v", second)
	}
}

func TestGetLyricsSkipsCacheWhenNotAllowed(t *testing.T) {
	ctx := context.Background()
	res := syncedResult()
	res.CacheAllowed = false
	m := &fakeManager{res: res}
	p := NewProvider(m, newFileCache(t.TempDir()), nil, nil, nil, Options{})
	track := lyric.Track{Song: "Song", Artist: "Artist"}

	p.GetLyrics(ctx, track)
	p.GetLyrics(ctx, track)
	if m.calls != 2 {
		t.Errorf("uncacheable result must not be cached, got %d races", m.calls)
	}

	m.res = lyric.NoLyrics()
	m.res.CacheAllowed = true
	p.GetLyrics(ctx, lyric.Track{Song: "Other"})
	p.GetLyrics(ctx, lyric.Track{Song: "Other"})
	if m.calls != 4 {
		t.Errorf("no-lyrics sentinel must not be cached, got %d races", m.calls)
	}
}

func TestGetLyricsPropagatesSuperseded(t *testing.T) {
	m := &fakeManager{err: source.ErrSuperseded}
	p := NewProvider(m, nil, nil, nil, nil, Options{})
	if _, err := p.GetLyrics(context.Background(), lyric.Track{Song: "x"}); !errors.Is(err, source.ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}
}

func TestGetLyricsCancelledAfterCacheHit(t *testing.T) {
	m := &fakeManager{res: syncedResult()}
	p := NewProvider(m, newFileCache(t.TempDir()), nil, nil, nil, Options{})
	track := lyric.Track{Song: "Song", Artist: "Artist", Duration: 200}
	if _, err := p.GetLyrics(context.Background(), track); err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.GetLyrics(ctx, track)
	if !errors.Is(err, context.Canceled) || res != nil {
		t.Errorf("cancelled lookup should return no result, got %+v, %v", res, err)
	}
}

func TestGetLyricsMarksRightToLeft(t *testing.T) {
	res := syncedResult()
	res.Lyrics[1].Words = "مرحبا"
	p := NewProvider(&fakeManager{res: res}, nil, nil, nil, nil, Options{})

	got, err := p.GetLyrics(context.Background(), lyric.Track{Song: "x"})
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if !got.RTL {
		t.Error("expected the result to be flagged right-to-left")
	}

	p = NewProvider(&fakeManager{res: syncedResult()}, nil, nil, nil, nil, Options{})
	if got, _ := p.GetLyrics(context.Background(), lyric.Track{Song: "y"}); got.RTL {
		t.Error("left-to-right lyrics flagged right-to-left")
	}
}

func TestGetLyricsBackfillsAlbum(t *testing.T) {
	m := &fakeManager{res: syncedResult()}
	p := NewProvider(m, nil, &fakePage{album: "Page Album"}, nil, nil, Options{})

	p.GetLyrics(context.Background(), lyric.Track{Song: "Song", Artist: "Artist", VideoID: "v"})
	p.GetLyrics(context.Background(), lyric.Track{Song: "Song", Artist: "Artist", Album: "Own", VideoID: "v"})
	if m.tracks[0].Album != "Page Album" || m.tracks[1].Album != "Own" {
		t.Errorf("unexpected albums %q %q", m.tracks[0].Album, m.tracks[1].Album)
	}
}

func TestGetLyricsAlignsMusicVideo(t *testing.T) {
	m := &fakeManager{res: syncedResult()}
	page := &fakePage{match: &lyric.MatchingSong{
		CounterpartVideoID: "audio",
		SegmentMap: &lyric.SegmentMap{Segment: []lyric.Segment{
			{PrimaryVideoStartTimeMilliseconds: 10000, CounterpartVideoStartTimeMilliseconds: 0, DurationMilliseconds: 60000},
			{PrimaryVideoStartTimeMilliseconds: 80000, CounterpartVideoStartTimeMilliseconds: 60000, DurationMilliseconds: 60000},
		}},
	}}
	p := NewProvider(m, nil, page, nil, nil, Options{})

	res, err := p.GetLyrics(context.Background(), lyric.Track{Song: "Song", Artist: "Artist", Album: "A", VideoID: "video", MusicVideo: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.MusicVideoSynced || res.Lyrics[0].StartTimeMs != 10000 || res.Lyrics[1].StartTimeMs != 80000 {
		t.Errorf("lyrics not aligned: %+v", res.Lyrics)
	}

	res, _ = p.GetLyrics(context.Background(), lyric.Track{Song: "Song", Artist: "Artist", Album: "A", VideoID: "video"})
	if res.MusicVideoSynced || res.Lyrics[0].StartTimeMs != 0 {
		t.Errorf("audio track should not be aligned: %+v", res.Lyrics)
	}
}

func TestGetLyricsAnnotates(t *testing.T) {
	m := &fakeManager{res: syncedResult()}
	tr := &fakeTranslator{}
	p := NewProvider(m, nil, nil, tr, nil, Options{TargetLanguage: "en", Romanize: true})

	res, err := p.GetLyrics(context.Background(), lyric.Track{Song: "Song", Artist: "Artist"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Lyrics[0].Translation != "T:こんにちは" {
		t.Errorf("expected a translation on line 0, got %q", res.Lyrics[0].Translation)
	}
	if res.Lyrics[0].Romanization != "roma:ja" {
		t.Errorf("expected romanization with detected language, got %q", res.Lyrics[0].Romanization)
	}
	if res.Lyrics[1].Translation != "T:hello" || res.Lyrics[1].Romanization != "" {
		t.Errorf("latin line should be translated but not romanized: %+v", res.Lyrics[1])
	}
	if res.Lyrics[2].Translation != "" {
		t.Errorf("failed translation should leave the line untouched: %+v", res.Lyrics[2])
	}

	if err := p.ClearCache(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !tr.cleared {
		t.Error("ClearCache should clear the translator")
	}
}

func TestGetLyricsNoLyricsIsNotAnnotated(t *testing.T) {
	m := &fakeManager{res: lyric.NoLyrics()}
	p := NewProvider(m, nil, nil, &fakeTranslator{}, nil, Options{Romanize: true})

	res, err := p.GetLyrics(context.Background(), lyric.Track{Song: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsNoLyrics() || res.Lyrics[0].Translation != "" {
		t.Errorf("sentinel must come back untouched: %+v", res)
	}
}
