package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lyrics-engine/internal/config"
	"lyrics-engine/internal/ipc"
	"lyrics-engine/internal/lyrics"
	"lyrics-engine/internal/statusbar"
	"lyrics-engine/pkg/lyric"
)

type recorder struct {
	mu   sync.Mutex
	msgs []ipc.Message
}

func (r *recorder) Broadcast(msg ipc.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) snapshot() []ipc.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ipc.Message(nil), r.msgs...)
}

func testLines() []lyric.Line {
	return []lyric.Line{
		{StartTimeMs: 1000, DurationMs: 2000, Words: "first"},
		{StartTimeMs: 3000, DurationMs: 2000, Words: "second"},
		{StartTimeMs: 5000, DurationMs: 1000, Words: "third"},
	}
}

func TestGetLyricIndexAtTime(t *testing.T) {
	lines := testLines()
	tests := []struct {
		tMs  int64
		want int
	}{
		{0, -1},
		{999, -1},
		{1000, 0},
		{2999, 0},
		{3000, 1},
		{5000, 2},
		{60000, 2},
	}
	for _, tt := range tests {
		if got := getLyricIndexAtTime(lines, tt.tMs); got != tt.want {
			t.Errorf("getLyricIndexAtTime(%d) = %d, want %d", tt.tMs, got, tt.want)
		}
	}
	if got := getLyricIndexAtTime(nil, 1000); got != -1 {
		t.Errorf("empty lines should give -1, got %d", got)
	}
}

func TestRunSchedulerBroadcastsChangesAndEnds(t *testing.T) {
	rec := &recorder{}
	a := &App{out: rec, logger: zerolog.Nop()}

	// 每次取时间前进一秒
	var mu sync.Mutex
	now := 0.0
	clock := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		cur := now
		now += 1
		return cur
	}

	done := make(chan struct{})
	go func() {
		a.runScheduler(context.Background(), testLines(), clock, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after the song ended")
	}

	var lineIdx []int
	var lastStatus string
	for _, m := range rec.snapshot() {
		switch m.Type {
		case ipc.TypeLine:
			lineIdx = append(lineIdx, *m.Index)
		case ipc.TypeStatus:
			lastStatus = m.Text
		}
	}
	want := []int{-1, 0, 1, 2}
	if len(lineIdx) != len(want) {
		t.Fatalf("expected line indexes %v, got %v", want, lineIdx)
	}
	for i := range want {
		if lineIdx[i] != want[i] {
			t.Fatalf("expected line indexes %v, got %v", want, lineIdx)
		}
	}
	if lastStatus == "" {
		t.Error("expected an end-of-song status")
	}
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	a := &App{out: rec, logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.runScheduler(ctx, testLines(), func() float64 { return 2 }, time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler ignored cancellation")
	}

	msgs := rec.snapshot()
	if len(msgs) != 1 || msgs[0].Type != ipc.TypeLine || *msgs[0].Index != 0 {
		t.Errorf("expected a single broadcast of line 0, got %+v", msgs)
	}
}

func TestBarBroadcasterForwards(t *testing.T) {
	rec := &recorder{}
	b := barBroadcaster{
		broadcaster: rec,
		bar:         statusbar.NewNotifier("no-such-bar", 0),
		logger:      zerolog.Nop(),
	}
	b.Broadcast(ipc.StatusMessage("hello"))
	b.Broadcast(ipc.ResultMessage(&lyric.SourceResult{Source: "x"}))

	msgs := rec.snapshot()
	if len(msgs) != 2 || msgs[0].Text != "hello" || msgs[1].Type != ipc.TypeResult {
		t.Errorf("messages not forwarded: %+v", msgs)
	}
}

// gatedCache blocks reads of one key until release is closed.
type gatedCache struct {
	gateKey string
	entered chan struct{}
	release chan struct{}
}

func (c *gatedCache) Get(ctx context.Context, key string) (*lyric.SourceResult, bool) {
	if key != c.gateKey {
		return nil, false
	}
	close(c.entered)
	<-c.release
	return &lyric.SourceResult{
		Lyrics:       testLines(),
		Source:       "OLD",
		CacheAllowed: true,
	}, true
}

func (c *gatedCache) Set(context.Context, string, *lyric.SourceResult) error { return nil }

func (c *gatedCache) Clear(context.Context) error { return nil }

type noLyricsManager struct{}

func (noLyricsManager) Lookup(context.Context, lyric.Track) (*lyric.SourceResult, error) {
	return lyric.NoLyrics(), nil
}

func TestSwitchTrackDropsReplacedLookup(t *testing.T) {
	oldTrack := lyric.Track{Song: "Old", Artist: "A", Duration: 100}
	newTrack := lyric.Track{Song: "New", Artist: "B", Duration: 100}
	cache := &gatedCache{
		gateKey: oldTrack.Key(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	rec := &recorder{}
	cfg := config.Default()
	a := &App{
		cfg:            cfg,
		out:            rec,
		logger:         zerolog.Nop(),
		lyricsProvider: lyrics.NewProvider(noLyricsManager{}, cache, nil, nil, nil, lyrics.Options{}),
	}
	defer a.stopScheduler()

	done := make(chan struct{})
	go func() {
		a.switchTrack(oldTrack, func() float64 { return 2 })
		close(done)
	}()
	select {
	case <-cache.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("old lookup never reached the cache")
	}

	a.switchTrack(newTrack, nil)
	close(cache.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("old lookup did not return")
	}
	// 给可能的调度器留出一个周期
	time.Sleep(3 * schedulerTick)

	var last *lyric.SourceResult
	for _, m := range rec.snapshot() {
		switch m.Type {
		case ipc.TypeResult:
			if m.Result.Source == "OLD" {
				t.Fatal("replaced lookup broadcast its result")
			}
			last = m.Result
		case ipc.TypeLine:
			t.Fatalf("replaced lookup started a scheduler: %+v", m)
		}
	}
	if last == nil || !last.IsNoLyrics() {
		t.Errorf("expected the new track's no-lyrics result last, got %+v", last)
	}
}
