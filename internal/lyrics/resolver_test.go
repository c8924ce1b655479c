package lyrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lyrics-engine/pkg/lyric"
)

type fakeAI struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) HandleText(ctx context.Context, msg string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		ai    *fakeAI
		track lyric.Track
		want  lyric.Track
	}{
		{
			name:  "splits title",
			ai:    &fakeAI{replies: []string{`{"is_song": true, "title": "晴天", "artist": "周杰伦"}`}},
			track: lyric.Track{Song: "周杰倫 - 晴天 (Official MV)", Duration: 269},
			want:  lyric.Track{Song: "晴天", Artist: "周杰伦", Duration: 269},
		},
		{
			name:  "code fence",
			ai:    &fakeAI{replies: []string{"```json\n{\"is_song\": true, \"title\": \"Song\", \"artist\": \"Band\"}\n```"}},
			track: lyric.Track{Song: "Band - Song"},
			want:  lyric.Track{Song: "Song", Artist: "Band"},
		},
		{
			name:  "not a song",
			ai:    &fakeAI{replies: []string{`{"is_song": false}`}},
			track: lyric.Track{Song: "Podcast episode 12"},
			want:  lyric.Track{Song: "Podcast episode 12"},
		},
		{
			name:  "artist already known",
			ai:    &fakeAI{replies: []string{`{"is_song": true, "title": "x", "artist": "y"}`}},
			track: lyric.Track{Song: "Song", Artist: "Artist"},
			want:  lyric.Track{Song: "Song", Artist: "Artist"},
		},
		{
			name:  "retries then succeeds",
			ai:    &fakeAI{errs: []error{errors.New("boom")}, replies: []string{"", `{"is_song": true, "title": "T", "artist": "A"}`}},
			track: lyric.Track{Song: "A - T"},
			want:  lyric.Track{Song: "T", Artist: "A"},
		},
		{
			name:  "garbage",
			ai:    &fakeAI{replies: []string{"sorry, I cannot help"}},
			track: lyric.Track{Song: "A - T"},
			want:  lyric.Track{Song: "A - T"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTitleResolver(tt.ai)
			r.retryDelay = time.Millisecond
			if got := r.Resolve(ctx, tt.track); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := newFileCache(dir)
	key := lyric.Track{Song: "A/B", Artist: "C:D", Duration: 100}.Key()

	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("empty cache should miss")
	}
	res := &lyric.SourceResult{Lyrics: []lyric.Line{{Words: "x", StartTimeMs: 5}}, Source: "S", CacheAllowed: true}
	if err := c.Set(ctx, key, res); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get(ctx, key)
	if !ok || got.Source != "S" || got.Lyrics[0].StartTimeMs != 5 {
		t.Errorf("unexpected cached value %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".json" {
		t.Errorf("expected one sanitized json file, got %v", entries)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := c.Get(ctx, key); ok {
		t.Error("Clear left entries behind")
	}
	if err := newFileCache(filepath.Join(dir, "missing")).Clear(ctx); err != nil {
		t.Errorf("clearing a missing dir should succeed, got %v", err)
	}
}
