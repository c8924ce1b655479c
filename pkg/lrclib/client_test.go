package lrclib

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"lyrics-engine/pkg/httputil"
	"lyrics-engine/pkg/lrc"
	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/source"
)

var testTrack = lyric.Track{Song: "Test Song", Artist: "Test Artist", Duration: 180}

func newTestClient(url string) *Client {
	return NewClient(url, 2*time.Second, lrc.DefaultFixerConfig())
}

func fill(t *testing.T, c *Client, track lyric.Track) *source.SourceMap {
	t.Helper()
	sm := source.NewSourceMap(c.Sources())
	c.Fill(context.Background(), track, sm.Outputs(c.Sources()...))
	return sm
}

func serveJSON(t *testing.T, handler func(r *http.Request) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := handler(r)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFillSyncedAndPlain(t *testing.T) {
	var query url.Values
	var clientHeaderSeen string
	server := serveJSON(t, func(r *http.Request) (int, any) {
		query = r.URL.Query()
		clientHeaderSeen = r.Header.Get("Lrclib-Client")
		return http.StatusOK, LRCLibResponse{
			TrackName:    "Test Song",
			ArtistName:   "Test Artist",
			Duration:     180,
			SyncedLyrics: "[00:10.00]Line one\n[00:15.00]Line two",
			PlainLyrics:  "Line one\nLine two\nLine three",
		}
	})

	sm := fill(t, newTestClient(server.URL), lyric.Track{Song: "Test Song", Artist: "Test Artist", Album: "Test Album", Duration: 180})

	synced := sm.Slot(SyncedSource)
	if !synced.Filled() || synced.Result() == nil {
		t.Fatal("expected synced slot to be filled with lyrics")
	}
	res := synced.Result()
	if len(res.Lyrics) != 2 || res.Source != "LRCLib" || res.SourceHref != "https://lrclib.net" {
		t.Errorf("unexpected synced result: %+v", res)
	}
	if !res.CacheAllowed || res.MusicVideoSynced {
		t.Errorf("synced result flags wrong: cache=%v mv=%v", res.CacheAllowed, res.MusicVideoSynced)
	}
	if last := res.Lyrics[1]; last.EndTimeMs() != 180000 {
		t.Errorf("last line should end at song end, got %d", last.EndTimeMs())
	}

	plain := sm.Slot(PlainSource).Result()
	if plain == nil || len(plain.Lyrics) != 3 {
		t.Fatalf("expected 3 plain lines, got %+v", plain)
	}
	if plain.CacheAllowed {
		t.Error("plain result must not be cacheable")
	}

	if clientHeaderSeen == "" {
		t.Error("expected Lrclib-Client header")
	}
	if query.Get("track_name") != "Test Song" || query.Get("artist_name") != "Test Artist" ||
		query.Get("album_name") != "Test Album" || query.Get("duration") != "180" {
		t.Errorf("unexpected query: %v", query)
	}
}

func TestFillPartialRecord(t *testing.T) {
	server := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusOK, LRCLibResponse{PlainLyrics: "only plain", Duration: 180}
	})
	sm := fill(t, newTestClient(server.URL), testTrack)

	if !sm.Slot(SyncedSource).Filled() || sm.Slot(SyncedSource).Result() != nil {
		t.Error("synced slot should be filled with a miss")
	}
	if sm.Slot(PlainSource).Result() == nil {
		t.Error("plain slot should still be filled")
	}
}

func TestFillHTTPError(t *testing.T) {
	server := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusNotFound, map[string]string{}
	})
	sm := fill(t, newTestClient(server.URL), testTrack)

	for _, id := range []string{SyncedSource, PlainSource} {
		slot := sm.Slot(id)
		if !slot.Filled() || slot.Result() != nil {
			t.Errorf("%s: expected filled miss", id)
		}
	}
}

func TestSearchFallback(t *testing.T) {
	server := serveJSON(t, func(r *http.Request) (int, any) {
		if r.URL.Path == "/get" {
			return http.StatusNotFound, map[string]string{"message": "not found"}
		}
		return http.StatusOK, LRCLibSearchResponse{
			{TrackName: "Other", ArtistName: "Nobody", Duration: 180, SyncedLyrics: "[00:01.00]wrong"},
			{TrackName: "Test Song", ArtistName: "Test Artist", Duration: 240, SyncedLyrics: "[00:01.00]too long"},
			{TrackName: "Test Song (Live)", ArtistName: "Test Artist", Duration: 181, SyncedLyrics: "[00:01.00]right"},
		}
	})

	record, err := newTestClient(server.URL).GetLyrics(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if record.SyncedLyrics != "[00:01.00]right" {
		t.Errorf("expected closest duration match, got %q", record.SyncedLyrics)
	}
}

func TestFillRespectsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	sm := source.NewSourceMap(c.Sources())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	c.Fill(ctx, testTrack, sm.Outputs(c.Sources()...))
	if time.Since(start) > time.Second {
		t.Error("filler ignored cancellation")
	}
	if !sm.Done() {
		t.Error("all slots must be filled after cancellation")
	}
}

func TestFindBestMatchPrefersSimilarTitle(t *testing.T) {
	c := newTestClient("")
	results := LRCLibSearchResponse{
		{TrackName: "Test Song (Karaoke Version)", ArtistName: "Test Artist", Duration: 180, PlainLyrics: "karaoke"},
		{TrackName: "Test Song", ArtistName: "Test Artist", Duration: 181, PlainLyrics: "original"},
	}
	if got := c.findBestMatch(results, "Test Song", "Test Artist", 180); got.PlainLyrics != "original" {
		t.Errorf("expected the closest title within the duration window, got %q", got.PlainLyrics)
	}
	if got := c.findBestMatch(results, "Test Song", "Test Artist", 0); got.PlainLyrics != "original" {
		t.Errorf("expected the closest title without a duration, got %q", got.PlainLyrics)
	}
}

func TestClientOptionsControlRetries(t *testing.T) {
	calls := 0
	server := serveJSON(t, func(r *http.Request) (int, any) {
		calls++
		if calls == 1 {
			return http.StatusBadGateway, map[string]string{"message": "try again"}
		}
		return http.StatusOK, LRCLibResponse{TrackName: "Test Song", ArtistName: "Test Artist", Duration: 180, PlainLyrics: "la"}
	})

	noRetry := NewClient(server.URL, time.Second, lrc.DefaultFixerConfig(), httputil.WithMaxRetries(0))
	if _, err := noRetry.GetLyrics(context.Background(), testTrack); err == nil {
		t.Fatal("expected the first 502 to fail without retries")
	}

	calls = 0
	retrying := NewClient(server.URL, time.Second, lrc.DefaultFixerConfig(),
		httputil.WithMaxRetries(1), httputil.WithBackoff(time.Millisecond))
	record, err := retrying.GetLyrics(context.Background(), testTrack)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if record.PlainLyrics != "la" {
		t.Errorf("unexpected record %+v", record)
	}
}
