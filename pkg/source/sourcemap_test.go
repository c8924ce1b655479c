package source

import (
	"testing"

	"lyrics-engine/pkg/lyric"
)

func TestSlotWriteOnce(t *testing.T) {
	m := NewSourceMap([]string{"a", "b", "a"})
	if got := m.IDs(); len(got) != 2 {
		t.Fatalf("duplicate ids must collapse, got %v", got)
	}

	out := m.Outputs("a", "missing")
	first := lineResult("first")
	if !out.Set("a", first) {
		t.Error("first write should succeed")
	}
	if out.Set("a", plainResult("second")) {
		t.Error("second write must be rejected")
	}
	if m.Slot("a").Result() != first {
		t.Error("slot result changed after second write")
	}
	if out.Set("b", lineResult("b")) {
		t.Error("write to a slot the filler does not own must be rejected")
	}
	if m.Slot("b").Filled() {
		t.Error("unowned slot was filled")
	}
	if out.Owns("missing") {
		t.Error("outputs must not own ids outside the map")
	}

	if got := <-m.Updates(); got != "a" {
		t.Errorf("expected update for a, got %q", got)
	}
}

func TestSelect(t *testing.T) {
	m := NewSourceMap([]string{"a", "b", "c"})
	a, b, c := m.Outputs("a"), m.Outputs("b"), m.Outputs("c")

	c.Set("c", wordResult("c"))
	if _, _, ok := m.Select(false); ok {
		t.Error("must wait while higher sources are pending")
	}

	b.Set("b", lineResult("b"))
	if _, _, ok := m.Select(false); ok {
		t.Error("line timing must not resolve early")
	}

	res, id, ok := m.Select(true)
	if !ok || id != "c" || res.Source != "c" {
		t.Errorf("final select should prefer word timing, got %q %+v", id, res)
	}

	a.Miss("a")
	res, id, ok = m.Select(false)
	if !ok || id != "c" {
		t.Errorf("expected c once all slots are in, got %q %+v", id, res)
	}
	if !m.Done() {
		t.Error("expected all slots filled")
	}
}

func TestSelectEarlyWordTier(t *testing.T) {
	m := NewSourceMap([]string{"a", "b", "c"})
	m.Outputs("a").Miss("a")
	m.Outputs("b").Set("b", wordResult("b"))

	res, id, ok := m.Select(false)
	if !ok || id != "b" || res.Source != "b" {
		t.Errorf("expected early resolution on b, got %q %v", id, ok)
	}
}

func TestSelectNoLyrics(t *testing.T) {
	m := NewSourceMap([]string{"a"})
	m.Outputs("a").MissAll()

	res, id, ok := m.Select(false)
	if !ok || id != "" || !res.IsNoLyrics() {
		t.Errorf("expected sentinel, got %q %+v", id, res)
	}
	if res.Lyrics[0].Words != lyric.NoLyricsMarker {
		t.Errorf("unexpected marker %q", res.Lyrics[0].Words)
	}
}
