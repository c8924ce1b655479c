package source

import (
	"slices"

	"lyrics-engine/pkg/lyric"
)

// SourceMap is the ordered set of slots for one race. Order is priority.
type SourceMap struct {
	order   []string
	slots   map[string]*Slot
	updates chan string
}

// NewSourceMap 按优先级顺序创建空槽位，重复的 id 只保留第一个
func NewSourceMap(ids []string) *SourceMap {
	m := &SourceMap{
		slots:   make(map[string]*Slot, len(ids)),
		updates: make(chan string, len(ids)),
	}
	for _, id := range ids {
		if _, ok := m.slots[id]; ok {
			continue
		}
		m.order = append(m.order, id)
		m.slots[id] = &Slot{id: id, updates: m.updates}
	}
	return m
}

// Slot returns the slot for id, or nil.
func (m *SourceMap) Slot(id string) *Slot {
	return m.slots[id]
}

// IDs 按优先级返回所有来源
func (m *SourceMap) IDs() []string {
	return slices.Clone(m.order)
}

// Updates receives a slot id each time a slot is filled. The buffer holds
// one entry per slot so fillers never block on it.
func (m *SourceMap) Updates() <-chan string {
	return m.updates
}

// Outputs gives a filler write access to the slots it owns.
func (m *SourceMap) Outputs(ids ...string) *Outputs {
	out := &Outputs{m: m}
	for _, id := range ids {
		if m.slots[id] != nil {
			out.ids = append(out.ids, id)
		}
	}
	return out
}

// Done reports whether every slot has been filled.
func (m *SourceMap) Done() bool {
	for _, id := range m.order {
		if !m.slots[id].Filled() {
			return false
		}
	}
	return true
}

// Select applies the winner policy. It reports false while the decision
// still depends on unfilled slots; with final set it always decides,
// treating unfilled slots as misses.
//
// A word-timed result wins early once every slot ranked above it has
// answered. Otherwise, when all slots are in, the first word-timed, then
// line-timed, then plain result in priority order wins, and the no-lyrics
// sentinel stands in when nothing usable arrived.
func (m *SourceMap) Select(final bool) (*lyric.SourceResult, string, bool) {
	higherPending := false
	for _, id := range m.order {
		s := m.slots[id]
		if !s.Filled() {
			higherPending = true
			continue
		}
		if res := s.Result(); !higherPending && res.Usable() && res.Timing() == lyric.TimingWord {
			return res, id, true
		}
	}
	if higherPending && !final {
		return nil, "", false
	}

	for _, tier := range []lyric.Timing{lyric.TimingWord, lyric.TimingLine, lyric.TimingNone} {
		for _, id := range m.order {
			res := m.slots[id].Result()
			if res.Usable() && res.Timing() == tier {
				return res, id, true
			}
		}
	}
	return lyric.NoLyrics(), "", true
}

// Outputs is the write side of a SourceMap handed to one filler.
type Outputs struct {
	m   *SourceMap
	ids []string
}

// IDs 该 filler 负责的来源
func (o *Outputs) IDs() []string {
	return slices.Clone(o.ids)
}

// Owns reports whether id belongs to this filler.
func (o *Outputs) Owns(id string) bool {
	return slices.Contains(o.ids, id)
}

// Set fills slot id. A nil result is a miss. Writes to slots the filler
// does not own, or that were already filled, are dropped and reported false.
func (o *Outputs) Set(id string, res *lyric.SourceResult) bool {
	if !o.Owns(id) {
		return false
	}
	return o.m.slots[id].fill(res)
}

// Miss 标记未命中
func (o *Outputs) Miss(id string) bool {
	return o.Set(id, nil)
}

// MissAll fills every owned slot that is still empty with a miss.
func (o *Outputs) MissAll() {
	for _, id := range o.ids {
		o.m.slots[id].fill(nil)
	}
}
