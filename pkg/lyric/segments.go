package lyric

// Segment aligns a stretch of the primary video with the counterpart video.
type Segment struct {
	PrimaryVideoStartTimeMilliseconds     int64 `json:"primaryVideoStartTimeMilliseconds"`
	CounterpartVideoStartTimeMilliseconds int64 `json:"counterpartVideoStartTimeMilliseconds"`
	DurationMilliseconds                  int64 `json:"durationMilliseconds"`
}

// SegmentMap is always expressed from the point of view of the video it was
// looked up for: "primary" is that video. Reversed is set on entries that
// were synthesized from the counterpart's own data.
type SegmentMap struct {
	Segment  []Segment `json:"segment"`
	Reversed bool      `json:"reversed,omitempty"`
}

// MatchingSong 某个视频对应的另一版本（音频/MV）及其时间对齐数据
type MatchingSong struct {
	CounterpartVideoID string      `json:"counterpartVideoId,omitempty"`
	SegmentMap         *SegmentMap `json:"segmentMap,omitempty"`
}

// Reverse returns the same alignment seen from the counterpart's side.
func (m *SegmentMap) Reverse() *SegmentMap {
	if m == nil {
		return nil
	}
	out := &SegmentMap{Segment: make([]Segment, len(m.Segment)), Reversed: !m.Reversed}
	for i, s := range m.Segment {
		out.Segment[i] = Segment{
			PrimaryVideoStartTimeMilliseconds:     s.CounterpartVideoStartTimeMilliseconds,
			CounterpartVideoStartTimeMilliseconds: s.PrimaryVideoStartTimeMilliseconds,
			DurationMilliseconds:                  s.DurationMilliseconds,
		}
	}
	return out
}

// ToPrimary maps a counterpart timestamp onto the primary timeline. Times
// outside every segment use the offset of the closest preceding segment,
// or of the first segment when t precedes them all.
func (m *SegmentMap) ToPrimary(t int64) int64 {
	if m == nil || len(m.Segment) == 0 {
		return t
	}
	seg := m.Segment[0]
	best := int64(-1)
	for _, s := range m.Segment {
		start := s.CounterpartVideoStartTimeMilliseconds
		if t >= start && t < start+s.DurationMilliseconds {
			seg = s
			break
		}
		if start <= t && start > best {
			best = start
			seg = s
		}
	}
	return t - seg.CounterpartVideoStartTimeMilliseconds + seg.PrimaryVideoStartTimeMilliseconds
}

// AlignToPrimary returns a copy of r with every line and part moved from the
// counterpart (audio) timeline onto the primary (video) timeline.
func AlignToPrimary(r *SourceResult, m *SegmentMap) *SourceResult {
	if r == nil || m == nil || len(m.Segment) == 0 {
		return r
	}
	out := r.Clone()
	for i := range out.Lyrics {
		l := &out.Lyrics[i]
		l.StartTimeMs, l.DurationMs = remap(m, l.StartTimeMs, l.DurationMs)
		for j := range l.Parts {
			p := &l.Parts[j]
			p.StartTimeMs, p.DurationMs = remap(m, p.StartTimeMs, p.DurationMs)
		}
		for j := range l.TimedRomanization {
			p := &l.TimedRomanization[j]
			p.StartTimeMs, p.DurationMs = remap(m, p.StartTimeMs, p.DurationMs)
		}
	}
	out.MusicVideoSynced = true
	return out
}

func remap(m *SegmentMap, start, duration int64) (int64, int64) {
	newStart := m.ToPrimary(start)
	newEnd := m.ToPrimary(start + duration)
	if newEnd < newStart {
		return newStart, 0
	}
	return newStart, newEnd - newStart
}
