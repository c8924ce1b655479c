package source

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/lyric"
)

// ErrSuperseded is returned by Lookup when a newer lookup replaced it.
var ErrSuperseded = errors.New("lookup superseded by a newer track")

// DefaultRaceTimeout bounds a race whose fillers never answer.
const DefaultRaceTimeout = 15 * time.Second

// Filler 歌词来源适配器通用接口
type Filler interface {
	// Name 来源名称，用于日志
	Name() string
	// Sources lists the slot ids this filler writes.
	Sources() []string
	// Fill answers every owned slot through out. It must watch ctx; slots
	// it leaves empty are filled with misses when it returns.
	Fill(ctx context.Context, track lyric.Track, out *Outputs)
}

// Option 配置 Manager
type Option func(*Manager)

// WithPriority puts the listed slot ids first, in order. Unknown ids are
// ignored and unlisted ones keep registration order after the listed ones.
func WithPriority(ids []string) Option {
	return func(m *Manager) {
		m.priority = ids
	}
}

// WithRaceTimeout 设置单次竞速的兜底超时，<=0 表示不限制
func WithRaceTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.raceTimeout = d
	}
}

// Manager 歌词来源竞速管理器
type Manager struct {
	fillers     []Filler
	owned       [][]string
	order       []string
	priority    []string
	raceTimeout time.Duration
	logger      zerolog.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	generation uint64
}

// NewManager 创建新的竞速管理器
func NewManager(fillers []Filler, opts ...Option) *Manager {
	m := &Manager{
		raceTimeout: DefaultRaceTimeout,
		logger:      log.With().Str("component", "race").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}

	var registered []string
	owner := make(map[string]string)
	for _, f := range fillers {
		var ids []string
		for _, id := range f.Sources() {
			if prev, ok := owner[id]; ok {
				m.logger.Warn().
					Str("source", id).
					Str("filler", f.Name()).
					Str("owner", prev).
					Msg("Source already registered, skipping")
				continue
			}
			owner[id] = f.Name()
			ids = append(ids, id)
			registered = append(registered, id)
		}
		if len(ids) == 0 {
			continue
		}
		m.fillers = append(m.fillers, f)
		m.owned = append(m.owned, ids)
	}

	for _, id := range m.priority {
		if _, ok := owner[id]; ok && !slices.Contains(m.order, id) {
			m.order = append(m.order, id)
		}
	}
	for _, id := range registered {
		if !slices.Contains(m.order, id) {
			m.order = append(m.order, id)
		}
	}

	if len(m.fillers) == 0 {
		m.logger.Warn().Msg("No lyric fillers configured")
	} else {
		m.logger.Info().
			Int("filler_count", len(m.fillers)).
			Strs("priority", m.order).
			Msg("Lyrics race manager initialized")
	}
	return m
}

// Sources 按优先级返回所有来源 id
func (m *Manager) Sources() []string {
	return slices.Clone(m.order)
}

// Race runs every filler concurrently for track and returns the selected
// result. It never fails: with nothing usable it returns the no-lyrics
// sentinel. Fillers still running when the decision is made are cancelled
// and their late writes land in a map nobody reads.
func (m *Manager) Race(ctx context.Context, track lyric.Track) *lyric.SourceResult {
	res, _ := m.race(ctx, track)
	return res
}

func (m *Manager) race(ctx context.Context, track lyric.Track) (*lyric.SourceResult, string) {
	start := time.Now()
	sm := NewSourceMap(m.order)

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, f := range m.fillers {
		go m.runFiller(raceCtx, f, track, sm.Outputs(m.owned[i]...))
	}

	var timeout <-chan time.Time
	if m.raceTimeout > 0 {
		timer := time.NewTimer(m.raceTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		if res, id, ok := sm.Select(false); ok {
			m.logDecision(track, res, id, start)
			return res, id
		}

		select {
		case <-sm.Updates():
		case <-timeout:
			m.logger.Warn().
				Str("track", track.String()).
				Dur("timeout", m.raceTimeout).
				Msg("Race timed out, selecting from filled sources")
			res, id, _ := sm.Select(true)
			m.logDecision(track, res, id, start)
			return res, id
		case <-ctx.Done():
			res, id, _ := sm.Select(true)
			return res, id
		}
	}
}

func (m *Manager) runFiller(ctx context.Context, f Filler, track lyric.Track, out *Outputs) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str("filler", f.Name()).
				Interface("panic", r).
				Msg("Filler panicked")
		}
		out.MissAll()
		m.logger.Debug().
			Str("filler", f.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("Filler finished")
	}()
	f.Fill(ctx, track, out)
}

func (m *Manager) logDecision(track lyric.Track, res *lyric.SourceResult, id string, start time.Time) {
	if res.IsNoLyrics() {
		m.logger.Info().
			Str("track", track.String()).
			Dur("elapsed", time.Since(start)).
			Msg("No source returned lyrics")
		return
	}
	m.logger.Info().
		Str("track", track.String()).
		Str("source", id).
		Str("timing", res.Timing().String()).
		Int("lines", len(res.Lyrics)).
		Dur("elapsed", time.Since(start)).
		Msg("Race decided")
}

// Lookup races track after cancelling any lookup still in flight. A lookup
// that gets replaced returns ErrSuperseded instead of its result.
func (m *Manager) Lookup(ctx context.Context, track lyric.Track) (*lyric.SourceResult, error) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.generation++
	gen := m.generation
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	res, _ := m.race(ctx, track)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil, ErrSuperseded
	}
	m.cancel = nil
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lookup for %s: %w", track, err)
	}
	return res, nil
}
