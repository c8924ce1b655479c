package app

import (
	"context"
	"time"

	"lyrics-engine/internal/ipc"
	"lyrics-engine/pkg/lyric"
)

const (
	timeShift     = 100 * time.Millisecond // 提前显示
	schedulerTick = 50 * time.Millisecond
	songEndGrace  = 5 * time.Second
)

func getLyricIndexAtTime(lines []lyric.Line, tMs int64) int {
	if len(lines) == 0 || tMs < lines[0].StartTimeMs {
		return -1
	}

	// 二分查找
	left, right := 0, len(lines)-1
	result := -1
	for left <= right {
		mid := (left + right) / 2
		if lines[mid].StartTimeMs <= tMs {
			result = mid
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return result
}

func (a *App) stopScheduler() {
	a.schedulerMutex.Lock()
	defer a.schedulerMutex.Unlock()
	if a.schedulerCancel != nil {
		a.logger.Info().Msg("Stopping previous lyric scheduler")
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
}

// startLyricScheduler broadcasts the current line whenever it changes.
// getCurrentTime returns seconds, negative when unknown.
func (a *App) startLyricScheduler(lines []lyric.Line, getCurrentTime func() float64) {
	a.schedulerMutex.Lock()
	defer a.schedulerMutex.Unlock()

	if a.schedulerCancel != nil {
		a.schedulerCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel

	a.logger.Info().Int("lines_count", len(lines)).Msg("Starting lyric scheduler")
	go a.runScheduler(ctx, lines, getCurrentTime, schedulerTick)
}

func (a *App) runScheduler(ctx context.Context, lines []lyric.Line, getCurrentTime func() float64, tick time.Duration) {
	defer a.logger.Info().Msg("Lyric scheduler stopped")

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	lastIndex := -2 // 确保第一次广播
	last := lines[len(lines)-1]
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		seconds := getCurrentTime()
		if seconds < 0 {
			a.logger.Warn().Float64("player_time", seconds).Msg("Invalid player time")
			continue
		}
		nowMs := int64(seconds * 1000)
		newIndex := getLyricIndexAtTime(lines, nowMs+timeShift.Milliseconds())

		if newIndex != lastIndex {
			if newIndex >= 0 {
				l := lines[newIndex]
				a.logger.Debug().
					Int("index", newIndex).
					Int64("player_ms", nowMs).
					Int64("lyric_ms", l.StartTimeMs).
					Str("lyric", l.Words).
					Msg("Broadcasting lyric")
				a.out.Broadcast(ipc.LineMessage(newIndex, l.Words))
			} else {
				a.out.Broadcast(ipc.LineMessage(-1, "♪ 即将开始... ♪"))
			}
			lastIndex = newIndex
		}

		if nowMs > last.EndTimeMs()+songEndGrace.Milliseconds() {
			a.logger.Info().Int64("player_ms", nowMs).Msg("Song finished")
			a.out.Broadcast(ipc.StatusMessage("♪ 歌曲结束 ♪"))
			return
		}
	}
}
