package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/internal/config"
	"lyrics-engine/internal/ipc"
	"lyrics-engine/internal/lyrics"
	"lyrics-engine/internal/player"
	"lyrics-engine/internal/sniffer"
	"lyrics-engine/internal/statusbar"
	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/source"
)

// broadcaster 向客户端推送消息
type broadcaster interface {
	Broadcast(msg ipc.Message)
}

// barBroadcaster signals the status bar after every frame that rewrites
// the status file.
type barBroadcaster struct {
	broadcaster
	bar    *statusbar.Notifier
	logger zerolog.Logger
}

func (b barBroadcaster) Broadcast(msg ipc.Message) {
	b.broadcaster.Broadcast(msg)
	if msg.Type != ipc.TypeLine && msg.Type != ipc.TypeStatus {
		return
	}
	if err := b.bar.Notify(); err != nil {
		b.logger.Debug().Err(err).Msg("Status bar not notified")
	}
}

type App struct {
	cfg            *config.Config
	ipcServer      *ipc.Server
	out            broadcaster
	bar            *statusbar.Notifier
	player         *player.Player
	sniffer        *sniffer.Sniffer
	lyricsProvider *lyrics.Provider
	logger         zerolog.Logger

	mutex        sync.Mutex
	currentKey   string
	lookupCancel context.CancelFunc

	// 歌词调度器控制
	schedulerMutex  sync.Mutex
	schedulerCancel context.CancelFunc
}

// SetupLogger 配置全局 zerolog
func SetupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func New(cfg *config.Config) *App {
	SetupLogger(cfg.Log.Level)

	sn := sniffer.New(sniffer.Config{
		RetryInterval:   cfg.Sniffer.RetryInterval,
		LyricsRetries:   cfg.Sniffer.LyricsRetries,
		MatchingRetries: cfg.Sniffer.MatchingRetries,
		AlbumRetries:    cfg.Sniffer.AlbumRetries,
	})

	lyricsProvider, err := lyrics.NewFromConfig(context.Background(), cfg, sn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create lyrics provider")
	}

	a := &App{
		cfg:            cfg,
		sniffer:        sn,
		lyricsProvider: lyricsProvider,
		logger:         log.With().Str("component", "app").Logger(),
	}
	a.ipcServer = ipc.NewServer(cfg.App.SocketPath, cfg.App.StatusFile, a.handleMessage)
	a.out = a.ipcServer
	if cfg.App.BarProcess != "" && cfg.App.StatusFile != "" {
		a.bar = statusbar.NewNotifier(cfg.App.BarProcess, cfg.App.BarSignal)
		a.out = barBroadcaster{broadcaster: a.ipcServer, bar: a.bar, logger: a.logger}
	}
	return a
}

func (a *App) Run() {
	if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
		a.logger.Fatal().Err(err).Str("cache_dir", a.cfg.App.CacheDir).Msg("Failed to create cache directory")
	}
	a.logger.Info().Str("cache_dir", a.cfg.App.CacheDir).Msg("Lyrics cache directory")

	if err := a.ipcServer.Start(); err != nil {
		a.logger.Fatal().Err(err).Msg("Failed to start IPC server")
	}
	defer a.ipcServer.Close()
	defer a.lyricsProvider.Close()
	if a.bar != nil {
		a.bar.Start(statusbar.DefaultRefreshInterval)
		defer a.bar.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !a.cfg.App.PollPlayer {
		a.logger.Info().Msg("Player polling disabled, waiting for IPC track requests")
		<-ctx.Done()
		a.logger.Info().Msg("Shutting down")
		return
	}

	a.player = player.New(a.cfg.App.MPRISService)
	defer a.player.Close()

	ticker := time.NewTicker(a.cfg.App.CheckInterval)
	defer ticker.Stop()

	a.logger.Info().Msg("Starting player check loop...")
	for {
		a.updateFromPlayer()
		select {
		case <-ticker.C:
		case <-ctx.Done():
			a.logger.Info().Msg("Shutting down")
			return
		}
	}
}

func (a *App) handleMessage(msg ipc.Message) {
	switch msg.Type {
	case ipc.TypeTrack:
		if msg.Track == nil {
			return
		}
		// 客户端自己渲染，不需要调度器
		go a.switchTrack(*msg.Track, nil)
	case ipc.TypeResponse:
		if msg.Detail == nil {
			return
		}
		if err := a.sniffer.HandleEvent(*msg.Detail); err != nil {
			a.logger.Debug().Err(err).Msg("Ignoring page event")
		}
	case ipc.TypeClear:
		if err := a.lyricsProvider.ClearCache(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to clear result cache")
		}
		a.sniffer.Clear()
		a.out.Broadcast(ipc.StatusMessage("Cache cleared"))
	default:
		a.logger.Warn().Str("type", msg.Type).Msg("Unknown IPC message")
	}
}

func (a *App) updateFromPlayer() {
	track, err := a.player.CurrentTrack()
	if err != nil {
		a.mutex.Lock()
		playing := a.currentKey != ""
		a.currentKey = ""
		a.mutex.Unlock()
		if playing {
			a.stopScheduler()
			a.out.Broadcast(ipc.StatusMessage("No music playing..."))
		}
		return
	}
	go a.switchTrack(track, a.player.Position)
}

// switchTrack starts a lookup when track differs from the current one,
// cancelling the lookup in flight. clock, when set, drives the line
// scheduler.
func (a *App) switchTrack(track lyric.Track, clock func() float64) {
	key := track.Key() + "|" + track.VideoID

	a.mutex.Lock()
	if key == a.currentKey {
		a.mutex.Unlock()
		return
	}
	a.logger.Info().Msg("-----------------------------------------------------")
	a.logger.Info().Str("track", track.String()).Str("video_id", track.VideoID).Msg("New track detected")
	a.currentKey = key
	if a.lookupCancel != nil {
		a.lookupCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.LookupTimeout)
	a.lookupCancel = cancel
	a.mutex.Unlock()
	defer cancel()

	a.stopScheduler()
	a.out.Broadcast(ipc.StatusMessage(fmt.Sprintf("... Searching for lyrics for %s ...", track)))

	res, err := a.lyricsProvider.GetLyrics(ctx, track)

	// 发布期间持有锁，新曲目只能在发布前或发布后切换
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if key != a.currentKey || errors.Is(ctx.Err(), context.Canceled) {
		a.logger.Debug().Str("track", track.String()).Msg("Dropping result of replaced lookup")
		return
	}
	if err != nil {
		if errors.Is(err, source.ErrSuperseded) || errors.Is(err, context.Canceled) {
			a.logger.Debug().Str("track", track.String()).Msg("Lookup superseded")
			return
		}
		a.logger.Error().Err(err).Msg("Failed to get lyrics")
		a.out.Broadcast(ipc.StatusMessage(fmt.Sprintf("Error getting lyrics: %v", err)))
		return
	}

	a.out.Broadcast(ipc.ResultMessage(res))
	if res.IsNoLyrics() {
		a.out.Broadcast(ipc.StatusMessage("No lyrics found"))
		return
	}
	if clock != nil && res.Timing() != lyric.TimingNone {
		a.startLyricScheduler(res.Lyrics, clock)
	}
}

