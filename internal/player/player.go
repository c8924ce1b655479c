// Package player reads the current track and position from the desktop
// media player, over MPRIS on the session bus or through playerctl.
package player

import (
	"errors"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/lyric"
)

// metadataFormat 字段以制表符分隔
const metadataFormat = "{{title}}\t{{artist}}\t{{album}}\t{{mpris:length}}\t{{xesam:url}}"

// ErrNoTrack 播放器没有可用的曲目
var ErrNoTrack = errors.New("no track playing")

// Player 当前播放器
type Player struct {
	bus     *dbus.Conn
	service string
	logger  zerolog.Logger
}

// New connects to the session bus. service names the MPRIS bus name to
// read; empty picks the first player on the bus. Without a session bus
// every call goes through playerctl.
func New(service string) *Player {
	p := &Player{
		service: service,
		logger:  log.With().Str("component", "player").Logger(),
	}
	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		p.logger.Warn().Err(err).Msg("No session bus, falling back to playerctl")
		return p
	}
	p.bus = bus
	return p
}

// Close 关闭总线连接
func (p *Player) Close() error {
	if p.bus == nil {
		return nil
	}
	return p.bus.Close()
}

// CurrentTrack 获取当前播放的曲目
func (p *Player) CurrentTrack() (lyric.Track, error) {
	if p.bus == nil {
		return playerctlTrack()
	}
	return p.mprisTrack()
}

// Position 当前播放位置（秒），失败时返回 -1
func (p *Player) Position() float64 {
	if p.bus == nil {
		return playerctlPosition()
	}
	return p.mprisPosition()
}

func playerctlTrack() (lyric.Track, error) {
	output, err := exec.Command("playerctl", "metadata", "--format", metadataFormat).Output()
	if err != nil {
		return lyric.Track{}, err
	}
	return parseMetadata(string(output))
}

func parseMetadata(out string) (lyric.Track, error) {
	fields := strings.Split(strings.TrimRight(out, "\r\n"), "\t")
	for len(fields) < 5 {
		fields = append(fields, "")
	}

	track := lyric.Track{
		Song:   strings.TrimSpace(fields[0]),
		Artist: strings.TrimSpace(fields[1]),
		Album:  strings.TrimSpace(fields[2]),
	}
	if track.Song == "" {
		return lyric.Track{}, ErrNoTrack
	}
	// mpris:length 单位是微秒
	if us, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64); err == nil && us > 0 {
		track.Duration = float64(us) / 1e6
	}
	track.VideoID = videoIDFromURL(strings.TrimSpace(fields[4]))
	return track, nil
}

// videoIDFromURL extracts v= from YouTube watch URLs.
func videoIDFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Host, "youtube.com") {
		return ""
	}
	return u.Query().Get("v")
}

func playerctlPosition() float64 {
	out, err := exec.Command("playerctl", "position").Output()
	if err != nil {
		return -1
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return -1
	}
	return seconds
}
