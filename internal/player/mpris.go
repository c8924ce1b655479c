package player

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"lyrics-engine/pkg/lyric"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
)

// resolveService 返回配置的服务名，或总线上第一个 MPRIS 播放器
func (p *Player) resolveService() (string, error) {
	if p.service != "" {
		return p.service, nil
	}
	var names []string
	if err := p.bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}
	if name := firstPlayer(names); name != "" {
		return name, nil
	}
	return "", ErrNoTrack
}

func firstPlayer(names []string) string {
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			return name
		}
	}
	return ""
}

func (p *Player) mprisTrack() (lyric.Track, error) {
	service, err := p.resolveService()
	if err != nil {
		return lyric.Track{}, err
	}
	prop, err := p.bus.Object(service, mprisPath).GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return lyric.Track{}, fmt.Errorf("failed to get metadata from %s: %w", service, err)
	}
	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return lyric.Track{}, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}
	return trackFromMetadata(metadata)
}

func (p *Player) mprisPosition() float64 {
	service, err := p.resolveService()
	if err != nil {
		return -1
	}
	prop, err := p.bus.Object(service, mprisPath).GetProperty(mprisPlayerIface + ".Position")
	if err != nil {
		p.logger.Debug().Err(err).Str("service", service).Msg("Failed to read position")
		return -1
	}
	us, ok := prop.Value().(int64)
	if !ok || us < 0 {
		return -1
	}
	return float64(us) / 1e6
}

func trackFromMetadata(metadata map[string]dbus.Variant) (lyric.Track, error) {
	track := lyric.Track{
		Song:   strings.TrimSpace(variantString(metadata["xesam:title"])),
		Artist: strings.TrimSpace(variantFirstString(metadata["xesam:artist"])),
		Album:  strings.TrimSpace(variantString(metadata["xesam:album"])),
	}
	if track.Song == "" {
		return lyric.Track{}, ErrNoTrack
	}
	// mpris:length 单位是微秒，不同播放器类型不同
	switch us := metadata["mpris:length"].Value().(type) {
	case int64:
		if us > 0 {
			track.Duration = float64(us) / 1e6
		}
	case uint64:
		track.Duration = float64(us) / 1e6
	}
	track.VideoID = videoIDFromURL(variantString(metadata["xesam:url"]))
	return track, nil
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

// variantFirstString handles xesam:artist, a list on most players.
func variantFirstString(v dbus.Variant) string {
	switch typed := v.Value().(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
	case string:
		return typed
	}
	return ""
}
