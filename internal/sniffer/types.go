package sniffer

import (
	"encoding/json"
	"strconv"
	"strings"

	"lyrics-engine/pkg/lyric"
)

// Event 宿主页面一次请求/响应
type Event struct {
	URL          string          `json:"url"`
	RequestJSON  json.RawMessage `json:"requestJson"`
	ResponseJSON json.RawMessage `json:"responseJson"`
}

// LyricsInfo 页面自带的歌词
type LyricsInfo struct {
	HasLyrics  bool   `json:"hasLyrics"`
	Lyrics     string `json:"lyrics"`
	SourceText string `json:"sourceText"`
}

// millis accepts both JSON numbers and numeric strings.
type millis int64

func (m *millis) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int64(f)
	}
	*m = millis(v)
	return nil
}

type runs struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (r runs) String() string {
	var b strings.Builder
	for _, run := range r.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

type nextRequest struct {
	VideoID string `json:"videoId"`
}

type browseRequest struct {
	BrowseID string `json:"browseId"`
}

type videoRenderer struct {
	VideoID string `json:"videoId"`
}

type rawSegmentMap struct {
	Segment []struct {
		PrimaryVideoStartTimeMilliseconds     millis `json:"primaryVideoStartTimeMilliseconds"`
		CounterpartVideoStartTimeMilliseconds millis `json:"counterpartVideoStartTimeMilliseconds"`
		DurationMilliseconds                  millis `json:"durationMilliseconds"`
	} `json:"segment"`
}

func (r *rawSegmentMap) toSegmentMap() *lyric.SegmentMap {
	if r == nil {
		return nil
	}
	m := &lyric.SegmentMap{Segment: make([]lyric.Segment, 0, len(r.Segment))}
	for _, s := range r.Segment {
		m.Segment = append(m.Segment, lyric.Segment{
			PrimaryVideoStartTimeMilliseconds:     int64(s.PrimaryVideoStartTimeMilliseconds),
			CounterpartVideoStartTimeMilliseconds: int64(s.CounterpartVideoStartTimeMilliseconds),
			DurationMilliseconds:                  int64(s.DurationMilliseconds),
		})
	}
	return m
}

type panelItem struct {
	PlaylistPanelVideoRenderer        *videoRenderer `json:"playlistPanelVideoRenderer"`
	PlaylistPanelVideoWrapperRenderer *struct {
		PrimaryRenderer struct {
			PlaylistPanelVideoRenderer videoRenderer `json:"playlistPanelVideoRenderer"`
		} `json:"primaryRenderer"`
		Counterpart []struct {
			CounterpartRenderer struct {
				PlaylistPanelVideoRenderer videoRenderer `json:"playlistPanelVideoRenderer"`
			} `json:"counterpartRenderer"`
			SegmentMap *rawSegmentMap `json:"segmentMap"`
		} `json:"counterpart"`
	} `json:"playlistPanelVideoWrapperRenderer"`
}

type tab struct {
	TabRenderer *struct {
		Unselectable bool `json:"unselectable"`
		Endpoint     struct {
			BrowseEndpoint struct {
				BrowseID string `json:"browseId"`
			} `json:"browseEndpoint"`
		} `json:"endpoint"`
		Content struct {
			MusicQueueRenderer struct {
				Content struct {
					PlaylistPanelRenderer struct {
						Contents []panelItem `json:"contents"`
					} `json:"playlistPanelRenderer"`
				} `json:"content"`
			} `json:"musicQueueRenderer"`
		} `json:"content"`
	} `json:"tabRenderer"`
}

type nextResponse struct {
	Contents struct {
		SingleColumnMusicWatchNextResultsRenderer struct {
			TabbedRenderer struct {
				WatchNextTabbedResultsRenderer struct {
					Tabs []tab `json:"tabs"`
				} `json:"watchNextTabbedResultsRenderer"`
			} `json:"tabbedRenderer"`
		} `json:"singleColumnMusicWatchNextResultsRenderer"`
	} `json:"contents"`
	PlayerOverlays struct {
		PlayerOverlayRenderer struct {
			BrowserMediaSession struct {
				BrowserMediaSessionRenderer struct {
					Album runs `json:"album"`
				} `json:"browserMediaSessionRenderer"`
			} `json:"browserMediaSession"`
		} `json:"playerOverlayRenderer"`
	} `json:"playerOverlays"`
}

type browseResponse struct {
	Contents struct {
		SectionListRenderer struct {
			Contents []struct {
				MusicDescriptionShelfRenderer *struct {
					Description runs `json:"description"`
					Footer      runs `json:"footer"`
				} `json:"musicDescriptionShelfRenderer"`
			} `json:"contents"`
		} `json:"sectionListRenderer"`
	} `json:"contents"`
}
