package ipc

import (
	"lyrics-engine/internal/sniffer"
	"lyrics-engine/pkg/lyric"
)

// 消息类型
const (
	TypeTrack    = "track"    // in: 查询某首歌
	TypeResponse = "response" // in: 宿主页面事件
	TypeClear    = "clear"    // in: 清空缓存
	TypeResult   = "result"   // out: 查询结果
	TypeLine     = "line"     // out: 当前歌词行
	TypeStatus   = "status"   // out: 状态文本
)

// Message is one newline-delimited JSON frame in either direction.
type Message struct {
	Type   string              `json:"type"`
	Track  *lyric.Track        `json:"track,omitempty"`
	Detail *sniffer.Event      `json:"detail,omitempty"`
	Result *lyric.SourceResult `json:"result,omitempty"`
	Index  *int                `json:"index,omitempty"`
	Text   string              `json:"text,omitempty"`
}

// ResultMessage 结果消息
func ResultMessage(res *lyric.SourceResult) Message {
	return Message{Type: TypeResult, Result: res}
}

// LineMessage 歌词行消息，index 为 -1 表示第一行之前
func LineMessage(index int, text string) Message {
	return Message{Type: TypeLine, Index: &index, Text: text}
}

// StatusMessage 状态消息
func StatusMessage(text string) Message {
	return Message{Type: TypeStatus, Text: text}
}
