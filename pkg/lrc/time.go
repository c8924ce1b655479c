// Package lrc parses LRC and enhanced-LRC text into the canonical line model
// and repairs degenerate word timings.
package lrc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimestamp 时间戳无法解析
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// ParseTime converts "SS[.fff]", "MM:SS[.fff]" or "HH:MM:SS[.fff]" into
// milliseconds, rounding half up on the fourth fractional digit. An empty
// string is 0.
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	fields := strings.Split(s, ":")
	if len(fields) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}

	var minutes int64
	for _, f := range fields[:len(fields)-1] {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		minutes = minutes*60 + int64(n)
	}

	ms, ok := parseSeconds(fields[len(fields)-1])
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return minutes*60000 + ms, nil
}

// parseSeconds 解析 "SS.fff"，避免浮点误差
func parseSeconds(s string) (int64, bool) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, false
	}
	if !isDigits(whole) || !isDigits(frac) || (hasFrac && frac == "") {
		return 0, false
	}

	var sec int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, false
		}
		sec = n
	}

	var ms int64
	for i := 0; i < 3; i++ {
		ms *= 10
		if i < len(frac) {
			ms += int64(frac[i] - '0')
		}
	}
	if len(frac) > 3 && frac[3] >= '5' {
		ms++
	}
	return sec*1000 + ms, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatTime 格式化为 LRC 时间标签使用的 mm:ss.xx
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	cs := (ms + 5) / 10
	return fmt.Sprintf("%02d:%02d.%02d", cs/6000, cs/100%60, cs%100)
}
