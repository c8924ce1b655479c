package translation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"lyrics-engine/pkg/httputil"
)

// DefaultGoogleURL 免费的 gtx 翻译接口
const DefaultGoogleURL = "https://translate.googleapis.com/translate_a/single"

// Google 使用 gtx 接口的后端
type Google struct {
	http    *httputil.Client
	baseURL string
}

// NewGoogle 创建 Google 翻译后端
func NewGoogle(baseURL string, timeout time.Duration, opts ...httputil.Option) *Google {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	return &Google{
		http:    httputil.NewClient("google-translate", timeout, opts...),
		baseURL: baseURL,
	}
}

// Name 后端名称
func (g *Google) Name() string {
	return "google"
}

// Translate concatenates every translated segment of the response.
func (g *Google) Translate(ctx context.Context, text, target string) (*Result, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	var raw []any
	if err := g.http.GetJSON(ctx, g.baseURL+"?"+params.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("translate request failed: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments(raw) {
		b.WriteString(stringAt(seg, 0))
	}
	lang := ""
	if len(raw) > 2 {
		lang, _ = raw[2].(string)
	}
	return &Result{TranslatedText: b.String(), OriginalLanguage: lang}, nil
}

// Romanize reads the transliteration column of each segment, falling back
// to the source transliteration when the target one is missing.
func (g *Google) Romanize(ctx context.Context, sourceLang, text string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", sourceLang)
	params.Set("tl", sourceLang+"-Latn")
	params.Set("dt", "rm")
	params.Set("q", text)

	var raw []any
	if err := g.http.GetJSON(ctx, g.baseURL+"?"+params.Encode(), nil, &raw); err != nil {
		return "", fmt.Errorf("romanize request failed: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments(raw) {
		r := stringAt(seg, 3)
		if r == "" {
			r = stringAt(seg, 2)
		}
		b.WriteString(r)
	}
	return b.String(), nil
}

// segments returns the array entries of raw[0], skipping nulls.
func segments(raw []any) [][]any {
	if len(raw) == 0 {
		return nil
	}
	list, _ := raw[0].([]any)
	out := make([][]any, 0, len(list))
	for _, item := range list {
		if seg, ok := item.([]any); ok {
			out = append(out, seg)
		}
	}
	return out
}

func stringAt(seg []any, i int) string {
	if i >= len(seg) {
		return ""
	}
	s, _ := seg[i].(string)
	return s
}
