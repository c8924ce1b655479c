// Package ttml parses the timed-text documents served by the rich-synced
// lyrics API into the canonical line model.
package ttml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"lyrics-engine/pkg/lrc"
	"lyrics-engine/pkg/lyric"
)

// ErrNoLines 文档中没有可用的歌词行
var ErrNoLines = errors.New("ttml document has no lines")

type parser struct {
	dec *xml.Decoder

	language      string
	lines         []lyric.Line
	keys          []string
	translations  map[string]string
	romanizations map[string]lyric.Line
}

// content accumulates the parts and loose text found under one element.
type content struct {
	parts        []lyric.Part
	text         strings.Builder
	pendingSpace bool
	// bad 有无法解析的时间，整行丢弃
	bad bool
}

// Parse returns the lines of doc and its declared language. A line with an
// unparseable time is dropped and the rest of the document still parses. Spans become
// word parts, whitespace between spans becomes " " parts, spans with
// role x-bg are background vocals and iTunes translation and
// transliteration metadata is attached by line key.
func Parse(doc string) ([]lyric.Line, string, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.Entity = xml.HTMLEntity

	p := &parser{
		dec:           dec,
		translations:  make(map[string]string),
		romanizations: make(map[string]lyric.Line),
	}
	if err := p.run(); err != nil {
		return nil, "", err
	}
	if len(p.lines) == 0 {
		return nil, p.language, ErrNoLines
	}

	for i, key := range p.keys {
		if key == "" {
			continue
		}
		if t, ok := p.translations[key]; ok {
			p.lines[i].Translation = t
		}
		if r, ok := p.romanizations[key]; ok {
			p.lines[i].Romanization = r.Words
			p.lines[i].TimedRomanization = r.Parts
		}
	}
	return p.lines, p.language, nil
}

func (p *parser) run() error {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read ttml: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "tt":
			if lang, ok := attr(se, "lang"); ok {
				p.language = lang
			}
		case "translation", "transliteration":
			if err := p.readMetadata(se.Name.Local == "transliteration"); err != nil {
				return err
			}
		case "p":
			if err := p.readParagraph(se); err != nil {
				return err
			}
		}
	}
}

// readMetadata consumes one translation or transliteration block.
func (p *parser) readMetadata(timed bool) error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read ttml metadata: %w", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			key, _ := attr(t, "for")
			if t.Name.Local != "text" || key == "" {
				if err := p.dec.Skip(); err != nil {
					return err
				}
				continue
			}
			var c content
			if err := p.readContent(false, &c); err != nil {
				return err
			}
			if c.bad {
				continue
			}
			if timed {
				p.romanizations[key] = lyric.Line{Words: wordsOf(&c), Parts: c.parts}
			} else {
				p.translations[key] = wordsOf(&c)
			}
		}
	}
}

func (p *parser) readParagraph(se xml.StartElement) error {
	var c content
	if err := p.readContent(false, &c); err != nil {
		return err
	}

	begin, hasBegin, beginErr := timeAttr(se, "begin")
	end, hasEnd, endErr := timeAttr(se, "end")
	if c.bad || beginErr != nil || endErr != nil {
		return nil
	}

	line := lyric.Line{Words: wordsOf(&c), Parts: c.parts}
	if !hasBegin && len(c.parts) > 0 {
		begin = c.parts[0].StartTimeMs
	}
	if !hasEnd && len(c.parts) > 0 {
		last := c.parts[len(c.parts)-1]
		end = last.StartTimeMs + last.DurationMs
	}
	line.StartTimeMs = begin
	line.DurationMs = max(end-begin, 0)

	key, _ := attr(se, "key")
	p.lines = append(p.lines, line)
	p.keys = append(p.keys, key)
	return nil
}

// readContent reads up to the end of the current element.
func (p *parser) readContent(background bool, c *content) error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read ttml content: %w", err)
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return nil

		case xml.CharData:
			s := string(t)
			if strings.TrimSpace(s) == "" {
				if s != "" && len(c.parts) > 0 {
					c.pendingSpace = true
				}
				c.text.WriteString(" ")
				continue
			}
			c.text.WriteString(s)

		case xml.StartElement:
			if t.Name.Local == "br" {
				if err := p.dec.Skip(); err != nil {
					return err
				}
				c.text.WriteString(" ")
				continue
			}
			if t.Name.Local != "span" {
				if err := p.dec.Skip(); err != nil {
					return err
				}
				continue
			}

			bg := background
			if role, ok := attr(t, "role"); ok && role == "x-bg" {
				bg = true
				if err := p.readContent(bg, c); err != nil {
					return err
				}
				continue
			}

			begin, timed, beginErr := timeAttr(t, "begin")
			end, _, endErr := timeAttr(t, "end")
			if beginErr != nil || endErr != nil {
				c.bad = true
				if err := p.dec.Skip(); err != nil {
					return err
				}
				continue
			}
			if !timed {
				if err := p.readContent(bg, c); err != nil {
					return err
				}
				continue
			}
			words, err := p.readText()
			if err != nil {
				return err
			}
			c.addPart(lyric.Part{
				StartTimeMs:  begin,
				Words:        words,
				DurationMs:   max(end-begin, 0),
				IsBackground: bg,
			})
		}
	}
}

// readText flattens the text of the current element.
func (p *parser) readText() (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return "", fmt.Errorf("failed to read ttml text: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
}

func (c *content) addPart(part lyric.Part) {
	if c.pendingSpace && len(c.parts) > 0 {
		prev := c.parts[len(c.parts)-1]
		prevEnd := prev.StartTimeMs + prev.DurationMs
		c.parts = append(c.parts, lyric.Part{
			StartTimeMs:  prevEnd,
			Words:        " ",
			DurationMs:   max(part.StartTimeMs-prevEnd, 0),
			IsBackground: part.IsBackground,
		})
	}
	c.pendingSpace = false
	c.parts = append(c.parts, part)
	c.text.WriteString(part.Words)
}

func wordsOf(c *content) string {
	if len(c.parts) == 0 {
		return strings.Join(strings.Fields(c.text.String()), " ")
	}
	var b strings.Builder
	for _, part := range c.parts {
		b.WriteString(part.Words)
	}
	return strings.TrimSpace(b.String())
}

func attr(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// timeAttr parses clock times ("1:02.5") and offset times with an h, m,
// s or ms metric ("62.5s", "1500ms").
func timeAttr(se xml.StartElement, local string) (int64, bool, error) {
	v, ok := attr(se, local)
	if !ok || v == "" {
		return 0, false, nil
	}
	ms, err := parseTimeExpr(strings.TrimSpace(v))
	if err != nil {
		return 0, true, fmt.Errorf("bad %s attribute: %w", local, err)
	}
	return ms, true, nil
}

var metricScale = []struct {
	suffix string
	ms     float64
}{
	{"ms", 1},
	{"h", 3600000},
	{"m", 60000},
}

func parseTimeExpr(v string) (int64, error) {
	for _, m := range metricScale {
		num, ok := strings.CutSuffix(v, m.suffix)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("%w: %q", lrc.ErrInvalidTimestamp, v)
		}
		return int64(math.Round(f * m.ms)), nil
	}
	return lrc.ParseTime(strings.TrimSuffix(v, "s"))
}
