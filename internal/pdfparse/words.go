package pdfparse

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Coordinate-based word extraction. The spatial parser never works on
// reflowed text lines; every decision below is made on word bounding boxes.

// Word is one positioned text element from a PDF page.
type Word struct {
	Text string
	X    float64 // left edge
	W    float64 // width
	Y    float64 // baseline; PDF Y grows bottom-up
	Page int     // 1-based
}

// Center returns the horizontal center of the word.
func (w Word) Center() float64 {
	return w.X + w.W/2
}

// ExtractWords reads every text element of a PDF with its position.
// Returns the words, the page count and the total character count of the
// text layer (used for the OCR trigger).
func ExtractWords(path string) (words []Word, pageCount int, charCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(path)
	if openErr != nil {
		return nil, 0, 0, fmt.Errorf("open pdf: %v", openErr)
	}
	defer f.Close()

	pageCount = r.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		words = append(words, groupIntoWords(content.Text, i)...)
	}
	for _, w := range words {
		charCount += len(w.Text)
	}
	return words, pageCount, charCount, nil
}

// groupIntoWords merges adjacent glyph runs on the same baseline into
// words. The library emits short runs (often single glyphs); two runs
// belong to one word when the horizontal gap between them is below a third
// of the font size.
func groupIntoWords(texts []pdf.Text, pageNum int) []Word {
	items := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		items = append(items, t)
	}
	sort.SliceStable(items, func(a, b int) bool {
		ya, yb := math.Round(items[a].Y), math.Round(items[b].Y)
		if ya != yb {
			return ya > yb // top of page first
		}
		return items[a].X < items[b].X
	})

	var words []Word
	var cur *Word
	var curEnd float64
	for _, t := range items {
		gapLimit := t.FontSize / 3
		if gapLimit <= 0 {
			gapLimit = 2
		}
		sameLine := cur != nil && math.Abs(cur.Y-t.Y) < 2
		if sameLine && t.X-curEnd <= gapLimit && !strings.HasPrefix(t.S, " ") {
			cur.Text += t.S
			cur.W = t.X + t.W - cur.X
			curEnd = t.X + t.W
			continue
		}
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			cur.Text = strings.TrimSpace(cur.Text)
			words = append(words, *cur)
		}
		cur = &Word{Text: t.S, X: t.X, W: t.W, Y: t.Y, Page: pageNum}
		curEnd = t.X + t.W
	}
	if cur != nil && strings.TrimSpace(cur.Text) != "" {
		cur.Text = strings.TrimSpace(cur.Text)
		words = append(words, *cur)
	}
	return words
}

// PageLines reconstructs visual text lines from words, page by page, top to
// bottom. Used for the header-region metadata extraction, which is pattern
// based rather than column based.
func PageLines(words []Word) []string {
	type lineKey struct {
		page int
		y    int
	}
	lines := make(map[lineKey][]Word)
	for _, w := range words {
		k := lineKey{w.Page, int(math.Round(w.Y))}
		lines[k] = append(lines[k], w)
	}

	keys := make([]lineKey, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].page != keys[b].page {
			return keys[a].page < keys[b].page
		}
		return keys[a].y > keys[b].y // PDF Y grows upward
	})

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		ws := lines[k]
		sort.Slice(ws, func(a, b int) bool { return ws[a].X < ws[b].X })
		parts := make([]string, len(ws))
		for i, w := range ws {
			parts[i] = w.Text
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}
