package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text cleanup helpers shared by the normalizer, the rule engine and the
// counterparty memory. Canonical storage preserves Polish diacritics;
// ASCII folding is applied only for matching.

var (
	wsRe       = regexp.MustCompile(`\s+`)
	digitRunRe = regexp.MustCompile(`\d{10,}`)
	urlRe      = regexp.MustCompile(`https?://[^\s,;"'<>]+`)

	asciiFolder = transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)

	// NFD does not decompose the Polish stroked l.
	lStrokeReplacer = strings.NewReplacer("ł", "l", "Ł", "L")
)

// CollapseWhitespace trims and collapses any whitespace runs to single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// CleanCounterparty uppercases, collapses whitespace and strips long digit
// runs (account numbers) from a raw counterparty string.
func CleanCounterparty(s string) string {
	s = digitRunRe.ReplaceAllString(s, "")
	return strings.ToUpper(CollapseWhitespace(s))
}

// NormalizeName lowercases, trims, collapses whitespace and strips runs of
// ten or more digits. This is the memory-side canonical key form.
func NormalizeName(s string) string {
	s = digitRunRe.ReplaceAllString(s, "")
	return strings.ToLower(CollapseWhitespace(s))
}

// FoldASCII strips diacritics: "żabka" -> "zabka". Falls back to the input
// when the transform chain fails on malformed UTF-8.
func FoldASCII(s string) string {
	s = lStrokeReplacer.Replace(s)
	out, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return out
}

// ExtractURLs pulls HTTP/HTTPS URLs out of free text. The permissive scheme
// regex excludes quoting characters and whitespace, then trailing
// punctuation is trimmed.
func ExtractURLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	urls := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,:)")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}

// URLDomain extracts the lowercased host part of a URL, dropping any
// leading "www." and port/path suffixes.
func URLDomain(url string) string {
	s := strings.ToLower(url)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	for _, sep := range []string{"/", "?", "#", ":"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimPrefix(s, "www.")
}

// Truncate cuts a string to at most n bytes without splitting a UTF-8 rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
