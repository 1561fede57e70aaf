package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"SentimentScanner/internal/domain"
)

// likedWindow bounds how far (in bytes) the word "liked" may sit from a
// percentage token for the loose fallback rule to accept it.
const likedWindow = 60

type rule struct {
	name string
	re   *regexp.Regexp
}

// Rules are ordered most specific first; the first in-range match wins.
var rules = []rule{
	{"liked-this-kind", regexp.MustCompile(`(?i)\b(\d{1,3})%\s+liked\s+this\s+(?:film|movie|show|series|tv\s+show)`)},
	{"users-liked", regexp.MustCompile(`(?i)\b(\d{1,3})%\s+of\s+(?:google\s+)?users\s+liked`)},
	{"generic-liked", regexp.MustCompile(`(?i)\b(\d{1,3})%\s+liked`)},
	{"audience-score", regexp.MustCompile(`(?i)audience\s+score:?\s*(\d{1,3})%`)},
}

var percentToken = regexp.MustCompile(`\b(\d{1,3})%`)

// Sentiment scans raw content for an audience "percent liked" value. The
// content is cleaned first, then the pattern rules are tried in order;
// values outside [0,100] are skipped and matching continues. The second
// return is false when nothing matched.
func Sentiment(raw string) (domain.ExtractionResult, bool) {
	text := Clean(raw)

	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
			value, ok := parsePercent(text[m[2]:m[3]])
			if !ok {
				continue
			}
			return domain.ExtractionResult{
				Percent: value,
				Rule:    r.name,
				Matched: text[m[0]:m[1]],
			}, true
		}
	}

	// Loose fallback: a percentage token with "liked" nearby.
	for _, m := range percentToken.FindAllStringSubmatchIndex(text, -1) {
		value, ok := parsePercent(text[m[2]:m[3]])
		if !ok {
			continue
		}
		lo := max(0, m[0]-likedWindow)
		hi := min(len(text), m[1]+likedWindow)
		window := strings.ToLower(text[lo:hi])
		if strings.Contains(window, "liked") {
			return domain.ExtractionResult{
				Percent: value,
				Rule:    "liked-nearby",
				Matched: text[m[0]:m[1]],
			}, true
		}
	}

	return domain.ExtractionResult{}, false
}

func parsePercent(digits string) (int, bool) {
	value, err := strconv.Atoi(digits)
	if err != nil || value < 0 || value > 100 {
		return 0, false
	}
	return value, true
}

// Clean strips scripts, styles, markup, comments and entities from raw
// provider content and collapses whitespace. Cleaning already-clean text is
// a no-op, so the extractor may be fed either form.
func Clean(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
