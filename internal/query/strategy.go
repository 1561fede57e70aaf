package query

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"SentimentScanner/internal/domain"
)

// Candidates derives the ordered search-query fallback chain for one item.
// The list is deduplicated, most-specific first, and always ends with the
// universal "{title} {noun}" fallback, so it is never empty. The dispatcher
// consumes it left to right and stops at the first extractable result.
func Candidates(title string, year *int, kind domain.ItemKind) []string {
	noun := kind.Noun()
	title = strings.TrimSpace(title)

	var out []string
	seen := map[string]struct{}{}
	add := func(q string) {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			return
		}
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	suffix := noun
	if year != nil {
		suffix = fmt.Sprintf("%d %s", *year, noun)
	}

	add(fmt.Sprintf("%s %s", title, suffix))

	if folded := FoldDiacritics(title); folded != title {
		add(fmt.Sprintf("%s %s", folded, suffix))
	}

	if idx := strings.Index(title, ":"); idx > 0 {
		add(fmt.Sprintf("%s %s", strings.TrimSpace(title[:idx]), suffix))
	}

	add(fmt.Sprintf("%s %s", title, noun))

	return out
}

var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldDiacritics strips combining marks from a title (é -> e, ñ -> n).
// Deterministic and locale-independent; returns the input unchanged when the
// transform fails.
func FoldDiacritics(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		return s
	}
	return folded
}
