// Package extract turns rendered G2 pages into records.
//
// Extraction is pure: the same document always yields the same records, and
// a page that does not look like a G2 page yields no records rather than an
// error. Deciding what an empty page means is left to the caller.
package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page sizes used to derive the page count from a total.
const (
	SearchPageSize = 20
	ReviewPageSize = 10
)

// AttributionBoilerplate is appended by G2 to every review section.
const AttributionBoilerplate = "Review collected by and hosted on G2.com."

// PageResult holds the records of one page and the pagination derived from
// the page's total count indicator.
type PageResult[T any] struct {
	Records []T
	// TotalCount is nil when the page has no total indicator.
	TotalCount *int
	// TotalPages is ceil(TotalCount / page size), 0 without an indicator.
	TotalPages int
}

func newPageResult[T any](total *int, pageSize int) PageResult[T] {
	res := PageResult[T]{Records: make([]T, 0), TotalCount: total}
	if total != nil {
		res.TotalPages = pageCount(*total, pageSize)
	}
	return res
}

// pageCount is ceil(total / size).
func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// textNodes returns the trimmed, non-empty text nodes that are direct
// children of the selection's elements, in document order.
func textNodes(s *goquery.Selection) []string {
	var out []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) != "#text" {
			return
		}
		if t := strings.TrimSpace(c.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// ownText is the first direct text node of the first element, trimmed.
func ownText(s *goquery.Selection) string {
	nodes := textNodes(s.First())
	if len(nodes) == 0 {
		return ""
	}
	return nodes[0]
}

// firstDescendantText returns the first non-blank text node anywhere below
// the first element of s, in document order.
func firstDescendantText(s *goquery.Selection) string {
	var out string
	var walk func(sel *goquery.Selection) bool
	walk = func(sel *goquery.Selection) bool {
		found := false
		sel.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					out = t
					found = true
				}
			} else {
				found = walk(c)
			}
			return !found
		})
		return found
	}
	walk(s.First())
	return out
}

// joinedText concatenates all text below the selection's elements and trims
// the result.
func joinedText(s *goquery.Selection) string {
	var b strings.Builder
	s.Each(func(_ int, el *goquery.Selection) {
		b.WriteString(el.Text())
	})
	return strings.TrimSpace(b.String())
}

// resolve makes href absolute against base. An unparseable href resolves to
// the base itself.
func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return b.String()
	}
	return b.ResolveReference(ref).String()
}

// parseRating reads a rating in [0, 5]. Anything else is absent.
func parseRating(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

// parseCount reads a non-negative integer, ignoring thousands separators and
// surrounding parentheses, e.g. "(1,204)".
func parseCount(raw string) *int {
	cleaned := strings.Trim(strings.TrimSpace(raw), "()")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	n, err := strconv.Atoi(strings.TrimSpace(cleaned))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
