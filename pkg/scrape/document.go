package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a page rendered by the scraping backend.
type Document struct {
	// URL is the URL that was requested. Relative links resolve against it.
	URL string
	// FinalURL is the URL after redirects, as reported by the backend.
	FinalURL string
	// StatusCode is the target site's status code, not the backend's.
	StatusCode int
	// Content is the rendered HTML.
	Content string
	// FromCache is set when the document came from the local page cache.
	FromCache bool
}

// NewDocument wraps already rendered HTML, mostly for tests and replays.
func NewDocument(pageURL, html string) *Document {
	return &Document{
		URL:        pageURL,
		FinalURL:   pageURL,
		StatusCode: 200,
		Content:    html,
	}
}

// Selector parses the content into a queryable DOM. Each call returns a fresh
// tree, so callers may not observe each other's traversal.
func (d *Document) Selector() (*goquery.Document, error) {
	if d == nil {
		return nil, fmt.Errorf("nil document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.Content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", d.URL, err)
	}
	return doc, nil
}
