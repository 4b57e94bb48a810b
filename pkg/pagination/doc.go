// Package pagination walks paginated G2 listings and review pages.
//
// A Pipeline pairs the scraping backend with an extractor and supports two
// stop policies:
//
//   - CollectPages reads the total from page 1 and fetches pages 2..cap as one
//     concurrent batch. Records arrive in completion order; a failed page is
//     recorded in the result and skipped.
//   - CollectUntil fetches one page at a time, bypassing every cache, until the
//     target record count is reached, a page comes back empty, or a fetch
//     fails. Records stay in page order and are trimmed to the target.
//
// Example usage:
//
//	p := pagination.NewReviews(client, scrape.BaseOptions())
//	res, err := p.CollectUntil(ctx, "https://www.g2.com/products/asana/reviews", 25)
package pagination
