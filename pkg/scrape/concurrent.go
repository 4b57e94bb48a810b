package scrape

import (
	"context"
	"sync"
)

// Request is one entry of a concurrent batch.
type Request struct {
	URL     string
	Options Options
}

// Result is the outcome of one batch request. Index is the request's position
// in the submitted batch and is the only correlation key: two requests may
// share a URL.
type Result struct {
	Index    int
	URL      string
	Document *Document
	Err      error
}

// ConcurrentScrape renders a batch of pages with at most MaxConcurrency
// requests in flight. Results are delivered in completion order, exactly one
// per request; the channel is closed after the last one.
func (c *Client) ConcurrentScrape(ctx context.Context, reqs []Request) <-chan Result {
	results := make(chan Result, len(reqs))
	if len(reqs) == 0 {
		close(results)
		return results
	}

	workers := c.config.MaxConcurrency
	if len(reqs) < workers {
		workers = len(reqs)
	}

	queue := make(chan int, len(reqs))
	for i := range reqs {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go c.worker(ctx, reqs, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// worker processes batch indexes from the queue.
func (c *Client) worker(ctx context.Context, reqs []Request, queue <-chan int, results chan<- Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for idx := range queue {
		req := reqs[idx]

		if err := ctx.Err(); err != nil {
			results <- Result{Index: idx, URL: req.URL, Err: err}
			continue
		}

		scrapeInFlight.Inc()
		doc, err := c.Scrape(ctx, req.URL, req.Options)
		scrapeInFlight.Dec()

		if err != nil {
			c.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("url", req.URL).
				Msg("Batch scrape failed")
		}

		results <- Result{Index: idx, URL: req.URL, Document: doc, Err: err}
		processed++
	}

	if processed > 0 {
		c.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", processed).
			Msg("Worker completed")
	}
}
