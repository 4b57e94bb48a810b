// Command g2-scraper collects G2 product reviews and search listings through
// the scraping backend and writes one record per line (or per row).
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
