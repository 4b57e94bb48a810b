package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/g2-scraper/pkg/scrape"
)

var parenthesizedInt = regexp.MustCompile(`\((\d[\d,]*)\)`)

// Listings extracts the product cards of a search page.
func Listings(doc *scrape.Document) PageResult[Listing] {
	dom, err := doc.Selector()
	if err != nil {
		return newPageResult[Listing](nil, SearchPageSize)
	}

	res := newPageResult[Listing](searchTotal(dom), SearchPageSize)

	dom.Find("section:has(a[href*='/products/'])").Each(func(_ int, card *goquery.Selection) {
		if l, ok := listing(card, doc.URL); ok {
			res.Records = append(res.Records, l)
		}
	})

	return res
}

// searchTotal reads "Products" followed by a sibling "(N)".
func searchTotal(dom *goquery.Document) *int {
	var total *int
	dom.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if !strings.Contains(strings.Join(textNodes(div), " "), "Products") {
			return true
		}
		sibling := div.NextAllFiltered("div").First()
		if sibling.Length() == 0 {
			return true
		}
		m := parenthesizedInt.FindStringSubmatch(ownText(sibling))
		if m == nil {
			// a "Products" menu heading, keep looking
			return true
		}
		total = parseCount(m[1])
		return total == nil
	})
	return total
}

// listing extracts one card. Cards without a name are navigation or ads.
func listing(card *goquery.Selection, pageURL string) (Listing, bool) {
	nameDiv := card.Find("div[class*='elv-text-lg']").First()
	name := ownText(nameDiv)
	if name == "" {
		return Listing{}, false
	}

	href, _ := nameDiv.ParentFiltered("a").Attr("href")
	image, _ := card.Find("img[alt='Product Avatar Image']").First().Attr("src")

	l := Listing{
		Name:       name,
		Link:       resolve(pageURL, href),
		Image:      image,
		Categories: make([]string, 0),
	}

	card.Find("label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		raw := ownText(label)
		if !strings.Contains(raw, "/5") {
			return true
		}
		l.Rate = parseRating(strings.SplitN(raw, "/", 2)[0])
		return false
	})

	card.Find("a[href*='#reviews'] label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		raw := ownText(label)
		if raw == "" || strings.Contains(raw, "/5") {
			return true
		}
		l.ReviewsNumber = parseCount(raw)
		return false
	})

	descSection := card.Find("div").FilterFunction(func(_ int, div *goquery.Selection) bool {
		return div.ChildrenFiltered("div").FilterFunction(func(_ int, child *goquery.Selection) bool {
			return strings.Contains(ownText(child), "Product Description")
		}).Length() > 0
	})
	l.Description = optional(joinedText(descSection.ChildrenFiltered("p")))

	// blank fragments are dropped
	card.Find("aside div[class*='elv-whitespace-nowrap']").Each(func(_ int, cat *goquery.Selection) {
		l.Categories = append(l.Categories, textNodes(cat)...)
	})

	return l, true
}
