package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/g2-scraper/pkg/scrape"
)

// Section headings of the review body.
const (
	likesHeading    = "What do you like best"
	dislikesHeading = "What do you dislike"
)

// companySizeHint marks the author detail line that carries the employee count.
const companySizeHint = "emp."

// Reviews extracts the reviews of a product review page.
func Reviews(doc *scrape.Document) PageResult[Review] {
	dom, err := doc.Selector()
	if err != nil {
		return newPageResult[Review](nil, ReviewPageSize)
	}

	res := newPageResult[Review](reviewTotal(dom), ReviewPageSize)

	dom.Find("article:has(div[itemprop='reviewBody'])").Each(func(_ int, article *goquery.Selection) {
		res.Records = append(res.Records, review(article))
	})

	return res
}

// reviewTotal reads the "<name> <rating> N reviews" anchor next to the
// reviews section. The count is the third token.
func reviewTotal(dom *goquery.Document) *int {
	var total *int
	dom.Find("a[href*='/reviews#reviews']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.Join(textNodes(a), " ")
		if !strings.Contains(text, "reviews") {
			return true
		}
		if fields := strings.Fields(text); len(fields) >= 3 {
			total = parseCount(fields[2])
		}
		return false
	})
	return total
}

func review(article *goquery.Selection) Review {
	var r Review

	authorDiv := article.Find("div[itemprop='author']").First()
	if name, ok := authorDiv.ChildrenFiltered("meta[itemprop='name']").Attr("content"); ok {
		r.Author.Name = optional(name)
	}
	if href, ok := article.Find("div[class*='avatar']").ParentFiltered("a").Attr("href"); ok {
		r.Author.Profile = &href
	}

	var details []string
	authorDiv.ParentFiltered("div").Find("div[class*='elv-text-subtle']").Each(func(_ int, d *goquery.Selection) {
		details = append(details, textNodes(d)...)
	})
	if len(details) > 0 {
		r.Author.Position = optional(details[0])
	}
	for _, d := range details {
		if strings.Contains(d, companySizeHint) {
			r.Author.CompanySize = optional(d)
			break
		}
	}

	r.Review.Tags = make([]string, 0)
	article.Find("div[class*='gap-3'][class*='flex-wrap'] label").Each(func(_ int, label *goquery.Selection) {
		r.Review.Tags = append(r.Review.Tags, textNodes(label)...)
	})

	if date, ok := article.Find("meta[itemprop='datePublished']").First().Attr("content"); ok {
		r.Review.Date = &date
	}
	if rate, ok := article.Find("span[itemprop='reviewRating'] > meta[itemprop='ratingValue']").First().Attr("content"); ok {
		r.Review.Rate = parseRating(rate)
	}

	if title := article.Find("div[itemprop='name']"); title.Length() > 0 {
		r.Review.Title = optional(strings.ReplaceAll(firstDescendantText(title), `"`, ""))
	}

	r.Review.Likes = sectionBody(article, likesHeading)
	r.Review.Dislikes = sectionBody(article, dislikesHeading)

	return r
}

// sectionBody joins the paragraphs of the sections headed by heading and
// strips G2's attribution line.
func sectionBody(article *goquery.Selection, heading string) string {
	sections := article.Find("section").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ChildrenFiltered("div").FilterFunction(func(_ int, div *goquery.Selection) bool {
			return strings.Contains(strings.Join(textNodes(div), " "), heading)
		}).Length() > 0
	})

	var b strings.Builder
	sections.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
		b.WriteString(p.Text())
	})
	return StripAttribution(b.String())
}

// StripAttribution removes G2's attribution boilerplate and trims whitespace.
func StripAttribution(body string) string {
	return strings.TrimSpace(strings.ReplaceAll(body, AttributionBoilerplate, ""))
}
