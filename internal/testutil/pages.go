// Package testutil provides G2 page fixtures and a fake scraping backend for
// tests.
package testutil

import (
	"fmt"
	"html"
	"strings"
)

// ListingCard describes one product card on a search page fixture.
type ListingCard struct {
	Name        string
	Href        string
	Image       string
	Rating      string // e.g. "4.3", rendered as "4.3/5"
	ReviewCount string // e.g. "1,204", rendered as "(1,204)"
	Description []string
	Categories  []string
}

// SearchPage renders a search results page. A negative total omits the
// "Products (N)" indicator.
func SearchPage(total int, cards ...ListingCard) string {
	var b strings.Builder
	b.WriteString("<html><head><title>G2 Search</title></head><body>\n")
	b.WriteString("<nav><div><div>Products</div><div>Solutions</div></div></nav>\n")
	if total >= 0 {
		fmt.Fprintf(&b, "<div><div>Products</div><div>(%s)</div></div>\n", thousands(total))
	}
	for _, c := range cards {
		b.WriteString("<section>\n")
		fmt.Fprintf(&b, `<a href="%s"><div class="elv-text-lg elv-font-bold">%s</div></a>`+"\n",
			html.EscapeString(c.Href), html.EscapeString(c.Name))
		if c.Image != "" {
			fmt.Fprintf(&b, `<img alt="Product Avatar Image" src="%s">`+"\n", html.EscapeString(c.Image))
		}
		if c.Rating != "" {
			fmt.Fprintf(&b, "<label>%s/5</label>\n", c.Rating)
		}
		if c.ReviewCount != "" {
			fmt.Fprintf(&b, `<a href="%s#reviews"><label>(%s)</label></a>`+"\n",
				html.EscapeString(c.Href), c.ReviewCount)
		}
		if len(c.Description) > 0 {
			b.WriteString("<div><div>Product Description</div>")
			for _, p := range c.Description {
				fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(p))
			}
			b.WriteString("</div>\n")
		}
		if len(c.Categories) > 0 {
			b.WriteString("<aside>")
			for _, cat := range c.Categories {
				fmt.Fprintf(&b, `<div class="elv-whitespace-nowrap">%s</div>`, html.EscapeString(cat))
			}
			b.WriteString("</aside>\n")
		}
		b.WriteString("</section>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

// ReviewCard describes one review on a review page fixture. Empty Likes or
// Dislikes omit the section.
type ReviewCard struct {
	Author      string
	Profile     string
	Position    string
	CompanySize string
	Tags        []string
	Date        string
	Rating      string
	Title       string
	Likes       []string
	Dislikes    []string
}

// ReviewPage renders a product review page for product. A negative total
// omits the "N reviews" indicator.
func ReviewPage(product string, total int, reviews ...ReviewCard) string {
	var b strings.Builder
	b.WriteString("<html><head><title>G2 Reviews</title></head><body>\n")
	if total >= 0 {
		fmt.Fprintf(&b, `<a href="https://www.g2.com/products/%s/reviews#reviews">%s 4.3 %s reviews</a>`+"\n",
			strings.ToLower(product), html.EscapeString(product), thousands(total))
	}
	b.WriteString(`<section id="reviews">` + "\n")
	for _, r := range reviews {
		b.WriteString("<article>\n<div>\n")
		if r.Profile != "" {
			fmt.Fprintf(&b, `<a href="%s"><div class="avatar">%s</div></a>`+"\n",
				html.EscapeString(r.Profile), initials(r.Author))
		}
		b.WriteString("<div>")
		fmt.Fprintf(&b, `<div itemprop="author"><meta itemprop="name" content="%s"></div>`, html.EscapeString(r.Author))
		for _, d := range []string{r.Position, r.CompanySize} {
			if d != "" {
				fmt.Fprintf(&b, `<div class="elv-text-subtle">%s</div>`, html.EscapeString(d))
			}
		}
		b.WriteString("</div>\n</div>\n")
		if len(r.Tags) > 0 {
			b.WriteString(`<div class="elv-flex gap-3 flex-wrap">`)
			for _, tag := range r.Tags {
				fmt.Fprintf(&b, "<label>%s</label>", html.EscapeString(tag))
			}
			b.WriteString("</div>\n")
		}
		if r.Date != "" {
			fmt.Fprintf(&b, `<meta itemprop="datePublished" content="%s">`+"\n", r.Date)
		}
		if r.Rating != "" {
			fmt.Fprintf(&b, `<span itemprop="reviewRating"><meta itemprop="ratingValue" content="%s"></span>`+"\n", r.Rating)
		}
		if r.Title != "" {
			fmt.Fprintf(&b, `<div itemprop="name"><div>&quot;%s&quot;</div></div>`+"\n", html.EscapeString(r.Title))
		}
		b.WriteString(`<div itemprop="reviewBody">` + "\n")
		writeSection(&b, "What do you like best about "+product+"?", r.Likes)
		writeSection(&b, "What do you dislike about "+product+"?", r.Dislikes)
		b.WriteString("</div>\n</article>\n")
	}
	b.WriteString("</section>\n</body></html>\n")
	return b.String()
}

// Reviews returns n distinct review cards whose titles carry prefix.
func Reviews(prefix string, n int) []ReviewCard {
	out := make([]ReviewCard, n)
	for i := range out {
		out[i] = ReviewCard{
			Author:   fmt.Sprintf("Reviewer %s-%d", prefix, i+1),
			Position: "Engineer",
			Date:     "2024-05-01",
			Rating:   "4.5",
			Title:    fmt.Sprintf("%s review %d", prefix, i+1),
			Likes:    []string{"Fast."},
		}
	}
	return out
}

func writeSection(b *strings.Builder, heading string, paragraphs []string) {
	if len(paragraphs) == 0 {
		return
	}
	fmt.Fprintf(b, "<section><div>%s</div>", html.EscapeString(heading))
	for _, p := range paragraphs {
		fmt.Fprintf(b, "<p>%s</p>", html.EscapeString(p))
	}
	b.WriteString("</section>\n")
}

func initials(name string) string {
	var out []rune
	for _, f := range strings.Fields(name) {
		out = append(out, []rune(f)[0])
	}
	return string(out)
}

// thousands formats n with comma separators, e.g. 1204 -> "1,204".
func thousands(n int) string {
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
