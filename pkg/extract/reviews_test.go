package extract

import (
	"encoding/json"
	"testing"

	"github.com/Sternrassler/g2-scraper/internal/testutil"
	"github.com/Sternrassler/g2-scraper/pkg/scrape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewURL = "https://www.g2.com/products/asana/reviews"

var janeReview = testutil.ReviewCard{
	Author:      "Jane D.",
	Profile:     "https://www.g2.com/users/jane-d",
	Position:    "Project Manager",
	CompanySize: "Mid-Market (51-1000 emp.)",
	Tags:        []string{"Validated Reviewer", "Verified Current User"},
	Date:        "2024-05-01",
	Rating:      "4.5",
	Title:       "Great for cross-team planning",
	Likes:       []string{"Boards are easy to set up. ", AttributionBoilerplate},
	Dislikes:    []string{"Pricing jumps between tiers."},
}

func TestReviews_Fields(t *testing.T) {
	res := Reviews(scrape.NewDocument(reviewURL, testutil.ReviewPage("Asana", 1234, janeReview)))
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	assert.Equal(t, strPtr("Jane D."), r.Author.Name)
	assert.Equal(t, strPtr("https://www.g2.com/users/jane-d"), r.Author.Profile)
	assert.Equal(t, strPtr("Project Manager"), r.Author.Position)
	assert.Equal(t, strPtr("Mid-Market (51-1000 emp.)"), r.Author.CompanySize)

	assert.Equal(t, []string{"Validated Reviewer", "Verified Current User"}, r.Review.Tags)
	assert.Equal(t, strPtr("2024-05-01"), r.Review.Date)
	require.NotNil(t, r.Review.Rate)
	assert.InDelta(t, 4.5, *r.Review.Rate, 1e-9)
	assert.Equal(t, strPtr("Great for cross-team planning"), r.Review.Title)
	assert.Equal(t, "Boards are easy to set up.", r.Review.Likes)
	assert.Equal(t, "Pricing jumps between tiers.", r.Review.Dislikes)
}

func TestReviews_TotalPages(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		wantCount *int
		wantPages int
	}{
		{name: "comma separated", total: 1234, wantCount: intPtr(1234), wantPages: 124},
		{name: "exact multiple", total: 30, wantCount: intPtr(30), wantPages: 3},
		{name: "below page size", total: 7, wantCount: intPtr(7), wantPages: 1},
		{name: "no indicator", total: -1, wantCount: nil, wantPages: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Reviews(scrape.NewDocument(reviewURL, testutil.ReviewPage("Asana", tt.total, janeReview)))
			assert.Equal(t, tt.wantCount, res.TotalCount)
			assert.Equal(t, tt.wantPages, res.TotalPages)
		})
	}
}

func TestReviews_MissingSections(t *testing.T) {
	sparse := testutil.ReviewCard{Author: "Anonymous"}

	res := Reviews(scrape.NewDocument(reviewURL, testutil.ReviewPage("Asana", 1, sparse)))
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	assert.Equal(t, "", r.Review.Likes)
	assert.Equal(t, "", r.Review.Dislikes)
	assert.Nil(t, r.Review.Title)
	assert.Nil(t, r.Review.Rate)
	assert.Nil(t, r.Review.Date)
	assert.Nil(t, r.Author.Profile)
	assert.Nil(t, r.Author.CompanySize)
	assert.NotNil(t, r.Review.Tags)

	// absent bodies still serialize as empty strings
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reviewLikes":""`)
	assert.Contains(t, string(raw), `"reviewDislikes":""`)
}

func TestReviews_CompanySizeIsFirstEmployeeDetail(t *testing.T) {
	card := janeReview
	card.Position = "Small-Business (11-50 emp.)"
	card.CompanySize = "Enterprise (> 1000 emp.)"

	res := Reviews(scrape.NewDocument(reviewURL, testutil.ReviewPage("Asana", 1, card)))
	require.Len(t, res.Records, 1)
	assert.Equal(t, strPtr("Small-Business (11-50 emp.)"), res.Records[0].Author.CompanySize)
}

func TestReviews_DocumentOrder(t *testing.T) {
	res := Reviews(scrape.NewDocument(reviewURL, testutil.ReviewPage("Asana", 3, testutil.Reviews("p1", 3)...)))
	require.Len(t, res.Records, 3)
	for i, want := range []string{"p1 review 1", "p1 review 2", "p1 review 3"} {
		assert.Equal(t, strPtr(want), res.Records[i].Review.Title)
	}
}

func TestReviews_MalformedDocument(t *testing.T) {
	res := Reviews(scrape.NewDocument(reviewURL, "<html><body><p>Please verify you are human</p></body></html>"))
	assert.Empty(t, res.Records)
	assert.Nil(t, res.TotalCount)
	assert.Equal(t, 0, res.TotalPages)
}

func TestReviews_Idempotent(t *testing.T) {
	doc := scrape.NewDocument(reviewURL, testutil.ReviewPage("Asana", 42, janeReview, janeReview))

	first, err := json.Marshal(Reviews(doc))
	require.NoError(t, err)
	second, err := json.Marshal(Reviews(doc))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestStripAttribution(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Great support. " + AttributionBoilerplate, "Great support."},
		{"  padded  ", "padded"},
		{AttributionBoilerplate, ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripAttribution(tt.in))
	}
}

func strPtr(s string) *string { return &s }
