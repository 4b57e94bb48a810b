package extract

// Listing is a product card from a G2 search or category page.
type Listing struct {
	Name          string   `json:"name"`
	Link          string   `json:"link"`
	Image         string   `json:"image"`
	Rate          *float64 `json:"rate"`
	ReviewsNumber *int     `json:"reviewsNumber"`
	Description   *string  `json:"description"`
	Categories    []string `json:"categories"`
}

// Review is a single customer review with its author.
type Review struct {
	Author Author     `json:"author"`
	Review ReviewBody `json:"review"`
}

// Author describes who wrote a review.
type Author struct {
	Name     *string `json:"authorName"`
	Profile  *string `json:"authorProfile"`
	Position *string `json:"authorPosition"`
	// CompanySize is the detail line carrying an employee count, e.g.
	// "Mid-Market (51-1000 emp.)".
	CompanySize *string `json:"authorCompanySize"`
}

// ReviewBody is the review content. Likes and Dislikes are always present;
// an absent section yields an empty string.
type ReviewBody struct {
	Tags     []string `json:"reviewTags"`
	Date     *string  `json:"reviewData"`
	Rate     *float64 `json:"reviewRate"`
	Title    *string  `json:"reviewTitle"`
	Likes    string   `json:"reviewLikes"`
	Dislikes string   `json:"reviewDislikes"`
}
