package reddit

import "time"

// Search is one subreddit search definition.
type Search struct {
	Name      string
	Subreddit string
	Query     string
}

// Post is one search result row.
//
// CreatedAt may be zero when the result row carries no parsable timestamp.
type Post struct {
	ID        string
	Title     string
	Author    string
	URL       string
	CreatedAt time.Time
}
