package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"redwatch/internal/reddit"
)

// noteTitle renders the push title, e.g.
// "New post in r/mechmarket by alice 12 minutes ago".
// Posts without a parsable timestamp get no relative-time suffix.
func noteTitle(sub string, p reddit.Post, now time.Time) string {
	if p.CreatedAt.IsZero() {
		return fmt.Sprintf("New post in r/%s by %s", sub, p.Author)
	}
	return fmt.Sprintf("New post in r/%s by %s %s", sub, p.Author, humanize.RelTime(p.CreatedAt, now, "ago", "from now"))
}

// noteBody renders the push body. Post time is shown in the display
// timezone; unknown times render as "unknown".
func noteBody(p reddit.Post, loc *time.Location) string {
	postTime := "unknown"
	if !p.CreatedAt.IsZero() {
		if loc != nil {
			postTime = p.CreatedAt.In(loc).Format(time.RFC3339)
		} else {
			postTime = p.CreatedAt.Format(time.RFC3339)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Author: %s\n", p.Author)
	fmt.Fprintf(&b, "Time: %s\n", postTime)
	fmt.Fprintf(&b, "Link: %s", p.URL)
	return b.String()
}
