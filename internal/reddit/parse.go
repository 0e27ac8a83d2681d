package reddit

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fallbacks when a result row is missing pieces. The row is still returned;
// the post ID is what matters for dedup.
const (
	missingTitle  = "No title found"
	missingAuthor = "Unknown"
)

const postURLHost = "https://www.reddit.com"

// parseSearchResults extracts result rows from an old-reddit search page.
//
// Each row is a div.search-result-link carrying:
//   - data-fullname: "t3_<id>" (the tail after "_" is the post ID)
//   - a.search-title: title text + href (may be relative)
//   - a.author: author name
//   - time[datetime]: ISO creation timestamp
func parseSearchResults(r io.Reader) ([]Post, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var posts []Post
	doc.Find("div.search-result-link").Each(func(_ int, row *goquery.Selection) {
		var p Post

		fullname, _ := row.Attr("data-fullname")
		if i := strings.LastIndex(fullname, "_"); i >= 0 {
			p.ID = fullname[i+1:]
		} else {
			p.ID = fullname
		}

		title := row.Find("a.search-title").First()
		if title.Length() > 0 {
			p.Title = strings.TrimSpace(title.Text())
		}
		if p.Title == "" {
			p.Title = missingTitle
		}

		author := row.Find("a.author").First()
		if author.Length() > 0 {
			p.Author = strings.TrimSpace(author.Text())
		}
		if p.Author == "" {
			p.Author = missingAuthor
		}

		if href, ok := title.Attr("href"); ok {
			p.URL = href
			if strings.HasPrefix(p.URL, "/") {
				p.URL = postURLHost + p.URL
			}
		}

		if dt, ok := row.Find("time").First().Attr("datetime"); ok {
			p.CreatedAt = parsePostTime(dt)
		}

		posts = append(posts, p)
	})

	return posts, nil
}

// parsePostTime accepts the ISO timestamps old reddit emits, with or without
// an explicit zone. Zoneless values are treated as UTC. Returns the zero time
// when nothing parses.
func parsePostTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
