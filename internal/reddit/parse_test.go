package reddit

import (
	"strings"
	"testing"
	"time"
)

const searchPageFixture = `<!DOCTYPE html>
<html><body>
<div class="search-result-listing">
  <div class="search-result search-result-link" data-fullname="t3_abc123">
    <header class="search-result-header">
      <a class="search-title may-blank" href="/r/mechmarket/comments/abc123/selling_keyboard/">Selling keyboard</a>
    </header>
    <div class="search-result-meta">
      <a class="author may-blank" href="/user/alice">alice</a>
      <time datetime="2026-08-29T10:30:00+00:00">19 hours ago</time>
    </div>
  </div>
  <div class="search-result search-result-link" data-fullname="t3_def456">
    <header class="search-result-header">
      <a class="search-title may-blank" href="https://www.reddit.com/r/mechmarket/comments/def456/trade/">Trade</a>
    </header>
    <div class="search-result-meta">
      <time datetime="2026-08-28T08:00:00">2 days ago</time>
    </div>
  </div>
  <div class="search-result search-result-link" data-fullname="t3_ghi789">
    <div class="search-result-meta">
      <a class="author may-blank" href="/user/bob">bob</a>
      <time datetime="not-a-timestamp">sometime</time>
    </div>
  </div>
</div>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	t.Parallel()

	posts, err := parseSearchResults(strings.NewReader(searchPageFixture))
	if err != nil {
		t.Fatalf("parseSearchResults error: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(posts))
	}

	first := posts[0]
	if first.ID != "abc123" {
		t.Errorf("ID = %q, want abc123", first.ID)
	}
	if first.Title != "Selling keyboard" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Author != "alice" {
		t.Errorf("Author = %q, want alice", first.Author)
	}
	if want := "https://www.reddit.com/r/mechmarket/comments/abc123/selling_keyboard/"; first.URL != want {
		t.Errorf("URL = %q, want %q (relative links must be absolutized)", first.URL, want)
	}
	wantTime := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	if !first.CreatedAt.Equal(wantTime) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, wantTime)
	}

	// Second row has no author and an already-absolute link and a zoneless timestamp.
	second := posts[1]
	if second.Author != missingAuthor {
		t.Errorf("Author = %q, want %q", second.Author, missingAuthor)
	}
	if want := "https://www.reddit.com/r/mechmarket/comments/def456/trade/"; second.URL != want {
		t.Errorf("URL = %q, want %q", second.URL, want)
	}
	if !second.CreatedAt.Equal(time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v, want zoneless value read as UTC", second.CreatedAt)
	}

	// Third row has no title link and an unparsable time.
	third := posts[2]
	if third.ID != "ghi789" {
		t.Errorf("ID = %q, want ghi789", third.ID)
	}
	if third.Title != missingTitle {
		t.Errorf("Title = %q, want %q", third.Title, missingTitle)
	}
	if third.URL != "" {
		t.Errorf("URL = %q, want empty", third.URL)
	}
	if !third.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero", third.CreatedAt)
	}
}

func TestParseSearchResultsEmptyPage(t *testing.T) {
	t.Parallel()

	posts, err := parseSearchResults(strings.NewReader("<html><body><p>no results</p></body></html>"))
	if err != nil {
		t.Fatalf("parseSearchResults error: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("got %d posts, want 0", len(posts))
	}
}

func TestParsePostTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "rfc3339", raw: "2026-08-29T10:30:00+00:00", want: time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)},
		{name: "offset", raw: "2026-08-29T06:30:00-04:00", want: time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)},
		{name: "zoneless", raw: "2026-08-29T10:30:00", want: time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)},
		{name: "garbage", raw: "yesterday"},
		{name: "empty", raw: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := parsePostTime(tt.raw)
			if !got.Equal(tt.want) {
				t.Fatalf("parsePostTime(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
