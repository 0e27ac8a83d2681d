// Package reddit fetches and parses old-reddit search result pages.
//
// The client issues read-only queries against /r/<subreddit>/search and
// parses the returned HTML. No authentication is involved; the old UI is
// served to any browser-looking User-Agent.
package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "redwatch/pkg/logx"
)

const (
	defaultBaseURL = "https://old.reddit.com"
	// A browser UA keeps old.reddit.com from redirecting to the new UI.
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0"
	defaultTimeout   = 5 * time.Second
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Search runs one query and returns the parsed result rows, newest first
// (the endpoint is asked to sort=new).
func (c *Client) Search(ctx context.Context, s Search) ([]Post, error) {
	if strings.TrimSpace(s.Subreddit) == "" {
		return nil, errors.New("search subreddit is empty")
	}

	u, err := c.searchURL(s)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	// The search is asked to include over-18 results; the cookie makes the
	// old UI honor that without an interstitial.
	req.AddCookie(&http.Cookie{Name: "over18", Value: "1"})

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %s/%s: unexpected status %d", s.Subreddit, s.Query, resp.StatusCode)
	}

	posts, err := parseSearchResults(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	c.log.Debug("search fetched",
		logx.String("subreddit", s.Subreddit),
		logx.String("query", s.Query),
		logx.Int("results", len(posts)),
	)
	return posts, nil
}

func (c *Client) searchURL(s Search) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", c.cfg.BaseURL, err)
	}
	base.Path = "/r/" + url.PathEscape(s.Subreddit) + "/search"

	q := url.Values{}
	q.Set("q", s.Query)
	q.Set("restrict_sr", "on")
	q.Set("include_over_18", "on")
	q.Set("sort", "new")
	q.Set("t", "week")
	base.RawQuery = q.Encode()
	return base.String(), nil
}
