// Package pushbullet is a thin wrapper around the Pushbullet pushes API.
//
// It only implements what the notifier needs: creating "note" pushes.
package pushbullet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redwatch/internal/notify"
	logx "redwatch/pkg/logx"
)

const (
	defaultBaseURL = "https://api.pushbullet.com"
	defaultTimeout = 8 * time.Second

	pushesPath = "/v2/pushes"
)

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

// notePush is the request body for a note-type push.
type notePush struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("pushbullet token is empty")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
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
	}, nil
}

// Push creates one note push. Implements notify.Sender.
func (c *Client) Push(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(notePush{Type: "note", Title: n.Title, Body: n.Body})
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+pushesPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Access-Token", c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push call: %w", err)
	}
	defer func() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push rejected: status %d", resp.StatusCode)
	}
	return nil
}

var _ notify.Sender = (*Client)(nil)
