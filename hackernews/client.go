// Package hackernews is a minimal client for the public Hacker News REST
// API: the ranked story index plus per-item detail.
package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontpage_upstream_requests_total",
		Help: "The total number of requests sent to the upstream news API",
	}, []string{"endpoint"})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontpage_upstream_errors_total",
		Help: "The total number of upstream requests that failed",
	}, []string{"endpoint"})
)

// ErrItemMissing is returned when the upstream knows the id but serves no
// body for it. The API answers those with a literal JSON null.
var ErrItemMissing = errors.New("upstream item missing")

const userAgent = "frontpage/1.0 (+https://github.com/frontpage)"

// Item is the upstream representation of a story.
type Item struct {
	ID          int64   `json:"id"`
	By          string  `json:"by"`
	Time        int64   `json:"time"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Text        string  `json:"text"`
	Type        string  `json:"type"`
	Score       int64   `json:"score"`
	Descendants int64   `json:"descendants"`
	Kids        []int64 `json:"kids"`
}

// Client talks to the upstream API over plain HTTP. It never retries; a
// failed call is the caller's to skip or abort on.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// TopStories returns the ranked ids of the current front page, best first.
func (c *Client) TopStories(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := c.get(ctx, "topstories", c.baseURL+"/topstories.json", &ids); err != nil {
		return nil, err
	}

	return ids, nil
}

// Item fetches one story by id. Ids the upstream has no body for yield
// ErrItemMissing.
func (c *Client) Item(ctx context.Context, id int64) (*Item, error) {
	var item *Item
	if err := c.get(ctx, "item", fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &item); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemMissing
	}

	return item, nil
}

func (c *Client) get(ctx context.Context, endpoint string, url string, v any) error {
	upstreamRequests.WithLabelValues(endpoint).Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		upstreamErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		upstreamErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("read error: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		upstreamErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("decode error: %w", err)
	}

	return nil
}
