// Package catalog looks up karaoke machine numbers from the public song
// catalog API. The queue pipeline uses it to decide whether a requested
// song exists before handing it to the media worker.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Song is one catalog entry.
type Song struct {
	Number string `json:"no"`
	Title  string `json:"title"`
	Singer string `json:"singer"`
	Brand  string `json:"brand"`
}

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// New builds a client against base (e.g. https://api.manana.kr/karaoke).
func New(base string, log *zap.Logger) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
		log:  log,
	}
}

// SearchByTitle returns catalog entries whose title matches.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]Song, error) {
	return c.get(ctx, fmt.Sprintf("%s/song/%s.json", c.base, url.PathEscape(title)))
}

// SearchBySinger returns catalog entries for a singer.
func (c *Client) SearchBySinger(ctx context.Context, singer string) ([]Song, error) {
	return c.get(ctx, fmt.Sprintf("%s/singer/%s.json", c.base, url.PathEscape(singer)))
}

// Search narrows by title and singer together.
func (c *Client) Search(ctx context.Context, title, singer string) ([]Song, error) {
	return c.get(ctx, fmt.Sprintf("%s/song/%s/%s.json", c.base, url.PathEscape(title), url.PathEscape(singer)))
}

// SearchByNumber looks up a single machine number.
func (c *Client) SearchByNumber(ctx context.Context, number string) ([]Song, error) {
	return c.get(ctx, fmt.Sprintf("%s/no/%s.json", c.base, url.PathEscape(number)))
}

// Popular returns the daily popular chart.
func (c *Client) Popular(ctx context.Context) ([]Song, error) {
	return c.get(ctx, c.base+"/popular/daily.json")
}

// Match resolves a request to a catalog number. An empty result means
// the song is not in the catalog; callers fall back to manual mode.
func (c *Client) Match(ctx context.Context, title, artist string) (string, error) {
	if artist != "" {
		songs, err := c.Search(ctx, title, artist)
		if err != nil {
			return "", err
		}
		if len(songs) > 0 {
			return songs[0].Number, nil
		}
		c.log.Debug("no artist match, retrying by title",
			zap.String("title", title), zap.String("artist", artist))
	}

	songs, err := c.SearchByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	if len(songs) == 0 {
		return "", nil
	}
	return songs[0].Number, nil
}

func (c *Client) get(ctx context.Context, u string) ([]Song, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The catalog answers 404 for an unknown title rather than an empty
	// array.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var songs []Song
	if err := json.NewDecoder(resp.Body).Decode(&songs); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return songs, nil
}
