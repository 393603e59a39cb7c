// Package bilibili fetches video metadata from the bilibili web API and
// renders it as a chat summary.
package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"linkrelay/internal/domain"
	"linkrelay/internal/resolve"
)

// DefaultAPIBase is the public web-interface API root.
const DefaultAPIBase = "https://api.bilibili.com/x/web-interface"

const maxResponseBytes = 1 << 20

// viewResponse is the envelope returned by <api>/view.
type viewResponse struct {
	Code    int       `json:"code"`
	Message string    `json:"message,omitempty"`
	Data    *viewData `json:"data"`
}

type viewData struct {
	BVID  string `json:"bvid"`
	AID   int64  `json:"aid"`
	Title string `json:"title"`
	Pic   string `json:"pic"`
	TID   int    `json:"tid"`
	Owner struct {
		MID  int64  `json:"mid"`
		Name string `json:"name"`
	} `json:"owner"`
	Stat struct {
		View     int64 `json:"view"`
		Danmaku  int64 `json:"danmaku"`
		Reply    int64 `json:"reply"`
		Favorite int64 `json:"favorite"`
		Coin     int64 `json:"coin"`
		Share    int64 `json:"share"`
		Like     int64 `json:"like"`
	} `json:"stat"`
}

// ClientConfig configures a metadata Client.
type ClientConfig struct {
	APIBase    string        // default DefaultAPIBase
	HTTPClient *http.Client  // optional
	Timeout    time.Duration // per request, default 5s
	Logger     *slog.Logger
}

// Client fetches video metadata. It never retries and never caches.
type Client struct {
	apiBase string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a metadata client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = resolve.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = resolve.SharedHTTPClient(cfg.Timeout)
	}
	return &Client{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Fetch returns the metadata for bvid. It reports false on transport
// failure, a non-200 response, an undecodable body or a non-zero API code.
func (c *Client) Fetch(ctx context.Context, bvid string) (domain.ContentMetadata, bool) {
	data, err := c.view(ctx, bvid)
	if err != nil {
		c.logger.Debug("metadata fetch failed", "bvid", bvid, "timeout", resolve.IsTimeout(err), "err", err)
		return domain.ContentMetadata{}, false
	}

	id := data.BVID
	if id == "" {
		id = bvid
	}
	return domain.ContentMetadata{
		Title:        data.Title,
		BVID:         id,
		Thumbnail:    data.Pic,
		CategoryCode: data.TID,
		AuthorName:   data.Owner.Name,
		Stats: domain.Stats{
			Views:     data.Stat.View,
			Danmaku:   data.Stat.Danmaku,
			Replies:   data.Stat.Reply,
			Favorites: data.Stat.Favorite,
			Coins:     data.Stat.Coin,
			Shares:    data.Stat.Share,
			Likes:     data.Stat.Like,
		},
	}, true
}

func (c *Client) view(ctx context.Context, bvid string) (*viewData, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.apiBase + "/view?bvid=" + url.QueryEscape(bvid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resolve.SetBrowserHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body viewResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("api code %d: %s", body.Code, body.Message)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("api response without data")
	}
	return body.Data, nil
}
