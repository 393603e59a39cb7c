// Package resolve turns links to bilibili content into BV identifiers.
package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// excludedMarkers name sections of the site whose links are not videos
// (episodes, live rooms, user spaces, courses, audio, articles).
var excludedMarkers = []string{
	"/bangumi/",
	"/live.",
	"live.bilibili.com",
	"space.bilibili.com",
	"/cheese/",
	"/audio/",
	"/read/",
	"/opus/",
	"/festival/",
}

// IsExcluded reports whether u points at an unsupported section.
func IsExcluded(u string) bool {
	for _, m := range excludedMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Client  *http.Client  // optional; redirects are disabled on a copy
	Timeout time.Duration // per request, default 5s
	Logger  *slog.Logger
}

// Resolver maps a reference URL to a BV id, following at most one redirect.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(cfg.Timeout)
	}
	return &Resolver{
		client:  noRedirectClient(cfg.Client),
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Resolve returns the BV id raw points at. It reports false when the link
// cannot be resolved, leads to an excluded section, or carries no id.
// Network failures are logged and reported as false.
func (r *Resolver) Resolve(ctx context.Context, raw string) (string, bool) {
	if id, ok := idFromPath(raw); ok {
		return id, true
	}

	target, err := r.follow(ctx, raw)
	if err != nil {
		r.logger.Debug("redirect resolution failed", "url", raw, "timeout", IsTimeout(err), "err", err)
		return "", false
	}

	if IsExcluded(target) {
		r.logger.Debug("reference points at excluded section", "url", raw, "target", target)
		return "", false
	}
	if id, ok := FindBVID(target); ok {
		return id, true
	}
	if id, ok := findAVID(target); ok {
		return id, true
	}
	r.logger.Debug("no video id in resolved url", "url", raw, "target", target)
	return "", false
}

// idFromPath finds an id already present in the path of raw, so no
// request is needed.
func idFromPath(raw string) (string, bool) {
	path := raw
	isSite := false
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		path = u.Path
		isSite = strings.HasSuffix(u.Hostname(), "bilibili.com")
	}
	if id, ok := FindBVID(path); ok {
		return id, true
	}
	if isSite {
		return findAVID(path)
	}
	return "", false
}

// follow issues a single GET without following redirects and returns the
// redirect target, or raw itself when the response is not a redirect.
func (r *Resolver) follow(ctx context.Context, raw string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	SetBrowserHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return raw, nil
	}
	return absoluteLocation(raw, loc), nil
}

// absoluteLocation makes a Location header value absolute. Protocol-relative
// values get an https: scheme; path-relative values are resolved against base.
func absoluteLocation(base, loc string) string {
	if strings.HasPrefix(loc, "//") {
		return "https:" + loc
	}
	if strings.HasPrefix(loc, "/") {
		if b, err := url.Parse(base); err == nil {
			if ref, err := url.Parse(loc); err == nil {
				return b.ResolveReference(ref).String()
			}
		}
	}
	return loc
}
