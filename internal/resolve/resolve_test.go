package resolve

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func redirectServer(t *testing.T, status int, location string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" || r.Header.Get("Referer") == "" {
			t.Errorf("missing browser headers: %v", r.Header)
		}
		if location != "" {
			w.Header().Set("Location", location)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// --- Normalize ---

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.bilibili.com/video/BV17x411w7KC?p=2&share=1", "https://www.bilibili.com/video/BV17x411w7KC"},
		{"https://www.bilibili.com/video/BV17x411w7KC/#reply", "https://www.bilibili.com/video/BV17x411w7KC/"},
		{"https://b23.tv/abcd?", "https://b23.tv/abcd"},
		{"https://b23.tv/abcd", "https://b23.tv/abcd"},
		{"not a url?x=1#frag", "not a url"},
		{"%zz/path#frag?q", "%zz/path"},
		{"HTTPS://WWW.Bilibili.com/video/BV17x411w7KC?p=1", "HTTPS://WWW.Bilibili.com/video/BV17x411w7KC"},
		{"https://www.bilibili.com/video/BV17x411w7KC/%E4%B8%AD?x", "https://www.bilibili.com/video/BV17x411w7KC/%E4%B8%AD"},
		{"https://b23.tv/a b#c", "https://b23.tv/a b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://www.bilibili.com/video/BV17x411w7KC?p=2#t=10",
		"https://m.bilibili.com/video/av170001?share_source=qq",
		"http://b23.tv/x#y",
		"garbage %% ? # here",
		"https://example.com/a%20b?c",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

// --- av / BV ---

func TestAVToBV(t *testing.T) {
	if got := AVToBV(170001); got != "BV17x411w7KC" {
		t.Fatalf("AVToBV(170001) = %s", got)
	}
	if got := AVToBV(111298867365120); got != "BV1L9Uoa9EUx" {
		t.Fatalf("AVToBV(111298867365120) = %s", got)
	}
}

func TestBVToAV(t *testing.T) {
	aid, ok := BVToAV("BV17x411w7KC")
	if !ok || aid != 170001 {
		t.Fatalf("BVToAV = %d, %v", aid, ok)
	}
	for _, bad := range []string{"", "BV17x411w7K", "AV17x411w7KC", "BV17x411w7K0"} {
		if _, ok := BVToAV(bad); ok {
			t.Errorf("BVToAV(%q) should fail", bad)
		}
	}
}

func TestAVBVRoundTrip(t *testing.T) {
	for _, aid := range []int64{1, 2, 170001, 99999999, 1 << 40} {
		back, ok := BVToAV(AVToBV(aid))
		if !ok || back != aid {
			t.Errorf("round trip %d -> %s -> %d", aid, AVToBV(aid), back)
		}
	}
}

// --- Resolve ---

func TestResolve_IDInPathSkipsNetwork(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request to %s", r.URL)
		return nil, nil
	})}
	r := NewResolver(ResolverConfig{Client: client, Logger: testLogger()})

	for _, in := range []string{
		"https://www.bilibili.com/video/BV17x411w7KC",
		"https://www.bilibili.com/video/BV17x411w7KC/?p=1",
		"https://www.bilibili.com/video/av170001",
		"https://b23.tv/BV17x411w7KC",
	} {
		id, ok := r.Resolve(context.Background(), in)
		if !ok || id != "BV17x411w7KC" {
			t.Errorf("Resolve(%q) = %q, %v", in, id, ok)
		}
	}
}

func TestResolve_FollowsRedirect(t *testing.T) {
	srv := redirectServer(t, http.StatusFound, "https://www.bilibili.com/video/BV17x411w7KC?share_source=copy")
	r := NewResolver(ResolverConfig{Logger: testLogger()})

	id, ok := r.Resolve(context.Background(), srv.URL+"/abcd")
	if !ok || id != "BV17x411w7KC" {
		t.Fatalf("Resolve = %q, %v", id, ok)
	}
}

func TestResolve_ProtocolRelativeLocation(t *testing.T) {
	srv := redirectServer(t, http.StatusMovedPermanently, "//www.bilibili.com/video/av170001")
	r := NewResolver(ResolverConfig{Logger: testLogger()})

	id, ok := r.Resolve(context.Background(), srv.URL+"/abcd")
	if !ok || id != "BV17x411w7KC" {
		t.Fatalf("Resolve = %q, %v", id, ok)
	}
}

func TestResolve_ExcludedTarget(t *testing.T) {
	targets := []string{
		"https://live.bilibili.com/21452505?BV17x411w7KC",
		"https://www.bilibili.com/bangumi/play/ep1?from=BV17x411w7KC",
		"https://space.bilibili.com/2/video/BV17x411w7KC",
		"https://m.bilibili.com/live.html?id=BV17x411w7KC",
	}
	for _, target := range targets {
		srv := redirectServer(t, http.StatusFound, target)
		r := NewResolver(ResolverConfig{Logger: testLogger()})
		if id, ok := r.Resolve(context.Background(), srv.URL+"/abcd"); ok {
			t.Errorf("target %q should be excluded, got %q", target, id)
		}
	}
}

func TestResolve_NoRedirectUsesOriginal(t *testing.T) {
	srv := redirectServer(t, http.StatusOK, "")
	r := NewResolver(ResolverConfig{Logger: testLogger()})

	if id, ok := r.Resolve(context.Background(), srv.URL+"/abcd"); ok {
		t.Fatalf("expected none, got %q", id)
	}
}

func TestResolve_ErrorStatus(t *testing.T) {
	srv := redirectServer(t, http.StatusNotFound, "https://www.bilibili.com/video/BV17x411w7KC")
	r := NewResolver(ResolverConfig{Logger: testLogger()})

	if id, ok := r.Resolve(context.Background(), srv.URL+"/abcd"); ok {
		t.Fatalf("404 should yield none, got %q", id)
	}
}

func TestResolve_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	r := NewResolver(ResolverConfig{Timeout: 50 * time.Millisecond, Logger: testLogger()})
	start := time.Now()
	if _, ok := r.Resolve(context.Background(), srv.URL+"/slow"); ok {
		t.Fatal("expected none on timeout")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

func TestResolve_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	r := NewResolver(ResolverConfig{Logger: testLogger()})
	if _, ok := r.Resolve(context.Background(), addr+"/abcd"); ok {
		t.Fatal("expected none for refused connection")
	}
}

func TestAbsoluteLocation(t *testing.T) {
	if got := absoluteLocation("https://b23.tv/x", "//www.bilibili.com/video/BV17x411w7KC"); got != "https://www.bilibili.com/video/BV17x411w7KC" {
		t.Fatalf("protocol-relative: %s", got)
	}
	if got := absoluteLocation("https://b23.tv/x", "/video/BV17x411w7KC"); got != "https://b23.tv/video/BV17x411w7KC" {
		t.Fatalf("path-relative: %s", got)
	}
}
