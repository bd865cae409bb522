package robots

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestCanFetchPermissiveWhenDisabled(t *testing.T) {
	p := New(false, nil)
	site, _ := url.Parse("https://example.com")
	if !p.CanFetch(site, "*", "/private") {
		t.Fatal("expected disabled policy to allow everything")
	}
}

func TestCanFetchHonorsDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(404)
	}))
	defer srv.Close()

	p := New(true, nil)
	site, _ := url.Parse(srv.URL)

	if p.CanFetch(site, "*", "/private") {
		t.Fatal("expected /private to be disallowed")
	}
	if !p.CanFetch(site, "*", "/public") {
		t.Fatal("expected /public to be allowed")
	}

	delay, ok := p.CrawlDelay(site, "*")
	if !ok || delay.Seconds() != 2 {
		t.Fatalf("expected a 2s crawl delay, got %v ok=%v", delay, ok)
	}
}

func TestCanFetchPermissiveOnMissingRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	p := New(true, nil)
	site, _ := url.Parse(srv.URL)

	if !p.CanFetch(site, "*", "/anything") {
		t.Fatal("expected missing robots.txt to fail open")
	}
}

func TestGroupForCachesPerHost(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("User-agent: *\nDisallow:\n"))
	}))
	defer srv.Close()

	p := New(true, nil)
	site, _ := url.Parse(srv.URL)

	p.CanFetch(site, "*", "/a")
	p.CanFetch(site, "*", "/b")
	if hits != 1 {
		t.Fatalf("expected robots.txt to be fetched once and cached, got %d fetches", hits)
	}
}
