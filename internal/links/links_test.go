package links

import (
	"net/url"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestExtractResolvesAndFiltersByHost(t *testing.T) {
	base := mustURL(t, "https://example.com/")
	body := []byte(`
		<html><body>
			<a href="/about">about</a>
			<a href="https://evil.example/steal">off-site</a>
			<a href="https://blog.example.com/post">subdomain</a>
		</body></html>
	`)

	urls := Extract(base, body, HostPolicy{AllowSubdomains: false})
	if len(urls) != 1 {
		t.Fatalf("expected 1 same-host link, got %d: %v", len(urls), urls)
	}
	if urls[0].Path != "/about" {
		t.Fatalf("expected /about, got %s", urls[0].Path)
	}
}

func TestExtractAllowsSubdomainsWhenConfigured(t *testing.T) {
	base := mustURL(t, "https://example.com/")
	body := []byte(`<a href="https://blog.example.com/post">subdomain</a>`)

	urls := Extract(base, body, HostPolicy{AllowSubdomains: true})
	if len(urls) != 1 {
		t.Fatalf("expected subdomain link to be in scope, got %d", len(urls))
	}
}

func TestExtractDeduplicates(t *testing.T) {
	base := mustURL(t, "https://example.com/")
	body := []byte(`<a href="/x">one</a><a href="/x">two</a>`)

	urls := Extract(base, body, HostPolicy{})
	if len(urls) != 1 {
		t.Fatalf("expected deduped result, got %d", len(urls))
	}
}
