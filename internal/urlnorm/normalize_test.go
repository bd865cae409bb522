package urlnorm

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestNormalizeEmptyHrefReturnsBase(t *testing.T) {
	base := mustParse(t, "https://example.com/path/")
	got := Normalize(base, "  ")
	if got.String() != base.String() {
		t.Fatalf("expected base unchanged, got %s", got.String())
	}
}

func TestNormalizeAbsoluteProtocol(t *testing.T) {
	base := mustParse(t, "https://example.com/path/")
	got := Normalize(base, "HTTPS://Other.example/x#frag")
	if got.Fragment != "" {
		t.Fatalf("expected fragment stripped, got %q", got.Fragment)
	}
	if got.Host != "Other.example" {
		t.Fatalf("expected host preserved, got %s", got.Host)
	}
}

func TestNormalizeRootRelative(t *testing.T) {
	base := mustParse(t, "https://example.com/path/")
	got := Normalize(base, "/sub")
	if got.String() != "https://example.com/sub" {
		t.Fatalf("got %s", got.String())
	}
}

func TestNormalizeDirectoryRelativeKeepsPrefix(t *testing.T) {
	base := mustParse(t, "https://example.com/path/")
	got := Normalize(base, "sub?q=1#x")
	if got.String() != "https://example.com/path/sub?q=1" {
		t.Fatalf("got %s", got.String())
	}
}

func TestNormalizeBareDomainLikeStringIsAbsolute(t *testing.T) {
	base := mustParse(t, "https://example.com/path/")
	got := Normalize(base, "example.org/x")
	if got.String() != "http://example.org/x" {
		t.Fatalf("expected off-site absolute, got %s", got.String())
	}
}

func TestNormalizeResourceExtensionIsNotTreatedAsDomain(t *testing.T) {
	base := mustParse(t, "https://example.com/path/")
	got := Normalize(base, "styles.css")
	if got.Host != "example.com" {
		t.Fatalf("expected site-relative resolution, got %s", got.String())
	}
}

func TestIdempotent(t *testing.T) {
	base := mustParse(t, "https://example.com/path/")
	if !Idempotent(base, "/sub") {
		t.Fatal("expected /sub normalization to be idempotent")
	}
	if !Idempotent(base, "sub?q=1#x") {
		t.Fatal("expected directory-relative normalization to be idempotent")
	}
}
