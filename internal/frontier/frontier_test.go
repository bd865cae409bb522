package frontier

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

func TestOfferTakeCommit(t *testing.T) {
	f := New()
	u := mustURL(t, "https://example.com/a")

	f.Offer(u)
	if f.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", f.Len())
	}

	got := f.Take()
	if got == nil || got.String() != u.String() {
		t.Fatalf("expected to take back the offered URL")
	}
	if f.Len() != 0 {
		t.Fatalf("expected frontier empty after take")
	}

	f.Commit(got, nil)
	if !f.Visited(u) {
		t.Fatal("expected URL to be visited after commit")
	}
	if f.VisitedCount() != 1 {
		t.Fatalf("expected 1 visited, got %d", f.VisitedCount())
	}
}

func TestOfferIsNoOpWhenAlreadyPendingOrVisited(t *testing.T) {
	f := New()
	u := mustURL(t, "https://example.com/a")

	f.Offer(u)
	f.Offer(u)
	if f.Len() != 1 {
		t.Fatalf("expected offering the same pending URL twice to be a no-op, got len %d", f.Len())
	}

	taken := f.Take()
	f.Commit(taken, nil)
	f.Offer(u)
	if f.Len() != 0 {
		t.Fatalf("expected offering a visited URL to be a no-op, got len %d", f.Len())
	}
}

func TestTakeOnEmptyFrontierReturnsNil(t *testing.T) {
	f := New()
	if f.Take() != nil {
		t.Fatal("expected nil from an empty frontier")
	}
}
