package recon

import (
	"net/url"
	"testing"
)

func TestScanFindsSubdomainsAndS3Buckets(t *testing.T) {
	site, err := url.Parse("https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	body := []byte(`Found endpoints: api.example.com, *.cdn.example.com, and a bucket at my-bucket.s3.amazonaws.com`)

	report := Scan(site, body)
	if len(report.Subdomains) == 0 {
		t.Fatal("expected at least one subdomain match")
	}
	if len(report.S3Buckets) != 1 || report.S3Buckets[0] != "my-bucket.s3.amazonaws.com" {
		t.Fatalf("expected 1 s3 bucket match, got %v", report.S3Buckets)
	}
}

func TestScanReturnsEmptyOnBadHost(t *testing.T) {
	site, _ := url.Parse("https://localhost")
	report := Scan(site, []byte("api.example.com"))
	if len(report.Subdomains) != 0 {
		t.Fatalf("expected no subdomains for a public-suffix lookup failure, got %v", report.Subdomains)
	}
}
