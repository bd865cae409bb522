package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchReturnsBodyForPlainHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	f := New(Options{HTMLOnly: true, CaptureMeta: true})
	target, _ := url.Parse(srv.URL)
	rec := f.Fetch(context.Background(), target)

	require.Equal(t, 200, rec.Status)
	require.True(t, rec.HasBody())
	require.Contains(t, string(rec.Body), "hello")
}

func TestFetchGatesIgnoredContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	f := New(Options{})
	target, _ := url.Parse(srv.URL)
	rec := f.Fetch(context.Background(), target)

	require.False(t, rec.HasBody(), "expected no body for an ignored content type")
}

func TestFetchSizeCapAbortsStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := New(Options{MaxBodyBytes: 100})
	target, _ := url.Parse(srv.URL)
	rec := f.Fetch(context.Background(), target)

	require.False(t, rec.HasBody(), "expected body to be discarded once the size cap is exceeded")
}

func TestFetchMapsNetworkErrorTo599(t *testing.T) {
	f := New(Options{Timeout: 1})
	target, _ := url.Parse("http://127.0.0.1:1")
	rec := f.Fetch(context.Background(), target)

	require.Equal(t, 599, rec.Status)
	require.False(t, rec.HasBody())
}

func TestSizeCapFromEnvClampsToMinimum(t *testing.T) {
	t.Setenv("SPIDER_MAX_SIZE_BYTES", "100")
	require.Equal(t, int64(minCapBytes), sizeCapFromEnv())

	t.Setenv("SPIDER_MAX_SIZE_BYTES", "")
	require.Equal(t, int64(0), sizeCapFromEnv())
}
