// Package fetch implements the HTTP fetcher: a streaming body reader
// with size/time caps, content-type gating, and binary
// short-circuiting. colly buffers the whole body before its OnResponse
// hook ever fires, which makes it the wrong tool once a request needs
// to abort mid-stream, so this talks net/http directly instead.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talonweb/talon/internal/crawlmodel"
)

// minCapBytes is the floor SPIDER_MAX_SIZE_BYTES is clamped to when set
// and non-zero.
const minCapBytes = 1 << 20

// ignoreContentTypes is the fixed set of Content-Type prefixes the
// fetcher never streams a body for.
var ignoreContentTypes = []string{
	"application/pdf",
	"application/zip",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
	"application/gzip",
	"application/msword",
	"application/vnd.openxmlformats",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"image/",
	"video/",
	"audio/",
	"font/",
}

// Options configures one Fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64 // 0 = read SPIDER_MAX_SIZE_BYTES env, clamped
	HTMLOnly     bool  // binary short-circuit applies only when true
	CaptureBody  bool  // not read by Fetcher
	CaptureMeta  bool  // capture headers, cookies and remote address
}

// Fetcher streams one response at a time per call, enforcing the
// size cap, content-type gate, and binary sniff.
type Fetcher struct {
	client     *http.Client
	opts       Options
	maxSize    int64
	remoteAddr func(req *http.Request) string
}

// New builds a Fetcher. A zero Options.Timeout defaults to 30s.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	addrs := newRemoteAddrTracker()
	transport := &http.Transport{
		DialContext: addrs.dial,
	}

	f := &Fetcher{
		opts: opts,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		remoteAddr: addrs.forHost,
	}
	f.maxSize = opts.MaxBodyBytes
	if f.maxSize == 0 {
		f.maxSize = sizeCapFromEnv()
	}
	return f
}

func sizeCapFromEnv() int64 {
	raw := os.Getenv("SPIDER_MAX_SIZE_BYTES")
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	if n < minCapBytes {
		return minCapBytes
	}
	return n
}

func isIgnoredContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, prefix := range ignoreContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// Fetch streams raw (the requested URL's) response into a FetchRecord,
// applying the size cap, content-type gate, and (if opts.HTMLOnly)
// binary short-circuit. Network-level failures are mapped to a
// synthetic 599 status with no body, never returned as a Go error —
// the caller (C12 Page Acquisition) treats FetchRecord as the sole
// outcome channel.
func (f *Fetcher) Fetch(ctx context.Context, target *url.URL) *crawlmodel.FetchRecord {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return &crawlmodel.FetchRecord{Status: 599, FinalURL: target.String()}
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &crawlmodel.FetchRecord{Status: 599, FinalURL: target.String()}
	}
	defer resp.Body.Close()

	rec := &crawlmodel.FetchRecord{
		Status: resp.StatusCode,
	}
	if finalURL := resp.Request.URL.String(); finalURL != target.String() {
		rec.FinalURL = finalURL
	} else {
		rec.FinalURL = target.String()
	}
	if f.opts.CaptureMeta {
		rec.Headers = map[string][]string(resp.Header)
		rec.Cookies = cookieStrings(resp.Cookies())
		rec.RemoteAddr = f.remoteAddr(resp.Request)
	}

	if isIgnoredContentType(resp.Header.Get("Content-Type")) {
		rec.BytesTransferred = 0
		return rec
	}

	body, transferred, aborted := f.stream(resp.Body)
	rec.BytesTransferred = transferred
	if aborted {
		rec.Body = nil
		return rec
	}
	rec.Body = body
	return rec
}

// remoteAddrTracker records the last dialed peer address per host so
// CaptureMeta can surface the socket the response actually came from
// without threading a context value through every layer of net/http.
type remoteAddrTracker struct {
	mu   sync.Mutex
	last map[string]string
}

func newRemoteAddrTracker() *remoteAddrTracker {
	return &remoteAddrTracker{last: make(map[string]string)}
}

func (t *remoteAddrTracker) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	t.mu.Lock()
	t.last[addr] = conn.RemoteAddr().String()
	t.mu.Unlock()
	return conn, nil
}

func (t *remoteAddrTracker) forHost(req *http.Request) string {
	if req == nil {
		return ""
	}
	host := req.URL.Host
	if !strings.Contains(host, ":") {
		if req.URL.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[host]
}

func cookieStrings(cookies []*http.Cookie) []string {
	if len(cookies) == 0 {
		return nil
	}
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, c.String())
	}
	return out
}

// stream reads body through an accumulator, stopping on the size cap
// or (when HTMLOnly) on the first-chunk binary sniff. Returns
// (bytes-read-if-not-aborted, total-bytes-seen, aborted).
func (f *Fetcher) stream(r io.Reader) ([]byte, int64, bool) {
	const chunkSize = 32 * 1024
	var buf bytes.Buffer
	var total int64
	chunk := make([]byte, chunkSize)
	first := true

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if first {
				first = false
				if f.opts.HTMLOnly && looksBinary(chunk[:n]) {
					return nil, total, true
				}
			}
			if f.maxSize > 0 && int64(buf.Len()+n) > f.maxSize {
				return nil, total, true
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, total, true
		}
	}
	return buf.Bytes(), total, false
}

// looksBinary applies the stdlib content sniffer and rejects anything
// not text/html-ish.
func looksBinary(sample []byte) bool {
	ct := http.DetectContentType(sample)
	return !strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "xml")
}

