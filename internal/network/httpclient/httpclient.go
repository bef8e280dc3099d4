// Package httpclient implements the HTTP probe/fetch client
// (component C1): metadata discovery, ranged and full GETs, redirect
// following, and proxy configuration.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arlofen/fetchcore/internal/core/task"
	"github.com/arlofen/fetchcore/internal/utils"
)

const (
	connectTimeout = 30 * time.Second
	overallTimeout = 60 * time.Second
	maxRedirects   = 10
	userAgent      = "fetchcore/1.0 (+https://github.com/arlofen/fetchcore)"
)

// ProbeResult is the metadata discovered from a probe request.
type ProbeResult struct {
	FinalURL     string
	Size         int64 // -1 when unknown
	RangeSupport bool
	ContentType  string
	ETag         string
	Filename     string
}

// Client performs HTTP probe and fetch operations for the engine. It
// wraps an *http.Client configured with the engine's timeouts,
// redirect policy, and optional proxy.
type Client struct {
	http *http.Client
}

// Option configures a new Client.
type Option func(*http.Transport)

// WithProxy routes every request through proxyURL (HTTP/HTTPS/SOCKS5).
func WithProxy(proxyURL string) Option {
	return func(tr *http.Transport) {
		if proxyURL == "" {
			return
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			utils.Debug("httpclient: ignoring invalid proxy url %q: %v", proxyURL, err)
			return
		}
		tr.Proxy = http.ProxyURL(u)
	}
}

// New builds a Client with the engine's connect/overall timeouts and
// redirect cap, applying any options (e.g. proxy configuration).
func New(opts ...Option) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}
	for _, opt := range opts {
		opt(transport)
	}

	return &Client{
		http: &http.Client{
			Timeout:   overallTimeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Probe follows redirects and determines whether the server supports
// byte-range requests, the resource's size (if known), its content
// type, entity tag, and a filename hint.
func (c *Client) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Second)
			utils.Debug("httpclient: retrying probe, attempt %d", attempt+1)
		}

		probeCtx, cancel := context.WithTimeout(ctx, overallTimeout)
		defer cancel()

		req, reqErr := http.NewRequestWithContext(probeCtx, http.MethodGet, rawURL, nil)
		if reqErr != nil {
			return nil, &task.InvalidURLError{URL: rawURL, Err: reqErr}
		}
		req.Header.Set("Range", "bytes=0-0")
		req.Header.Set("User-Agent", userAgent)

		resp, err = c.http.Do(req)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, &task.NetworkError{Op: "probe", Err: err}
	}
	defer drainAndClose(resp)

	result := &ProbeResult{
		FinalURL:    resp.Request.URL.String(),
		Size:        -1,
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		result.RangeSupport = true
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if idx := strings.LastIndex(cr, "/"); idx != -1 {
				sizeStr := cr[idx+1:]
				if sizeStr != "*" {
					if n, perr := strconv.ParseInt(sizeStr, 10, 64); perr == nil {
						result.Size = n
					}
				}
			}
		}
	case http.StatusOK:
		result.RangeSupport = false
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
				result.Size = n
			}
		}
	default:
		if resp.StatusCode >= 400 {
			return nil, classifyStatus(resp)
		}
		return nil, &task.NetworkError{Op: "probe", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	name, _, ferr := utils.DetermineFilename(rawURL, resp, false)
	if ferr != nil || name == "" {
		name = "download"
	}
	result.Filename = name

	return result, nil
}

// FetchRange requests the inclusive byte range [start, end].
func (c *Client) FetchRange(ctx context.Context, rawURL string, start, end int64) (*http.Response, error) {
	return c.fetch(ctx, rawURL, fmt.Sprintf("bytes=%d-%d", start, end))
}

// FetchFull requests the entire resource.
func (c *Client) FetchFull(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.fetch(ctx, rawURL, "")
}

// FetchResume requests the resource starting at fromByte. The server
// may answer 206 (resume honored) or 200 (resume refused, caller must
// reset and start over).
func (c *Client) FetchResume(ctx context.Context, rawURL string, fromByte int64) (*http.Response, error) {
	return c.fetch(ctx, rawURL, fmt.Sprintf("bytes=%d-", fromByte))
}

func (c *Client) fetch(ctx context.Context, rawURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &task.InvalidURLError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &task.NetworkError{Op: "fetch", Err: err}
	}

	if resp.StatusCode >= 400 {
		defer drainAndClose(resp)
		return nil, classifyStatus(resp)
	}
	return resp, nil
}

func classifyStatus(resp *http.Response) error {
	se := &task.ServerError{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		se.RetryAfter = parseRetryAfter(resp)
	}
	return se
}

func parseRetryAfter(resp *http.Response) int64 {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return int64(seconds)
	}
	if t, err := http.ParseTime(v); err == nil {
		wait := time.Until(t)
		if wait < 0 {
			return 1
		}
		return int64(wait.Seconds())
	}
	return 0
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
