// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/root4loot/pathhunt/pkg/options"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"
)

// browserHeaders are sent by the challenge client unless the caller overrides them
var browserHeaders = [][2]string{
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
	{"Accept-Language", "en-US,en;q=0.9"},
	{"Cache-Control", "no-cache"},
	{"Pragma", "no-cache"},
	{"Sec-Fetch-Dest", "document"},
	{"Sec-Fetch-Mode", "navigate"},
	{"Sec-Fetch-Site", "none"},
	{"Upgrade-Insecure-Requests", "1"},
}

// ChallengeClient retries pages that answered with an anti-bot interstitial.
// It runs on fasthttp with a browser header profile, separate from the Session stack.
type ChallengeClient struct {
	client  *fasthttp.Client
	timeout time.Duration
	maxBody int64
}

// NewChallengeClient returns a client that never follows redirects
func NewChallengeClient(o *options.Options) *ChallengeClient {
	timeout := time.Duration(o.Timeout) * time.Second

	c := &fasthttp.Client{
		NoDefaultUserAgentHeader: true,
		ReadTimeout:              timeout,
		WriteTimeout:             timeout,
		TLSConfig:                &tls.Config{MinVersion: tls.VersionTLS12},
	}

	// Validate has already rejected a malformed proxy
	if u, _ := o.ProxyURL(); u != nil {
		proxy := u.Host
		if u.User != nil {
			proxy = u.User.String() + "@" + proxy
		}
		c.Dial = fasthttpproxy.FasthttpHTTPDialer(proxy)
	}

	return &ChallengeClient{client: c, timeout: timeout, maxBody: o.MaxBodySize}
}

// Get performs a GET with the browser profile merged under header
func (c *ChallengeClient) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	// fasthttp takes no context, an abandoned request finishes in the background
	done := make(chan fetched, 1)
	go func() {
		done <- c.do(rawURL, header, timeout)
	}()

	var f fetched
	select {
	case f = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	return ReadResponse(rawURL, f.status, f.header, bytes.NewReader(f.body), c.maxBody)
}

type fetched struct {
	status int
	header http.Header
	body   []byte
	err    error
}

// do runs one request on pooled fasthttp objects and copies out what Get needs
func (c *ChallengeClient) do(rawURL string, header http.Header, timeout time.Duration) fetched {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	for _, kv := range browserHeaders {
		req.Header.Set(kv[0], kv[1])
	}
	for k, v := range header {
		if len(v) > 0 {
			req.Header.Set(k, v[0])
		}
	}
	req.SetConnectionClose()

	if err := c.client.DoTimeout(req, resp, timeout); err != nil {
		return fetched{err: err}
	}

	h := make(http.Header)
	resp.Header.VisitAll(func(key, value []byte) {
		h.Add(string(key), string(value))
	})

	return fetched{
		status: resp.StatusCode(),
		header: h,
		body:   append([]byte(nil), resp.Body()...),
	}
}

// Close releases idle connections
func (c *ChallengeClient) Close() {
	c.client.CloseIdleConnections()
}
