// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/root4loot/pathhunt/pkg/options"
	"golang.org/x/net/html/charset"
)

// Response is a fully read HTTP response
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       string
}

// Location returns the raw Location header
func (r *Response) Location() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Location")
}

// IsRedirect reports a redirect status carrying a Location header
func (r *Response) IsRedirect() bool {
	if r == nil || r.Location() == "" {
		return false
	}
	switch r.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// Fetcher issues a single GET and returns the read response
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*Response, error)
	Close()
}

// HeaderRoundTripper wraps an http.RoundTripper, adding a set of headers to each request
type HeaderRoundTripper struct {
	Transport http.RoundTripper
	Headers   http.Header
}

// RoundTrip executes a single HTTP transaction and adds custom headers
func (hrt *HeaderRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range hrt.Headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}
	return hrt.Transport.RoundTrip(req)
}

// Session is the per-worker net/http client used for every first attempt
type Session struct {
	client    *http.Client
	transport *http.Transport
	maxBody   int64
}

// NewSession returns a client that verifies certificates and never follows redirects
func NewSession(o *options.Options) (*Session, error) {
	transport, err := NewTransport(o, false)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport: &HeaderRoundTripper{
			Transport: transport,
			Headers:   http.Header{"Accept": {"*/*"}},
		},
		Timeout: time.Duration(o.Timeout) * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Session{client: client, transport: transport, maxBody: o.MaxBodySize}, nil
}

// Get performs a GET request with the given headers
func (s *Session) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		if strings.EqualFold(k, "Connection") {
			req.Close = strings.EqualFold(strings.Join(v, ""), "close")
			continue
		}
		req.Header[k] = v
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return ReadResponse(rawURL, resp.StatusCode, resp.Header, resp.Body, s.maxBody)
}

// Close releases idle connections
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}

// NewTransport returns a transport honoring the proxy and resolver options
func NewTransport(o *options.Options, insecure bool) (*http.Transport, error) {
	timeout := time.Duration(o.Timeout) * time.Second

	transport := &http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: insecure},
		MaxIdleConnsPerHost:   2,
		TLSHandshakeTimeout:   timeout,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	if len(o.Resolvers) > 0 {
		transport.DialContext = createCustomDialer(o.Resolvers, timeout)
	}

	proxyURL, err := o.ProxyURL()
	if err != nil {
		return nil, err
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return transport, nil
}

// ReadResponse reads at most maxBody bytes and decodes them to UTF-8 based on the content type
func ReadResponse(rawURL string, status int, header http.Header, body io.Reader, maxBody int64) (*Response, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		URL:        rawURL,
		StatusCode: status,
		Header:     header,
		Body:       decodeBody(raw, header.Get("Content-Type")),
	}, nil
}

func decodeBody(raw []byte, contentType string) string {
	if len(raw) == 0 {
		return ""
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// createCustomDialer creates a dialer with custom DNS resolvers using miekg/dns
func createCustomDialer(resolvers []string, timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		if net.ParseIP(host) != nil {
			return (&net.Dialer{Timeout: timeout}).DialContext(ctx, network, addr)
		}

		ip, err := resolveHost(ctx, host, resolvers, timeout)
		if err != nil {
			return nil, err
		}

		return (&net.Dialer{Timeout: timeout}).DialContext(ctx, network, net.JoinHostPort(ip, port))
	}
}

// resolveHost asks each resolver for an A record, then an AAAA record
func resolveHost(ctx context.Context, hostname string, resolvers []string, timeout time.Duration) (string, error) {
	c := &dns.Client{Timeout: timeout}

	for _, resolver := range resolvers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, _, err := net.SplitHostPort(resolver); err != nil {
			resolver = net.JoinHostPort(resolver, "53")
		}

		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(hostname), dns.TypeA)
		r, _, err := c.ExchangeContext(ctx, m, resolver)
		if err == nil {
			for _, ans := range r.Answer {
				if a, ok := ans.(*dns.A); ok {
					return a.A.String(), nil
				}
			}
		}

		m.SetQuestion(dns.Fqdn(hostname), dns.TypeAAAA)
		r, _, err = c.ExchangeContext(ctx, m, resolver)
		if err == nil {
			for _, ans := range r.Answer {
				if aaaa, ok := ans.(*dns.AAAA); ok {
					return aaaa.AAAA.String(), nil
				}
			}
		}
	}

	return "", &net.DNSError{Err: "no IP addresses found", Name: hostname, IsNotFound: true}
}
