// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package pma

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/go-tld"
	"github.com/root4loot/pathhunt/pkg/log"
	"github.com/root4loot/pathhunt/pkg/options"
	"github.com/root4loot/pathhunt/pkg/probe"
)

var indicators = []string{
	"phpmyadmin",
	"pma_username",
	"pma_password",
	"server choice",
}

// Finder looks for a phpMyAdmin login page under a fixed list of suffixes
type Finder struct {
	Paths      []string
	UserAgents []string
	Logger     *log.WorkerLogger

	client  *http.Client
	maxBody int64
}

// NewFinder returns a finder that skips TLS verification and follows redirects
func NewFinder(o *options.Options) (*Finder, error) {
	transport, err := probe.NewTransport(o, true)
	if err != nil {
		return nil, err
	}

	return &Finder{
		Paths:      o.PMAPaths,
		UserAgents: o.UserAgents,
		Logger:     log.Worker("main"),
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(o.PMATimeout) * time.Second,
		},
		maxBody: o.MaxBodySize,
	}, nil
}

// Close releases idle connections
func (f *Finder) Close() {
	f.client.CloseIdleConnections()
}

// Find returns the first URL serving a phpMyAdmin page, or "" if none does.
// The same user agent is used for every path of one call.
func (f *Finder) Find(ctx context.Context, base string) (string, error) {
	root, err := BaseURL(base)
	if err != nil {
		return "", err
	}

	ua := probe.RandomUserAgent(f.UserAgents)
	f.Logger.Debugf("Scanning %d phpMyAdmin paths on %s", len(f.Paths), root)

	for i, path := range f.Paths {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		u := root + "/" + strings.TrimLeft(path, "/")
		f.Logger.Debugf("[%d/%d] Testing: %s", i+1, len(f.Paths), u)

		ok, err := f.check(ctx, u, ua)
		if err != nil {
			f.Logger.Debugf("Skipping %s: %s", u, probe.ShortError(err))
			continue
		}
		if ok {
			f.Logger.Infof("phpMyAdmin found at %s", u)
			return u, nil
		}
	}

	f.Logger.Debugf("phpMyAdmin not found in %d paths on %s", len(f.Paths), root)
	return "", nil
}

func (f *Finder) check(ctx context.Context, u, ua string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", ua)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	r, err := probe.ReadResponse(u, resp.StatusCode, resp.Header, resp.Body, f.maxBody)
	if err != nil {
		return false, err
	}
	return IsPhpMyAdmin(r.Body), nil
}

// IsPhpMyAdmin reports whether body carries any phpMyAdmin login marker
func IsPhpMyAdmin(body string) bool {
	lower := strings.ToLower(body)
	for _, indicator := range indicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// BaseURL reduces a target to scheme://host, defaulting to https
func BaseURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "http") {
		target = "https://" + target
	}

	if u, err := tld.Parse(target); err == nil && u.URL != nil && u.Host != "" {
		return u.Scheme + "://" + u.Host, nil
	}

	// go-tld rejects hosts without a public suffix (IPs, localhost)
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", target, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("parse base %q: missing host", target)
	}
	return u.Scheme + "://" + u.Host, nil
}
