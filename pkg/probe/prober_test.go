// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/root4loot/pathhunt/pkg/options"
)

// fakeFetcher answers from a function and records requested URLs
type fakeFetcher struct {
	mu     sync.Mutex
	urls   []string
	agents []string
	closed bool
	fn     func(u string) (*Response, error)
}

func (f *fakeFetcher) Get(ctx context.Context, u string, header http.Header) (*Response, error) {
	f.mu.Lock()
	f.urls = append(f.urls, u)
	f.agents = append(f.agents, header.Get("User-Agent"))
	f.mu.Unlock()
	return f.fn(u)
}

func (f *fakeFetcher) Close() { f.closed = true }

func (f *fakeFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func resp(status int, location, body string) *Response {
	h := http.Header{}
	if location != "" {
		h.Set("Location", location)
	}
	return &Response{StatusCode: status, Header: h, Body: body}
}

func newTestProber(session, challenge Fetcher) (*Prober, *[]Result) {
	var events []Result
	p := NewProber(Config{
		Session:      session,
		NewChallenge: func() Fetcher { return challenge },
		UserAgents:   testAgents,
		Folder:       "journals",
		Marker:       "journal",
		OnResult:     func(r Result) { events = append(events, r) },
	})
	return p, &events
}

func TestFolderExistsRedirect(t *testing.T) {
	session := &fakeFetcher{fn: func(u string) (*Response, error) {
		return resp(301, "https://example.com/files/journals/", ""), nil
	}}
	p, _ := newTestProber(session, nil)

	r := p.FolderExists(context.Background(), "https", "example.com", "files")
	if r.Outcome != OutcomeFound || r.Reason != ReasonFolderRedirect {
		t.Fatalf("expected folder found by redirect, got %s/%s", r.Outcome, r.Reason)
	}
	if got := session.requested(); len(got) != 1 || got[0] != "https://example.com/files/journals" {
		t.Errorf("unexpected requests %v", got)
	}
	if session.agents[0] != UserAgent(testAgents, "example.com") {
		t.Errorf("expected deterministic UA, got %q", session.agents[0])
	}
}

func TestTLSErrorDowngradesOnce(t *testing.T) {
	session := &fakeFetcher{fn: func(u string) (*Response, error) {
		if strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("Get %q: %w", u, x509.UnknownAuthorityError{})
		}
		return resp(302, "http://example.com/files/journals/", ""), nil
	}}
	p, events := newTestProber(session, nil)

	r := p.FolderExists(context.Background(), "https", "example.com", "files")
	if r.Outcome != OutcomeFound || !r.Downgraded {
		t.Fatalf("expected found over http after downgrade, got %+v", r)
	}

	got := session.requested()
	expected := []string{"https://example.com/files/journals", "http://example.com/files/journals"}
	if strings.Join(got, " ") != strings.Join(expected, " ") {
		t.Errorf("requests = %v, expected %v", got, expected)
	}
	if (*events)[0].Reason != ReasonTLSFallback || (*events)[0].Outcome != OutcomeRetry {
		t.Errorf("expected a fallback notice first, got %+v", (*events)[0])
	}
}

func TestTLSErrorOverHTTPIsTerminal(t *testing.T) {
	session := &fakeFetcher{fn: func(u string) (*Response, error) {
		return nil, x509.UnknownAuthorityError{}
	}}
	p, _ := newTestProber(session, nil)

	r := p.CheckDirectory(context.Background(), "http", "example.com", "files")
	if r.Outcome != OutcomeError || r.Kind != KindTLS {
		t.Fatalf("expected terminal TLS error, got %+v", r)
	}
	if n := len(session.requested()); n != 1 {
		t.Errorf("expected a single request, got %d", n)
	}
}

func TestTimeoutNotRetried(t *testing.T) {
	session := &fakeFetcher{fn: func(u string) (*Response, error) {
		return nil, fmt.Errorf("request: %w", context.DeadlineExceeded)
	}}
	p, _ := newTestProber(session, nil)

	r := p.FolderExists(context.Background(), "https", "example.com", "files")
	if r.Outcome != OutcomeError || r.Kind != KindTimeout || r.Reason != ReasonTimeout {
		t.Fatalf("expected timeout error, got %+v", r)
	}
	if n := len(session.requested()); n != 1 {
		t.Errorf("expected a single request, got %d", n)
	}
}

func TestChallengeRetriedWithChallengeClient(t *testing.T) {
	session := &fakeFetcher{fn: func(u string) (*Response, error) {
		return resp(503, "", "<title>Just a moment...</title> cloudflare"), nil
	}}
	challenge := &fakeFetcher{fn: func(u string) (*Response, error) {
		return resp(200, "", "<html><title>Index of /files/journals</title></html>"), nil
	}}
	p, events := newTestProber(session, challenge)

	r := p.CheckDirectory(context.Background(), "https", "example.com", "files")
	if r.Outcome != OutcomeFound || r.Reason != ReasonIndexOf {
		t.Fatalf("expected index found via challenge client, got %+v", r)
	}
	if n := len(challenge.requested()); n != 1 {
		t.Errorf("expected one challenge request, got %d", n)
	}
	if (*events)[0].Reason != ReasonChallenge {
		t.Errorf("expected challenge notice, got %+v", (*events)[0])
	}

	p.Close()
	if !session.closed || !challenge.closed {
		t.Error("Close should release both clients")
	}
}

func TestChallengeFailureIsNotFound(t *testing.T) {
	session := &fakeFetcher{fn: func(u string) (*Response, error) {
		return resp(403, "", "Attention Required! | Cloudflare"), nil
	}}
	challenge := &fakeFetcher{fn: func(u string) (*Response, error) {
		return nil, errors.New("connection reset")
	}}
	p, _ := newTestProber(session, challenge)

	r := p.FolderExists(context.Background(), "https", "example.com", "files")
	if r.Outcome != OutcomeNotFound || r.Kind != KindChallenge || r.Reason != ReasonChallengeFailed {
		t.Fatalf("expected not found after challenge failure, got %+v", r)
	}
	if !r.Responded() {
		t.Error("server did respond to the first attempt")
	}
}

func TestChallengeClientCreatedLazily(t *testing.T) {
	created := 0
	session := &fakeFetcher{fn: func(u string) (*Response, error) {
		return resp(404, "", ""), nil
	}}
	p := NewProber(Config{
		Session:      session,
		NewChallenge: func() Fetcher { created++; return nil },
		UserAgents:   testAgents,
		Folder:       "journals",
	})

	p.FolderExists(context.Background(), "https", "example.com", "files")
	p.Close()
	if created != 0 {
		t.Errorf("challenge client should not be created without a challenge, created %d", created)
	}
}

func TestBuildURL(t *testing.T) {
	testCases := []struct {
		scheme   string
		host     string
		slash    bool
		segments []string
		expected string
	}{
		{"https", "example.com", false, []string{"files", "journals"}, "https://example.com/files/journals"},
		{"https", "Example.COM", true, []string{"/ojs/files/", "journals"}, "https://example.com/ojs/files/journals/"},
		{"http", "example.com:80", true, []string{"files", "journals"}, "http://example.com/files/journals/"},
		{"http", "127.0.0.1:8080", false, []string{"a//b", "journals"}, "http://127.0.0.1:8080/a/b/journals"},
	}

	for _, tc := range testCases {
		if got := BuildURL(tc.scheme, tc.host, tc.slash, tc.segments...); got != tc.expected {
			t.Errorf("BuildURL(%s, %s, %v, %v) = %q, expected %q", tc.scheme, tc.host, tc.slash, tc.segments, got, tc.expected)
		}
	}
}

func TestSessionAgainstServer(t *testing.T) {
	var gotUA, gotAccept string
	var gotClose bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotClose = r.Close
		switch r.URL.Path {
		case "/files/journals":
			http.Redirect(w, r, "/files/journals/", http.StatusMovedPermanently)
		case "/files/journals/":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	o := options.Default()
	session, err := NewSession(o)
	if err != nil {
		t.Fatal(err)
	}
	p := NewProber(Config{
		Session:      session,
		NewChallenge: func() Fetcher { return NewChallengeClient(o) },
		UserAgents:   o.UserAgents,
		Folder:       "journals",
		Marker:       "journal",
	})
	defer p.Close()

	scheme, host := "http", strings.TrimPrefix(ts.URL, "http://")

	exists := p.FolderExists(context.Background(), scheme, host, "files")
	if exists.Outcome != OutcomeFound {
		t.Fatalf("expected folder to exist, got %+v", exists)
	}
	if gotUA != UserAgent(o.UserAgents, host) || gotAccept != "*/*" || !gotClose {
		t.Errorf("unexpected request headers: ua=%q accept=%q close=%v", gotUA, gotAccept, gotClose)
	}

	dir := p.CheckDirectory(context.Background(), scheme, host, "files")
	if dir.Outcome != OutcomeFound || dir.Reason != ReasonForbidden {
		t.Fatalf("expected forbidden directory, got %+v", dir)
	}

	missing := p.FolderExists(context.Background(), scheme, host, "uploads")
	if missing.Outcome != OutcomeNotFound {
		t.Fatalf("expected missing folder, got %+v", missing)
	}
}

func TestHTTPSOnPlainServerDowngrades(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/journals" {
			http.Redirect(w, r, "/files/journals/", http.StatusMovedPermanently)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	o := options.Default()
	session, err := NewSession(o)
	if err != nil {
		t.Fatal(err)
	}
	p, results := newTestProber(session, nil)
	defer p.Close()

	host := strings.TrimPrefix(ts.URL, "http://")
	res := p.FolderExists(context.Background(), "https", host, "files")

	if res.Outcome != OutcomeFound || !res.Downgraded {
		t.Fatalf("expected downgraded finding, got %+v", res)
	}
	if res.URL != ts.URL+"/files/journals" {
		t.Errorf("expected http URL, got %q", res.URL)
	}
	if len(*results) == 0 || (*results)[0].Kind != KindTLS {
		t.Errorf("expected first attempt to be reported as a TLS failure, got %+v", *results)
	}
}

func TestChallengeClientTruncatesLargeBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 4096)))
	}))
	defer ts.Close()

	o := options.Default()
	o.MaxBodySize = 100
	c := NewChallengeClient(o)
	defer c.Close()

	r, err := c.Get(context.Background(), ts.URL+"/files/journals/", nil)
	if err != nil {
		t.Fatalf("large body should not fail the request: %v", err)
	}
	if r.StatusCode != http.StatusOK || len(r.Body) != 100 {
		t.Errorf("expected body truncated to 100 bytes, got %d bytes with status %d", len(r.Body), r.StatusCode)
	}
}

func TestChallengeClientHonorsCancel(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c := NewChallengeClient(options.Default())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.Get(ctx, ts.URL+"/files/journals", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancel took %s", elapsed)
	}
}

func TestChallengeClientAgainstServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") == "" {
			t.Errorf("challenge client should send browser headers")
		}
		w.Header().Set("Location", "/x/journals/")
		w.WriteHeader(http.StatusFound)
	}))
	defer ts.Close()

	c := NewChallengeClient(options.Default())
	defer c.Close()

	r, err := c.Get(context.Background(), ts.URL+"/x/journals", http.Header{"User-Agent": {"ua"}})
	if err != nil {
		t.Fatalf("challenge client request failed: %v", err)
	}
	if r.StatusCode != http.StatusFound || !r.IsRedirect() {
		t.Errorf("expected unfollowed redirect, got %d", r.StatusCode)
	}
}

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"nil", nil, KindNone},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), KindCanceled},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"unknown authority", x509.UnknownAuthorityError{}, KindTLS},
		{"tls message", errors.New("remote error: tls: handshake failure"), KindTLS},
		{"http on https port", fmt.Errorf("Get \"https://example.com\": %w", http.ErrSchemeMismatch), KindTLS},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), KindTransport},
	}

	for _, tc := range testCases {
		if got := ClassifyError(tc.err); got != tc.kind {
			t.Errorf("%s: ClassifyError = %s, expected %s", tc.name, got, tc.kind)
		}
	}
}
