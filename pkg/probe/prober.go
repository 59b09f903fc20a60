// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/purell"
	"github.com/root4loot/pathhunt/pkg/log"
	"github.com/root4loot/pathhunt/pkg/util"
)

// Result is the typed outcome of one probe
type Result struct {
	URL        string
	Outcome    Outcome
	Reason     Reason
	StatusCode int
	Location   string
	Title      string
	Kind       ErrorKind
	Err        error
	Downgraded bool // answered over http after a TLS failure on https
}

// Responded reports whether the server produced any HTTP response
func (r Result) Responded() bool {
	return r.StatusCode != 0
}

// Config describes a per-worker prober
type Config struct {
	Session      Fetcher        // first-attempt client
	NewChallenge func() Fetcher // builds the challenge client on first use
	UserAgents   []string
	Folder       string // folder looked for under each root path
	Marker       string // product word that disqualifies a near-empty body
	Logger       *log.WorkerLogger
	OnResult     func(Result) // receives intermediate notices and final results
}

// Prober runs the folder existence and directory checks for one worker
type Prober struct {
	cfg       Config
	challenge Fetcher
}

// NewProber returns a prober owning the given clients
func NewProber(cfg Config) *Prober {
	if cfg.Logger == nil {
		cfg.Logger = log.Worker("main")
	}
	if cfg.OnResult == nil {
		cfg.OnResult = func(Result) {}
	}
	return &Prober{cfg: cfg}
}

// Close releases both clients
func (p *Prober) Close() {
	if p.cfg.Session != nil {
		p.cfg.Session.Close()
	}
	if p.challenge != nil {
		p.challenge.Close()
		p.cfg.Logger.Debugf("Closed challenge client")
	}
}

const normalizationFlags purell.NormalizationFlags = purell.FlagLowercaseScheme |
	purell.FlagLowercaseHost |
	purell.FlagRemoveDefaultPort |
	purell.FlagRemoveDotSegments |
	purell.FlagRemoveDuplicateSlashes

// BuildURL joins scheme, host and path segments into a normalized URL
func BuildURL(scheme, host string, trailingSlash bool, segments ...string) string {
	raw := scheme + "://" + host + util.JoinPath(segments...)
	if trailingSlash {
		raw += "/"
	}
	normalized, err := purell.NormalizeURLString(raw, normalizationFlags)
	if err != nil {
		return raw
	}
	return normalized
}

// FolderExists checks whether scheme://host/root/folder redirects to the folder with a trailing slash
func (p *Prober) FolderExists(ctx context.Context, scheme, host, root string) Result {
	u := BuildURL(scheme, host, false, root, p.cfg.Folder)
	p.cfg.Logger.Debugf("Checking folder existence: %s", u)

	resp, res, ok := p.fetch(ctx, u, host)
	if !ok {
		if res.Kind == KindTLS && scheme == "https" {
			p.downgradeNotice(u, res)
			r := p.FolderExists(ctx, "http", host, root)
			r.Downgraded = true
			return r
		}
		p.logFailure(res)
		return p.emit(res)
	}
	if resp == nil {
		res.Outcome, res.Reason = OutcomeNotFound, ReasonChallengeFailed
		return p.emit(res)
	}

	outcome, reason := ClassifyFolder(resp, p.cfg.Folder)
	r := Result{
		URL:        u,
		Outcome:    outcome,
		Reason:     reason,
		StatusCode: resp.StatusCode,
		Location:   resp.Location(),
	}
	if outcome == OutcomeFound {
		p.cfg.Logger.Infof("Folder exists (%s): %s", reason, u)
	} else {
		p.cfg.Logger.Debugf("Folder not found: %s", u)
	}
	return p.emit(r)
}

// CheckDirectory checks whether scheme://host/root/folder/ is an exposed directory
func (p *Prober) CheckDirectory(ctx context.Context, scheme, host, root string) Result {
	u := BuildURL(scheme, host, true, root, p.cfg.Folder)
	p.cfg.Logger.Debugf("Checking directory: %s", u)

	resp, res, ok := p.fetch(ctx, u, host)
	if !ok {
		if res.Kind == KindTLS && scheme == "https" {
			p.downgradeNotice(u, res)
			r := p.CheckDirectory(ctx, "http", host, root)
			r.Downgraded = true
			return r
		}
		p.logFailure(res)
		return p.emit(res)
	}
	if resp == nil {
		res.Outcome, res.Reason = OutcomeSkip, ReasonChallengeFailed
		return p.emit(res)
	}

	outcome, reason := ClassifyDirectory(resp.StatusCode, resp.Body, p.cfg.Marker)
	r := Result{
		URL:        u,
		Outcome:    outcome,
		Reason:     reason,
		StatusCode: resp.StatusCode,
		Location:   resp.Location(),
	}
	switch outcome {
	case OutcomeFound:
		p.cfg.Logger.Infof("Exposed directory (%s): %s", reason, u)
	default:
		r.Title = PageTitle(resp.Body)
		p.cfg.Logger.Debugf("Skipped (%s): %s", reason, u)
	}
	return p.emit(r)
}

// fetch issues the first attempt and, on an anti-bot page, one challenge retry.
// ok is false when the first attempt failed at transport level; res then holds the failure.
// A nil response with ok set means the challenge retry failed.
func (p *Prober) fetch(ctx context.Context, u, host string) (resp *Response, res Result, ok bool) {
	header := p.header(host)

	resp, err := p.cfg.Session.Get(ctx, u, header)
	if err != nil {
		return nil, p.failure(u, err), false
	}

	if !IsChallenge(resp.Body) {
		return resp, Result{}, true
	}

	p.emit(Result{URL: u, Outcome: OutcomeRetry, Reason: ReasonChallenge, StatusCode: resp.StatusCode})
	p.cfg.Logger.Infof("CloudFlare challenge detected for %s", u)

	status := resp.StatusCode
	resp, err = p.challengeClient().Get(ctx, u, header)
	if err != nil {
		p.cfg.Logger.Errorf("CloudFlare bypass failed for %s: %v", u, err)
		return nil, Result{URL: u, StatusCode: status, Kind: KindChallenge, Err: err}, true
	}
	return resp, Result{}, true
}

func (p *Prober) header(host string) http.Header {
	return http.Header{
		"User-Agent": {UserAgent(p.cfg.UserAgents, host)},
		"Accept":     {"*/*"},
		"Connection": {"close"},
	}
}

func (p *Prober) challengeClient() Fetcher {
	if p.challenge == nil {
		p.challenge = p.cfg.NewChallenge()
		p.cfg.Logger.Debugf("Created new challenge client")
	}
	return p.challenge
}

func (p *Prober) failure(u string, err error) Result {
	kind := ClassifyError(err)
	r := Result{URL: u, Outcome: OutcomeError, Kind: kind, Err: err, Reason: ReasonTransportError}

	switch kind {
	case KindTLS:
		r.Reason = ReasonTLSError
	case KindTimeout:
		r.Reason = ReasonTimeout
	}
	return r
}

func (p *Prober) logFailure(r Result) {
	switch r.Kind {
	case KindTLS:
		p.cfg.Logger.Errorf("SSL error for %s: %v", r.URL, r.Err)
	case KindTimeout:
		p.cfg.Logger.Errorf("Timeout for %s: %v", r.URL, r.Err)
	case KindCanceled:
		p.cfg.Logger.Debugf("Canceled %s", r.URL)
	default:
		p.cfg.Logger.Errorf("Request error for %s: %v", r.URL, r.Err)
	}
}

func (p *Prober) downgradeNotice(u string, res Result) {
	p.cfg.Logger.Warningf("SSL error for %s, trying HTTP", u)
	p.emit(Result{URL: u, Outcome: OutcomeRetry, Reason: ReasonTLSFallback, Kind: res.Kind, Err: res.Err})
}

func (p *Prober) emit(r Result) Result {
	p.cfg.OnResult(r)
	return r
}

// ShortError trims an error message for single-line output
func ShortError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
