// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/root4loot/goscope"
	"github.com/root4loot/pathhunt/pkg/log"
	"github.com/root4loot/pathhunt/pkg/options"
	"github.com/root4loot/pathhunt/pkg/pma"
	"github.com/root4loot/pathhunt/pkg/probe"
	"github.com/root4loot/pathhunt/pkg/sink"
	"github.com/root4loot/pathhunt/pkg/util"
)

// EventKind tells the consumer of Results what a Result describes
type EventKind int

const (
	EventProbe      EventKind = iota // a single probe finished or is being retried
	EventSuccess                     // the domain produced a finding
	EventNotFound                    // the domain ended without findings
	EventOutOfScope                  // the domain was filtered out
	EventUnexpected                  // the domain task panicked
)

type Runner struct {
	Options *options.Options
	Results chan Result
	Scope   *goscope.Scope
	Sink    *sink.Sink

	scopeMu    sync.Mutex
	newSession func(o *options.Options) (probe.Fetcher, error)
	found      atomic.Int64
	notFound   atomic.Int64
	skipped    atomic.Int64
}

type Result struct {
	Domain string
	Worker string
	Kind   EventKind
	Probe  probe.Result
	Err    error
}

// Summary counts domains by how they ended
type Summary struct {
	Total       int
	Found       int
	NotFound    int
	OutOfScope  int
	Interrupted bool
}

// NewRunner creates a new runner writing to s.
// Options are defaulted and validated here.
func NewRunner(o *options.Options, s *sink.Sink) (*Runner, error) {
	o.ApplyDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		Options: o,
		Results: make(chan Result, o.Concurrency*4),
		Sink:    s,
		newSession: func(o *options.Options) (probe.Fetcher, error) {
			session, err := probe.NewSession(o)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
	}
	r.initializeScope()
	return r, nil
}

// Subject describes what the found file lists
func (r *Runner) Subject() string {
	if r.Options.Mode == options.ModePhpMyAdmin {
		return "phpMyAdmin"
	}
	return "<root>/" + r.Options.Folder
}

// Run scans every domain with a fixed pool of workers and closes Results when done.
// Domains not started before ctx is canceled are dropped.
func (r *Runner) Run(ctx context.Context, domains ...string) Summary {
	defer close(r.Results)

	log.Debugf("number of domains: %d", len(domains))
	if r.Options.Mode == options.ModeFolder && len(r.Options.RootPaths) == 0 {
		log.Warning("No root paths configured, every domain will be recorded as not found")
	}

	workers := r.Options.Concurrency
	if len(domains) < workers {
		workers = len(domains)
	}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	c_domains := make(chan string)
	go func() {
		defer close(c_domains)
		for _, d := range domains {
			select {
			case c_domains <- d:
			case <-feedCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	started := 0
	for i := 0; i < workers; i++ {
		w, err := r.newWorker(fmt.Sprintf("worker-%d", i+1))
		if err != nil {
			log.Errorf("Could not start worker: %v", err)
			continue
		}
		started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer w.close()
			for domain := range c_domains {
				if ctx.Err() != nil {
					continue
				}
				w.process(ctx, domain)
			}
		}()
	}
	if started == 0 && len(domains) > 0 {
		stopFeed()
		log.Errorf("No worker could be started, %d domains were not scanned", len(domains))
	}
	wg.Wait()

	summary := Summary{
		Total:       len(domains),
		Found:       int(r.found.Load()),
		NotFound:    int(r.notFound.Load()),
		OutOfScope:  int(r.skipped.Load()),
		Interrupted: ctx.Err() != nil,
	}
	if summary.Interrupted {
		log.Warning("Scan interrupted by user")
	} else {
		log.Info("Scanning completed")
	}
	return summary
}

// worker owns the clients used for every domain it is handed
type worker struct {
	r      *Runner
	name   string
	logger *log.WorkerLogger
	prober *probe.Prober
	finder *pma.Finder
	domain string
}

func (r *Runner) newWorker(name string) (*worker, error) {
	o := r.Options
	w := &worker{r: r, name: name, logger: log.Worker(name)}

	switch o.Mode {
	case options.ModePhpMyAdmin:
		finder, err := pma.NewFinder(o)
		if err != nil {
			return nil, err
		}
		finder.Logger = w.logger
		w.finder = finder
	default:
		session, err := r.newSession(o)
		if err != nil {
			return nil, err
		}
		w.prober = probe.NewProber(probe.Config{
			Session:      session,
			NewChallenge: func() probe.Fetcher { return probe.NewChallengeClient(o) },
			UserAgents:   o.UserAgents,
			Folder:       o.Folder,
			Marker:       o.Marker,
			Logger:       w.logger,
			OnResult: func(res probe.Result) {
				w.send(Result{Kind: EventProbe, Probe: res})
			},
		})
	}
	return w, nil
}

func (w *worker) close() {
	if w.prober != nil {
		w.prober.Close()
	}
	if w.finder != nil {
		w.finder.Close()
	}
	w.logger.Debugf("Cleaned up worker resources")
}

func (w *worker) send(res Result) {
	res.Domain = w.domain
	res.Worker = w.name
	w.r.Results <- res
}

// process runs one domain to completion and records how it ended
func (w *worker) process(ctx context.Context, domain string) {
	w.domain = domain

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%v", rec)
			w.logger.Errorf("Fatal error processing %s: %v\n%s", domain, rec, debug.Stack())
			w.notFound(domain, probe.KindUnexpected.String(), err.Error())
			w.send(Result{Kind: EventUnexpected, Err: err})
		}
	}()

	if !w.r.inScope(domain) {
		w.logger.Debugf("Skipping out of scope domain: %s", domain)
		w.r.skipped.Add(1)
		w.send(Result{Kind: EventOutOfScope})
		return
	}

	w.logger.Infof("Processing domain: %s", domain)
	if w.r.Options.Mode == options.ModePhpMyAdmin {
		w.findPhpMyAdmin(ctx, domain)
		return
	}
	w.hunt(ctx, domain)
}

// hunt checks every root path and stops at the first exposed directory
func (w *worker) hunt(ctx context.Context, domain string) {
	scheme, host := util.NormalizeDomain(domain)

	var failure probe.Result
	responded := false
	track := func(res probe.Result) {
		if res.Responded() {
			responded = true
		} else if res.Err != nil {
			failure = res
		}
	}

	for _, root := range w.r.Options.RootPaths {
		if ctx.Err() != nil {
			return
		}

		exists := w.prober.FolderExists(ctx, scheme, host, root)
		track(exists)
		if exists.Outcome != probe.OutcomeFound {
			continue
		}

		dir := w.prober.CheckDirectory(ctx, scheme, host, root)
		track(dir)
		if dir.Outcome != probe.OutcomeFound {
			continue
		}

		if err := w.r.Sink.Found(dir.URL); err != nil {
			w.logger.Errorf("Could not record %s: %v", dir.URL, err)
		}
		w.r.found.Add(1)
		w.logger.Infof("Successfully found: %s", dir.URL)
		w.send(Result{Kind: EventSuccess, Probe: dir})
		return
	}

	if ctx.Err() != nil {
		return
	}

	// annotate only when the host never answered
	var kind, message string
	if !responded && failure.Err != nil {
		kind, message = failure.Kind.String(), probe.ShortError(failure.Err)
	}
	w.notFound(domain, kind, message)
	w.send(Result{Kind: EventNotFound, Probe: failure})
}

func (w *worker) findPhpMyAdmin(ctx context.Context, domain string) {
	u, err := w.finder.Find(ctx, domain)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		// an unusable domain is recorded bare, like a domain with no panel
		w.logger.Errorf("phpMyAdmin path finder error for %s: %v", domain, err)
		w.notFound(domain, "", "")
		w.send(Result{Kind: EventNotFound, Err: err, Probe: probe.Result{Reason: probe.ReasonPhpMyAdminMissing}})
		return
	}

	if u == "" {
		w.notFound(domain, "", "")
		w.send(Result{Kind: EventNotFound, Probe: probe.Result{Reason: probe.ReasonPhpMyAdminMissing}})
		return
	}

	if err := w.r.Sink.Found(u); err != nil {
		w.logger.Errorf("Could not record %s: %v", u, err)
	}
	w.r.found.Add(1)
	w.send(Result{Kind: EventSuccess, Probe: probe.Result{URL: u, Outcome: probe.OutcomeFound, Reason: probe.ReasonPhpMyAdminFound, StatusCode: 200}})
}

func (w *worker) notFound(domain, kind, message string) {
	w.logger.Infof("Not found: %s", domain)
	if err := w.r.Sink.NotFound(domain, kind, message); err != nil {
		w.logger.Errorf("Could not record %s: %v", domain, err)
	}
	w.r.notFound.Add(1)
}
