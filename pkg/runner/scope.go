// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package runner

import (
	"github.com/root4loot/goscope"
	"github.com/root4loot/pathhunt/pkg/util"
)

// initializeScope loads the include and exclude rules
func (r *Runner) initializeScope() {
	if r.Scope == nil {
		r.Scope = goscope.NewScope()
	}

	for _, include := range r.Options.Include {
		r.Scope.AddInclude(include)
	}

	for _, exclude := range r.Options.Exclude {
		r.Scope.AddExclude(exclude)
	}
}

// inScope reports whether a raw input domain should be scanned.
// Without include rules every domain is its own include, so only excludes apply.
func (r *Runner) inScope(domain string) bool {
	if len(r.Options.Include) == 0 && len(r.Options.Exclude) == 0 {
		return true
	}

	host := hostname(domain)
	if host == "" {
		return true
	}

	r.scopeMu.Lock()
	defer r.scopeMu.Unlock()

	if len(r.Options.Include) == 0 {
		r.Scope.AddInclude(host)
	}
	return r.Scope.IsTargetInScope(host)
}

// hostname strips scheme, path and port from an input domain
func hostname(domain string) string {
	_, host := util.NormalizeDomain(domain)
	for i, c := range host {
		if c == '/' || c == ':' || c == '?' {
			return host[:i]
		}
	}
	return host
}
