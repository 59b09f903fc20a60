// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package options

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/root4loot/goutils/sliceutil"
	"github.com/root4loot/goutils/urlutil"
	"gopkg.in/yaml.v3"
)

const (
	ModeFolder     = "folder"
	ModePhpMyAdmin = "phpmyadmin"
)

type Options struct {
	Mode        string   `yaml:"mode"`          // scan mode: folder or phpmyadmin
	Concurrency int      `yaml:"concurrency"`   // number of domains scanned at once
	Timeout     int      `yaml:"timeout"`       // folder probe timeout (in seconds)
	PMATimeout  int      `yaml:"pma_timeout"`   // phpMyAdmin probe timeout (in seconds)
	Folder      string   `yaml:"folder"`        // folder looked for under every root path
	Marker      string   `yaml:"marker"`        // product word that disqualifies a near-empty listing
	RootPaths   []string `yaml:"root_paths"`    // directory prefixes to probe
	PMAPaths    []string `yaml:"pma_paths"`     // phpMyAdmin URL suffixes
	UserAgents  []string `yaml:"user_agents"`   // user agent pool
	Resolvers   []string `yaml:"resolvers"`     // resolvers to use for DNS resolution
	Proxy       string   `yaml:"proxy"`         // proxy to use for requests
	Include     []string `yaml:"include"`       // only scan these hosts (if set)
	Exclude     []string `yaml:"exclude"`       // never scan these hosts
	LogFile     string   `yaml:"log_file"`      // debug log
	MaxBodySize int64    `yaml:"max_body_size"` // bytes read per response
	Verbose     int      `yaml:"verbose"`       // verbosity level
	Silence     bool     `yaml:"silence"`       // suppress output from console
	CLI         CLI      `yaml:"-"`             // CLI options
}

type CLI struct {
	Config       string // YAML config file
	Target       string // target domains (comma separated)
	Infile       string // file containing domains (newline separated)
	Outfile      string // file to write found paths
	NotFoundFile string // file to write domains without findings
	Include      string // hosts to be included (comma separated)
	Exclude      string // hosts to be excluded (comma separated)
	RootPaths    string // root paths (comma separated)
	NoPrompt     bool   // never prompt for missing values
	Version      bool   // print version
	Help         bool   // print help
}

var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/117.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_2_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.4 Safari/605.1.15",
	"Mozilla/5.0 (Linux; Android 13; SM-G996B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/117.0.2045.47",
}

var DefaultRootPaths = []string{
	"files",
	"uploads",
	"ojs/files",
}

var DefaultPMAPaths = []string{
	"/phpmyadmin/index.php",
	"/phpMyAdmin/index.php",
	"/pma/index.php",
	"/PMA/index.php",
	"/myadmin/index.php",
	"/MyAdmin/index.php",
	"/sql/index.php",
	"/db/index.php",
	"/database/index.php",
	"/mysql/index.php",
	"/admin/phpmyadmin/index.php",
	"/admin/pma/index.php",
	"/admin/db/index.php",
	"/dbadmin/index.php",
	"/websql/index.php",
	"/phpmyadmin4/index.php",
	"/phpmyadmin3/index.php",
	"/php-my-admin/index.php",
	"/sqladmin/index.php",
	"/mysqladmin/index.php",
	"/typo3/phpmyadmin/index.php",
	"/xampp/phpmyadmin/index.php",
	"/tools/phpmyadmin/index.php",
	"/claroline/phpMyAdmin/index.php",
	"/_phpmyadmin/index.php",
	"/db/phpmyadmin/index.php",
	"/admin/phpMyAdmin/index.php",
	"/phpma/index.php",
}

// Default returns the default options
func Default() *Options {
	return &Options{
		Mode:        ModeFolder,
		Concurrency: 10,
		Timeout:     15,
		PMATimeout:  5,
		Folder:      "journals",
		Marker:      "journal",
		RootPaths:   append([]string(nil), DefaultRootPaths...),
		PMAPaths:    append([]string(nil), DefaultPMAPaths...),
		UserAgents:  append([]string(nil), DefaultUserAgents...),
		LogFile:     "debug.log",
		MaxBodySize: 5 * 1024 * 1024,
	}
}

// ApplyDefaults fills zero values with defaults
func (o *Options) ApplyDefaults() {
	d := Default()

	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.PMATimeout <= 0 {
		o.PMATimeout = d.PMATimeout
	}
	if o.Folder == "" {
		o.Folder = d.Folder
	}
	if o.Marker == "" {
		o.Marker = d.Marker
	}
	if o.RootPaths == nil {
		o.RootPaths = d.RootPaths
	}
	if o.PMAPaths == nil {
		o.PMAPaths = d.PMAPaths
	}
	if len(o.UserAgents) == 0 {
		o.UserAgents = d.UserAgents
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = d.MaxBodySize
	}

	o.Folder = strings.Trim(o.Folder, "/")
	o.RootPaths = cleanList(o.RootPaths)
	o.PMAPaths = cleanList(o.PMAPaths)
	o.Include = sliceutil.Unique(cleanList(o.Include))
	o.Exclude = sliceutil.Unique(cleanList(o.Exclude))
}

// Validate reports options that cannot be used for a scan
func (o *Options) Validate() error {
	if o.Mode != ModeFolder && o.Mode != ModePhpMyAdmin {
		return fmt.Errorf("unknown mode %q (must be %s or %s)", o.Mode, ModeFolder, ModePhpMyAdmin)
	}
	if o.Concurrency < 1 || o.Timeout < 1 || o.PMATimeout < 1 {
		return errors.New("concurrency and timeouts must be greater than 0")
	}
	if o.Mode == ModePhpMyAdmin && len(o.PMAPaths) == 0 {
		return errors.New("no phpMyAdmin paths configured")
	}
	if strings.Contains(o.CLI.Include, ", ") || strings.Contains(o.CLI.Exclude, ", ") {
		return errors.New("host list must not contain space (must be comma-separated)")
	}
	if _, err := o.ProxyURL(); err != nil {
		return err
	}
	return nil
}

// ProxyURL parses Proxy, assuming http when no scheme is given.
// It returns nil when no proxy is set.
func (o *Options) ProxyURL() (*url.URL, error) {
	if o.Proxy == "" {
		return nil, nil
	}
	proxy := o.Proxy
	if !urlutil.HasScheme(proxy) {
		proxy = "http://" + proxy
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("parse proxy URL: %w", err)
	}
	return u, nil
}

// LoadFile reads YAML options from path on top of the defaults
func LoadFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	o := Default()
	if err := yaml.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return o, nil
}

// Merge copies every field of file into o unless its flag was set on the command line.
// isSet receives the long flag name.
func (o *Options) Merge(file *Options, isSet func(name string) bool) {
	if !isSet("mode") {
		o.Mode = file.Mode
	}
	if !isSet("concurrency") {
		o.Concurrency = file.Concurrency
	}
	if !isSet("timeout") {
		o.Timeout = file.Timeout
	}
	if !isSet("pma-timeout") {
		o.PMATimeout = file.PMATimeout
	}
	if !isSet("folder") {
		o.Folder = file.Folder
	}
	if !isSet("marker") {
		o.Marker = file.Marker
	}
	if !isSet("root-paths") {
		o.RootPaths = file.RootPaths
	}
	if !isSet("user-agent") {
		o.UserAgents = file.UserAgents
	}
	if !isSet("proxy") {
		o.Proxy = file.Proxy
	}
	if !isSet("resolvers") {
		o.Resolvers = file.Resolvers
	}
	if !isSet("include") {
		o.Include = file.Include
	}
	if !isSet("exclude") {
		o.Exclude = file.Exclude
	}
	if !isSet("log") {
		o.LogFile = file.LogFile
	}
	if !isSet("verbose") {
		o.Verbose = file.Verbose
	}
	if !isSet("silence") {
		o.Silence = file.Silence
	}
	o.PMAPaths = file.PMAPaths
	o.MaxBodySize = file.MaxBodySize
}

// SplitList splits a comma-separated flag value
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return cleanList(strings.Split(s, ","))
}

// cleanList trims entries and drops blanks and repeats, keeping order
func cleanList(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
