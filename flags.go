// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/root4loot/pathhunt/pkg/options"
)

// short flag aliases mapped to the long names used when merging a config file
var aliases = map[string]string{
	"m":  "mode",
	"c":  "concurrency",
	"to": "timeout",
	"pt": "pma-timeout",
	"f":  "folder",
	"rp": "root-paths",
	"ua": "user-agent",
	"p":  "proxy",
	"r":  "resolvers",
	"ih": "include",
	"eh": "exclude",
	"l":  "log",
	"v":  "verbose",
	"vv": "verbose",
	"s":  "silence",
}

func (c *CLI) banner() {
	fmt.Println("\npathhunt", version, "by", author)
}

func (c *CLI) usage() {
	w := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	d := options.Default()

	fmt.Fprintln(w, "Usage:\t"+os.Args[0]+" [options] -i <domains file>")

	fmt.Fprintln(w, "\nINPUT:")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(%s)\n", "-t", "--target", "target domain", "comma-separated")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(%s)\n", "-i", "--infile", "file containing domains", "one per line")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(%s)\n", "-ih", "--include", "only scan these hosts", "comma-separated")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(%s)\n", "-eh", "--exclude", "never scan these hosts", "comma-separated")
	fmt.Fprintf(w, "\t%s\t%s\t%s\n", "", "--config", "YAML config file (flags take precedence)")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\n", "-np", "--no-prompt", "never prompt for missing values")

	fmt.Fprintln(w, "\nSCAN:")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %s)\n", "-m", "--mode", "folder or phpmyadmin", d.Mode)
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %s)\n", "-f", "--folder", "folder to look for", d.Folder)
	fmt.Fprintf(w, "\t%s\t%s\t%s\t(Default: %s)\n", "", "--marker", "word that disqualifies near-empty pages", d.Marker)
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %v)\n", "-rp", "--root-paths", "root paths to probe", d.RootPaths)

	fmt.Fprintln(w, "\nCONFIGURATIONS:")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %v)\n", "-c", "--concurrency", "number of domains scanned at once", d.Concurrency)
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %v seconds)\n", "-to", "--timeout", "folder probe timeout", d.Timeout)
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %v seconds)\n", "-pt", "--pma-timeout", "phpMyAdmin probe timeout", d.PMATimeout)
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %s)\n", "-ua", "--user-agent", "use a single user agent", "rotating pool")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\n", "-p", "--proxy", "proxy URL")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(%s)\n", "-r", "--resolvers", "DNS resolvers", "comma-separated")

	fmt.Fprintln(w, "\nOUTPUT:")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\n", "-o", "--outfile", "file for found paths")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\n", "-n", "--notfound", "file for domains without findings")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\t(Default: %s)\n", "-l", "--log", "debug log file", d.LogFile)
	fmt.Fprintf(w, "\t%s\t%s\t%s\n", "-v", "", "verbose console logging")
	fmt.Fprintf(w, "\t%s\t%s\t%s\n", "-vv", "", "debug console logging")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\n", "-s", "--silence", "only print found paths")
	fmt.Fprintf(w, "\t%s\t%s\t%s\n", "", "--version", "display version")
	fmt.Fprintf(w, "\t%s,\t%s\t%s\n", "-h", "--help", "display help")

	w.Flush()
}

func (c *CLI) parseFlags() {
	opts := options.Default()
	var userAgent, resolvers string
	var verbose, debug bool

	// INPUT
	flag.StringVar(&opts.CLI.Target, "target", "", "")
	flag.StringVar(&opts.CLI.Target, "t", "", "")
	flag.StringVar(&opts.CLI.Infile, "infile", "", "")
	flag.StringVar(&opts.CLI.Infile, "i", "", "")
	flag.StringVar(&opts.CLI.Include, "include", "", "")
	flag.StringVar(&opts.CLI.Include, "ih", "", "")
	flag.StringVar(&opts.CLI.Exclude, "exclude", "", "")
	flag.StringVar(&opts.CLI.Exclude, "eh", "", "")
	flag.StringVar(&opts.CLI.Config, "config", "", "")
	flag.BoolVar(&opts.CLI.NoPrompt, "no-prompt", false, "")
	flag.BoolVar(&opts.CLI.NoPrompt, "np", false, "")

	// SCAN
	flag.StringVar(&opts.Mode, "mode", opts.Mode, "")
	flag.StringVar(&opts.Mode, "m", opts.Mode, "")
	flag.StringVar(&opts.Folder, "folder", opts.Folder, "")
	flag.StringVar(&opts.Folder, "f", opts.Folder, "")
	flag.StringVar(&opts.Marker, "marker", opts.Marker, "")
	flag.StringVar(&opts.CLI.RootPaths, "root-paths", "", "")
	flag.StringVar(&opts.CLI.RootPaths, "rp", "", "")

	// CONFIGURATIONS
	flag.IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "")
	flag.IntVar(&opts.Concurrency, "c", opts.Concurrency, "")
	flag.IntVar(&opts.Timeout, "timeout", opts.Timeout, "")
	flag.IntVar(&opts.Timeout, "to", opts.Timeout, "")
	flag.IntVar(&opts.PMATimeout, "pma-timeout", opts.PMATimeout, "")
	flag.IntVar(&opts.PMATimeout, "pt", opts.PMATimeout, "")
	flag.StringVar(&userAgent, "user-agent", "", "")
	flag.StringVar(&userAgent, "ua", "", "")
	flag.StringVar(&opts.Proxy, "proxy", "", "")
	flag.StringVar(&opts.Proxy, "p", "", "")
	flag.StringVar(&resolvers, "resolvers", "", "")
	flag.StringVar(&resolvers, "r", "", "")

	// OUTPUT
	flag.StringVar(&opts.CLI.Outfile, "outfile", "", "")
	flag.StringVar(&opts.CLI.Outfile, "o", "", "")
	flag.StringVar(&opts.CLI.NotFoundFile, "notfound", "", "")
	flag.StringVar(&opts.CLI.NotFoundFile, "n", "", "")
	flag.StringVar(&opts.LogFile, "log", opts.LogFile, "")
	flag.StringVar(&opts.LogFile, "l", opts.LogFile, "")
	flag.BoolVar(&verbose, "v", false, "")
	flag.BoolVar(&debug, "vv", false, "")
	flag.BoolVar(&opts.Silence, "silence", false, "")
	flag.BoolVar(&opts.Silence, "s", false, "")
	flag.BoolVar(&opts.CLI.Version, "version", false, "")
	flag.BoolVar(&opts.CLI.Help, "help", false, "")
	flag.BoolVar(&opts.CLI.Help, "h", false, "")

	flag.Usage = func() {
		c.banner()
		c.usage()
	}

	flag.Parse()

	c.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := aliases[name]; ok {
			name = long
		}
		c.set[name] = true
	})

	if userAgent != "" {
		opts.UserAgents = []string{userAgent}
	}
	if resolvers != "" {
		opts.Resolvers = options.SplitList(resolvers)
	}
	if opts.CLI.RootPaths != "" {
		opts.RootPaths = options.SplitList(opts.CLI.RootPaths)
	}
	opts.Include = options.SplitList(opts.CLI.Include)
	opts.Exclude = options.SplitList(opts.CLI.Exclude)

	switch {
	case debug:
		opts.Verbose = 2
	case verbose:
		opts.Verbose = 1
	}

	c.opts = *opts
}

// isSet reports whether the flag (by long name) was given on the command line
func (c *CLI) isSet(name string) bool {
	return c.set[name]
}
