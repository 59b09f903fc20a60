// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/root4loot/pathhunt/pkg/log"
	"github.com/root4loot/pathhunt/pkg/options"
	"github.com/root4loot/pathhunt/pkg/probe"
	"github.com/root4loot/pathhunt/pkg/runner"
	"github.com/root4loot/pathhunt/pkg/sink"
	"github.com/root4loot/pathhunt/pkg/util"
)

type CLI struct {
	opts   options.Options
	set    map[string]bool
	prompt *bufio.Reader
}

const (
	author          = "@danielantonsen"
	defaultOutfile  = "found.txt"
	defaultNotFound = "notfound.txt"
	rule            = "========================================"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := newCLI()
	cli.initialize()

	if err := log.Init(log.Config{File: cli.opts.LogFile, Verbose: cli.opts.Verbose, Silence: cli.opts.Silence}); err != nil {
		log.Fatalf("Could not open log file: %v", err)
	}
	defer log.Close()

	domains := cli.getDomains()
	if len(domains) == 0 {
		color.Redln("Error: no valid domains in input")
		log.Error("No domains found in input")
		os.Exit(1)
	}

	s, err := sink.New(cli.opts.CLI.Outfile, cli.opts.CLI.NotFoundFile)
	if err != nil {
		log.Fatalf("Invalid output path: %v", err)
	}

	r, err := runner.NewRunner(&cli.opts, s)
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	if err := s.Init(r.Subject()); err != nil {
		log.Fatalf("Could not initialize output files: %v", err)
	}

	if !cli.opts.Silence {
		color.Greenf("Total domains: %d\n", len(domains))
		color.Greenln("Starting scan...")
		fmt.Println()
	}
	log.Infof("Loaded %d domains, mode %s", len(domains), cli.opts.Mode)

	done := cli.processResults(r)
	summary := r.Run(ctx, domains...)
	<-done

	cli.printSummary(summary, s)
}

// newCLI returns a new CLI instance
func newCLI() *CLI {
	return &CLI{prompt: bufio.NewReader(os.Stdin)}
}

// initialize parses the command line options, merges the config file and prompts for what is missing
func (c *CLI) initialize() {
	c.parseFlags()
	c.checkForExits()

	if c.opts.CLI.Config != "" {
		file, err := options.LoadFile(c.opts.CLI.Config)
		if err != nil {
			log.Fatalf("%v", err)
		}
		c.opts.Merge(file, c.isSet)
	}

	c.promptMissing()
}

// checkForExits checks for the presence of the -h|--help and --version flags
func (c *CLI) checkForExits() {
	if c.opts.CLI.Help {
		c.banner()
		c.usage()
		os.Exit(0)
	}
	if c.opts.CLI.Version {
		fmt.Println("pathhunt", version)
		os.Exit(0)
	}
}

// promptMissing asks for input/output paths and thread count when running interactively
func (c *CLI) promptMissing() {
	interactive := !c.hasStdin() && !c.opts.CLI.NoPrompt

	if !c.hasStdin() && !c.hasInfile() && !c.hasTarget() {
		if !interactive {
			fmt.Println("")
			color.Redf("%s\n\n", "Missing Target")
			c.usage()
			os.Exit(1)
		}
		c.opts.CLI.Infile = c.ask("Input file with domains (e.g. input.txt): ")
	}

	if c.opts.CLI.Outfile == "" {
		if interactive {
			c.opts.CLI.Outfile = c.ask("Output file for found paths (e.g. found.txt): ")
		}
		if c.opts.CLI.Outfile == "" {
			c.opts.CLI.Outfile = defaultOutfile
		}
	}

	if c.opts.CLI.NotFoundFile == "" {
		if interactive {
			c.opts.CLI.NotFoundFile = c.ask("Output file for domains NOT found (e.g. notfound.txt): ")
		}
		if c.opts.CLI.NotFoundFile == "" {
			c.opts.CLI.NotFoundFile = defaultNotFound
		}
	}

	if interactive && !c.isSet("concurrency") && c.opts.CLI.Config == "" {
		c.opts.Concurrency = parseThreads(c.ask("Number of threads (e.g. 10): "))
	}
}

func (c *CLI) ask(question string) string {
	fmt.Print(question)
	line, err := c.prompt.ReadString('\n')
	if err != nil && err != io.EOF {
		return ""
	}
	return strings.TrimSpace(line)
}

// parseThreads reads a thread count, falling back to the default on bad input
func parseThreads(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		n = options.Default().Concurrency
		color.Yellowf("Default: using %d threads\n", n)
	}
	return n
}

// getDomains collects domains from stdin, the infile or the target flag
func (c *CLI) getDomains() []string {
	var domains []string
	var err error

	switch {
	case c.hasStdin():
		domains, err = util.ReadLines(os.Stdin)
	case c.hasInfile():
		domains, err = util.ReadFileLines(c.opts.CLI.Infile)
	}
	if err != nil {
		color.Redf("Error: could not read %s: %v\n", c.opts.CLI.Infile, err)
		log.Fatalf("Error reading input: %v", err)
	}

	if c.hasTarget() {
		domains = append(domains, options.SplitList(c.opts.CLI.Target)...)
	}
	return domains
}

// processResults prints every runner event as it comes in.
// The returned channel is closed once Results is drained.
func (c *CLI) processResults(r *runner.Runner) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range r.Results {
			if c.opts.Silence {
				if res.Kind == runner.EventSuccess {
					fmt.Println(res.Probe.URL)
				}
				continue
			}
			c.printResult(res)
		}
	}()
	return done
}

// printResult prints one event with the color of its outcome
func (c *CLI) printResult(res runner.Result) {
	p := res.Probe

	switch res.Kind {
	case runner.EventSuccess:
		if p.Reason == probe.ReasonPhpMyAdminFound {
			color.Greenf("[%s] %s\n", p.Reason, p.URL)
			return
		}
		color.Greenf("[SUCCESS] %s\n\n", p.URL)
	case runner.EventNotFound:
		if p.Reason == probe.ReasonPhpMyAdminMissing {
			color.Redf("[%s] %s\n", p.Reason, res.Domain)
			return
		}
		color.Redf("[NOT FOUND] %s\n", res.Domain)
	case runner.EventOutOfScope:
		if c.opts.Verbose > 0 {
			color.Yellowf("[OUT OF SCOPE] %s\n", res.Domain)
		}
	case runner.EventUnexpected:
		color.Redf("[FATAL ERROR] %s: %v\n", res.Domain, res.Err)
	case runner.EventProbe:
		c.printProbe(p)
	}
}

func (c *CLI) printProbe(p probe.Result) {
	switch p.Outcome {
	case probe.OutcomeFound:
		if p.Location != "" {
			color.Greenf("[%s] %s -> %s\n", p.Reason, p.URL, p.Location)
		} else {
			color.Greenf("[%s] %s\n", p.Reason, p.URL)
		}
	case probe.OutcomeRetry:
		if p.Reason == probe.ReasonChallenge {
			color.Yellowf("[%s] %s - retrying with challenge client\n", p.Reason, p.URL)
		} else {
			color.Yellowf("[%s] %s - fallback to http\n", p.Reason, p.URL)
		}
	case probe.OutcomeSkip:
		switch {
		case p.Reason == probe.ReasonChallengeFailed:
			color.Redf("[%s] %s: %s\n", p.Reason, p.URL, probe.ShortError(p.Err))
		case p.Title != "":
			color.Yellowf("[%s] %s (%d) %q\n", p.Reason, p.URL, p.StatusCode, p.Title)
		default:
			color.Yellowf("[%s] %s (%d)\n", p.Reason, p.URL, p.StatusCode)
		}
	case probe.OutcomeError:
		switch p.Kind {
		case probe.KindTimeout:
			color.Redf("[%s] %s\n", p.Reason, p.URL)
		case probe.KindCanceled:
			// interrupted, reported once by the summary
		default:
			color.Redf("[%s] %s: %s\n", p.Reason, p.URL, probe.ShortError(p.Err))
		}
	default:
		if p.Reason == probe.ReasonChallengeFailed {
			color.Redf("[%s] %s: %s\n", p.Reason, p.URL, probe.ShortError(p.Err))
			return
		}
		color.Redf("[%s] %s\n", p.Reason, p.URL)
	}
}

// printSummary prints where the results went
func (c *CLI) printSummary(summary runner.Summary, s *sink.Sink) {
	if c.opts.Silence {
		return
	}

	fmt.Println()
	if summary.Interrupted {
		color.Yellowln(rule)
		color.Yellowln("[INTERRUPTED] Stopped by user")
		color.Yellowln(rule)
		return
	}

	color.Greenln(rule)
	color.Greenf("Done! %d found, %d not found", summary.Found, summary.NotFound)
	if summary.OutOfScope > 0 {
		color.Greenf(", %d out of scope", summary.OutOfScope)
	}
	fmt.Println()
	color.Greenf("  - Found paths: %s\n", s.FoundFile)
	color.Greenf("  - Not found: %s\n", s.NotFoundFile)
	if c.opts.LogFile != "" {
		color.Greenf("  - Debug log: %s\n", c.opts.LogFile)
	}
	color.Greenln(rule)
}

// hasStdin determines if the user has piped input
func (c *CLI) hasStdin() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}

	mode := stat.Mode()

	isPipedFromChrDev := (mode & os.ModeCharDevice) == 0
	isPipedFromFIFO := (mode & os.ModeNamedPipe) != 0

	return isPipedFromChrDev || isPipedFromFIFO
}

// hasTarget determines if the user has provided a target
func (c *CLI) hasTarget() bool {
	return c.opts.CLI.Target != ""
}

// hasInfile determines if the user has provided an input file
func (c *CLI) hasInfile() bool {
	return c.opts.CLI.Infile != ""
}
