// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	foundTitle    = "# Exposed %s paths (forbidden/blank/index of)"
	notFoundTitle = "# Domains not found or failed"
)

// Sink appends findings and misses to two flat text files.
// Every append is serialized by one mutex and synced to disk before returning.
type Sink struct {
	FoundFile    string
	NotFoundFile string

	mu  sync.Mutex
	now func() time.Time
}

// New returns a sink writing to absolute versions of the given paths
func New(foundFile, notFoundFile string) (*Sink, error) {
	found, err := filepath.Abs(foundFile)
	if err != nil {
		return nil, err
	}
	notFound, err := filepath.Abs(notFoundFile)
	if err != nil {
		return nil, err
	}
	return &Sink{FoundFile: found, NotFoundFile: notFound, now: time.Now}, nil
}

// Init truncates both files and writes their comment headers.
// subject names what the found file lists, e.g. "files/journals".
func (s *Sink) Init(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	generated := "# Generated: " + s.now().Format(time.UnixDate)

	if err := writeSynced(s.FoundFile, os.O_TRUNC, fmt.Sprintf(foundTitle, subject), generated, ""); err != nil {
		return err
	}
	return writeSynced(s.NotFoundFile, os.O_TRUNC, notFoundTitle, generated, "")
}

// Found records a discovered URL
func (s *Sink) Found(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeSynced(s.FoundFile, os.O_APPEND, url)
}

// NotFound records a domain without findings.
// A non-empty kind annotates the line with the failure class and message.
func (s *Sink) NotFound(domain, kind, message string) error {
	line := domain
	if kind != "" {
		line = fmt.Sprintf("%s # ERROR: %s - %s", domain, kind, oneLine(message))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeSynced(s.NotFoundFile, os.O_APPEND, line)
}

// writeSynced writes lines to path and fsyncs the file
func writeSynced(path string, mode int, lines ...string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	for _, line := range lines {
		if _, err := file.WriteString(line + "\n"); err != nil {
			file.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return file.Close()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
