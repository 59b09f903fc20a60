// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package util

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// NormalizeDomain splits a raw domain line into scheme and host.
// The scheme defaults to https and trailing slashes are dropped.
func NormalizeDomain(raw string) (scheme, host string) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "https", strings.TrimRight(raw[len("https://"):], "/")
	case strings.HasPrefix(raw, "http://"):
		return "http", strings.TrimRight(raw[len("http://"):], "/")
	default:
		return "https", strings.TrimRight(raw, "/")
	}
}

// JoinPath joins URL path segments with exactly one slash between them
func JoinPath(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(p)
	}
	return b.String()
}

// ReadFileLines reads a file line by line, skipping blank lines
func ReadFileLines(filepath string) (lines []string, err error) {
	file, err := os.Open(filepath)
	if err != nil {
		return
	}
	defer file.Close()

	return ReadLines(file)
}

// ReadLines reads trimmed, non-blank lines from r
func ReadLines(r io.Reader) (lines []string, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
