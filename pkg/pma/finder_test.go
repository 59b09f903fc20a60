// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package pma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/root4loot/pathhunt/pkg/options"
)

func newTestFinder(t *testing.T, paths ...string) *Finder {
	t.Helper()
	o := options.Default()
	o.PMAPaths = paths
	f, err := NewFinder(o)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestFindFirstMatch(t *testing.T) {
	var mu sync.Mutex
	var hits []string
	var agents = make(map[string]bool)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		agents[r.UserAgent()] = true
		mu.Unlock()

		switch r.URL.Path {
		case "/pma/index.php":
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("phpMyAdmin is forbidden here"))
		case "/old/index.php":
			http.Redirect(w, r, "/real/index.php", http.StatusFound)
		case "/real/index.php":
			w.Write([]byte(`<input name="pma_username">`))
		case "/db/index.php":
			w.Write([]byte("<title>phpMyAdmin</title>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	f := newTestFinder(t, "/phpmyadmin/index.php", "/pma/index.php", "old/index.php", "/db/index.php")

	got, err := f.Find(context.Background(), ts.URL+"/some/page?x=1")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if got != ts.URL+"/old/index.php" {
		t.Errorf("Find = %q, expected %q", got, ts.URL+"/old/index.php")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range hits {
		if p == "/db/index.php" {
			t.Error("scan should stop at the first match")
		}
	}
	if len(agents) != 1 {
		t.Errorf("expected a single user agent per scan, got %v", agents)
	}
}

func TestFindNothing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("welcome"))
	}))
	defer ts.Close()

	f := newTestFinder(t, "/phpmyadmin/index.php", "/pma/index.php")

	got, err := f.Find(context.Background(), ts.URL)
	if err != nil || got != "" {
		t.Errorf("Find = (%q, %v), expected no match", got, err)
	}
}

func TestFindSkipsErrors(t *testing.T) {
	f := newTestFinder(t, "/phpmyadmin/index.php")

	got, err := f.Find(context.Background(), "http://127.0.0.1:1")
	if err != nil || got != "" {
		t.Errorf("Find = (%q, %v), expected unreachable paths to be skipped", got, err)
	}
}

func TestFindCanceled(t *testing.T) {
	f := newTestFinder(t, "/phpmyadmin/index.php")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Find(ctx, "http://127.0.0.1:1"); err == nil {
		t.Error("expected canceled scan to return an error")
	}
}

func TestBaseURL(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"example.com", "https://example.com"},
		{"example.com/admin/", "https://example.com"},
		{"http://example.com/a/b?c=d", "http://example.com"},
		{"https://sub.example.co.uk:8443/x", "https://sub.example.co.uk:8443"},
		{"http://127.0.0.1:8080/phpmyadmin", "http://127.0.0.1:8080"},
		{"localhost", "https://localhost"},
	}

	for _, tc := range testCases {
		got, err := BaseURL(tc.input)
		if err != nil {
			t.Errorf("BaseURL(%q) returned error: %v", tc.input, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("BaseURL(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestIsPhpMyAdmin(t *testing.T) {
	testCases := []struct {
		body     string
		expected bool
	}{
		{"<title>phpMyAdmin</title>", true},
		{`name="pma_password"`, true},
		{"Server Choice", true},
		{"Welcome to nginx", false},
		{"", false},
	}

	for _, tc := range testCases {
		if got := IsPhpMyAdmin(tc.body); got != tc.expected {
			t.Errorf("IsPhpMyAdmin(%q) = %v, expected %v", tc.body, got, tc.expected)
		}
	}
}
