// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"net/http"
	"strings"
	"testing"
)

func TestClassifyDirectory(t *testing.T) {
	longLogin := "<html><body>Login " + strings.Repeat("x", 3100) + "</body></html>"

	testCases := []struct {
		name    string
		status  int
		body    string
		outcome Outcome
		reason  Reason
	}{
		{"forbidden without body", 403, "", OutcomeFound, ReasonForbidden},
		{"blank 200", 200, "", OutcomeFound, ReasonBlank},
		{"whitespace only 200", 200, "  \n\t ", OutcomeFound, ReasonBlank},
		{"index of on 200", 200, "<html><title>Index of /files/journals</title></html>", OutcomeFound, ReasonIndexOf},
		{"index of on 404", 404, "<h1>Index of /</h1>", OutcomeFound, ReasonIndexOf},
		{"index of on 500", 500, "Index of /", OutcomeFound, ReasonIndexOf},
		{"directory listing", 200, "Directory Listing for /", OutcomeFound, ReasonIndexOf},
		{"almost blank", 200, "ok", OutcomeFound, ReasonAlmostBlank},
		{"short but html", 200, "<html></html>", OutcomeSkip, ReasonHomepage},
		{"short but product word", 200, "journal", OutcomeSkip, ReasonHomepage},
		{"short not found", 200, "not found", OutcomeSkip, ReasonSkip},
		{"short doctype", 200, "<!doctype x>", OutcomeSkip, ReasonSkip},
		{"login homepage", 200, longLogin, OutcomeSkip, ReasonHomepage},
		{"plain 404", 404, "nothing to see here, move along please thanks", OutcomeSkip, ReasonSkip},
		{"short body on 404", 404, "gone", OutcomeSkip, ReasonSkip},
		{"long text 200", 200, strings.Repeat("a", 40), OutcomeSkip, ReasonSkip},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, reason := ClassifyDirectory(tc.status, tc.body, "journal")
			if outcome != tc.outcome || reason != tc.reason {
				t.Errorf("ClassifyDirectory(%d, %.40q) = (%s, %s), expected (%s, %s)", tc.status, tc.body, outcome, reason, tc.outcome, tc.reason)
			}
		})
	}
}

func TestClassifyFolder(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		location string
		outcome  Outcome
		reason   Reason
	}{
		{"301 to folder", 301, "https://example.com/files/journals/", OutcomeFound, ReasonFolderRedirect},
		{"302 relative", 302, "/files/journals/", OutcomeFound, ReasonFolderRedirect},
		{"308 to folder", 308, "/files/journals/", OutcomeFound, ReasonFolderRedirect},
		{"403 with location", 403, "/files/journals/", OutcomeFound, ReasonFolderForbidden},
		{"200 with location", 200, "/files/journals/", OutcomeFound, ReasonFolderOK},
		{"redirect elsewhere", 302, "/login", OutcomeNotFound, ReasonFolderNotFound},
		{"redirect without trailing slash", 301, "/files/journals", OutcomeNotFound, ReasonFolderNotFound},
		{"404 with location", 404, "/files/journals/", OutcomeNotFound, ReasonFolderNotFound},
		{"200 no location", 200, "", OutcomeNotFound, ReasonFolderNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := &Response{StatusCode: tc.status, Header: http.Header{}}
			if tc.location != "" {
				resp.Header.Set("Location", tc.location)
			}
			outcome, reason := ClassifyFolder(resp, "journals")
			if outcome != tc.outcome || reason != tc.reason {
				t.Errorf("ClassifyFolder(%d, %q) = (%s, %s), expected (%s, %s)", tc.status, tc.location, outcome, reason, tc.outcome, tc.reason)
			}
		})
	}
}

func TestIsChallenge(t *testing.T) {
	testCases := []struct {
		body     string
		expected bool
	}{
		{"<title>Just a moment...</title> cloudflare", true},
		{"Attention Required! | Cloudflare", true},
		{"<div id=cf-challenge></div> CloudFlare", true},
		{"Just a moment...", false},
		{"Powered by Cloudflare", false},
		{"", false},
	}

	for _, tc := range testCases {
		if got := IsChallenge(tc.body); got != tc.expected {
			t.Errorf("IsChallenge(%q) = %v, expected %v", tc.body, got, tc.expected)
		}
	}
}

func TestIsHomepage(t *testing.T) {
	if !IsHomepage("Welcome, please LOGIN") {
		t.Error("login page should be a homepage")
	}
	if !IsHomepage("<HTML><body></body></HTML>") {
		t.Error("any html should be a homepage")
	}
	if IsHomepage("plain text file listing") {
		t.Error("plain text should not be a homepage")
	}
}

func TestPageTitle(t *testing.T) {
	if got := PageTitle("<html><head><title> Home </title></head></html>"); got != "Home" {
		t.Errorf("PageTitle = %q, expected %q", got, "Home")
	}
	if got := PageTitle("no markup"); got != "" {
		t.Errorf("PageTitle = %q, expected empty", got)
	}
}
