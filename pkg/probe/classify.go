// Author: Daniel Antonsen (@danielantonsen)
// Distributed Under MIT License

package probe

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Outcome is the verdict of a single probe
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeFound
	OutcomeSkip
	OutcomeError
	OutcomeRetry // intermediate notice: the probe is being repeated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeSkip:
		return "skip"
	case OutcomeError:
		return "error"
	case OutcomeRetry:
		return "retry"
	}
	return "not-found"
}

// Reason is the console label explaining an outcome
type Reason string

const (
	ReasonFolderRedirect    Reason = "FOLDER EXISTS"
	ReasonFolderForbidden   Reason = "FOLDER EXISTS (403)"
	ReasonFolderOK          Reason = "FOLDER EXISTS (200)"
	ReasonFolderNotFound    Reason = "FOLDER NOT FOUND"
	ReasonIndexOf           Reason = "INDEX OF"
	ReasonForbidden         Reason = "FORBIDDEN 403"
	ReasonBlank             Reason = "BLANK 200"
	ReasonAlmostBlank       Reason = "ALMOST BLANK 200"
	ReasonHomepage          Reason = "SKIP HOMEPAGE"
	ReasonSkip              Reason = "SKIP"
	ReasonChallenge         Reason = "CF JS Challenge"
	ReasonChallengeFailed   Reason = "ERROR CF"
	ReasonTLSFallback       Reason = "SSL ERROR"
	ReasonTLSError          Reason = "SSL ERROR"
	ReasonTimeout           Reason = "TIMEOUT"
	ReasonTransportError    Reason = "ERROR"
	ReasonUnexpectedError   Reason = "UNEXPECTED ERROR"
	ReasonPhpMyAdminFound   Reason = "PHPMYADMIN"
	ReasonPhpMyAdminMissing Reason = "PHPMYADMIN NOT FOUND"
)

// almostBlankLimit is the body length under which a 200 counts as near-empty
const almostBlankLimit = 30

var challengeMarkers = []string{
	"attention required",
	"cf-challenge",
	"just a moment",
}

// homepageMarkers are matched against the lowercased body
var homepageMarkers = []string{
	"portal jurnal ilmiah",
	"open journal systems",
	"journal help",
	"home >",
	"username",
	"login",
	"register",
	"current issue",
	"universitas tanjungpura",
	"selamat datang",
	"journal content",
	"<title>home",
	"<title>beranda",
	"<title>welcome",
	"ojs",
	"journal",
	"pkp",
	`<meta name="generator" content="open journal systems"`,
	"<html",
	`content="open journal systems`,
}

// IsChallenge reports whether body is an anti-bot interstitial
func IsChallenge(body string) bool {
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "cloudflare") {
		return false
	}
	return containsAny(lower, challengeMarkers)
}

// IsHomepage reports whether body looks like the application's front page
func IsHomepage(body string) bool {
	lower := strings.ToLower(body)
	if containsAny(lower, homepageMarkers) {
		return true
	}
	return utf8.RuneCountInString(lower) > 3000 && strings.Contains(lower, "<html")
}

// ClassifyFolder decides whether the slash-less folder URL points at an existing folder.
// A folder exists when the server sends us to "<folder>/".
func ClassifyFolder(resp *Response, folder string) (Outcome, Reason) {
	suffix := "/" + folder + "/"
	if !strings.HasSuffix(resp.Location(), suffix) {
		return OutcomeNotFound, ReasonFolderNotFound
	}

	switch {
	case resp.IsRedirect():
		return OutcomeFound, ReasonFolderRedirect
	case resp.StatusCode == http.StatusForbidden:
		return OutcomeFound, ReasonFolderForbidden
	case resp.StatusCode == http.StatusOK:
		return OutcomeFound, ReasonFolderOK
	}
	return OutcomeNotFound, ReasonFolderNotFound
}

// ClassifyDirectory decides whether the folder URL with trailing slash is exposed.
// marker is the product word that disqualifies a near-empty body.
func ClassifyDirectory(status int, body, marker string) (Outcome, Reason) {
	body = strings.TrimSpace(body)
	lower := strings.ToLower(body)

	if strings.Contains(lower, "index of") || strings.Contains(lower, "directory listing") {
		return OutcomeFound, ReasonIndexOf
	}
	if status == http.StatusForbidden {
		return OutcomeFound, ReasonForbidden
	}
	if status == http.StatusOK && body == "" {
		return OutcomeFound, ReasonBlank
	}
	if status == http.StatusOK && utf8.RuneCountInString(body) < almostBlankLimit &&
		!strings.Contains(lower, "<html") &&
		(marker == "" || !strings.Contains(lower, strings.ToLower(marker))) &&
		!strings.Contains(lower, "doctype") &&
		!strings.Contains(lower, "not found") {
		return OutcomeFound, ReasonAlmostBlank
	}
	if IsHomepage(body) {
		return OutcomeSkip, ReasonHomepage
	}
	return OutcomeSkip, ReasonSkip
}

// PageTitle returns the trimmed <title> of an HTML body, if any
func PageTitle(body string) string {
	if !strings.Contains(strings.ToLower(body), "<title") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
