package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"presswatch/internal/catalog"
)

func TestAuditClassifiesHealthySite(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><a href="/editions/today.pdf">E-Edition</a> Local news daily.</html>`))
		case "/feed":
			_, _ = w.Write([]byte(`<rss><channel><item><pubDate>Mon, 25 Aug 2026 06:00:00 GMT</pubDate></item><item></item></channel></rss>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer site.Close()

	auditor := NewAuditor(5*time.Second, "test-agent", nil)
	raw, err := auditor.Audit(context.Background(), &catalog.Paper{
		ID:     1,
		URL:    site.URL,
		RSSURL: site.URL + "/feed",
	})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	var result AuditResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Reachable || result.StatusCode != http.StatusOK {
		t.Fatalf("expected reachable 200, got %+v", result)
	}
	if !result.PDFReplica {
		t.Fatal("expected pdf replica detection")
	}
	if !result.RSSChecked || result.RSSItemCount != 2 {
		t.Fatalf("expected 2 feed items, got %+v", result)
	}
	if result.RSSLatestDate != "Mon, 25 Aug 2026 06:00:00 GMT" {
		t.Fatalf("unexpected feed date %q", result.RSSLatestDate)
	}
	if len(result.PaywallHints) != 0 || len(result.ClosureHints) != 0 {
		t.Fatalf("unexpected hints: %+v", result)
	}
}

func TestAuditFlagsPaywallAndClosure(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`Subscribe Now to keep reading. This paper has ceased publication.`))
	}))
	defer site.Close()

	auditor := NewAuditor(5*time.Second, "test-agent", nil)
	raw, err := auditor.Audit(context.Background(), &catalog.Paper{ID: 2, URL: site.URL})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	var result AuditResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.PaywallHints) != 1 || result.PaywallHints[0] != "subscribe now" {
		t.Fatalf("unexpected paywall hints: %v", result.PaywallHints)
	}
	if len(result.ClosureHints) != 1 || result.ClosureHints[0] != "ceased publication" {
		t.Fatalf("unexpected closure hints: %v", result.ClosureHints)
	}
	if result.RSSChecked {
		t.Fatal("no feed configured, must not be checked")
	}
}

func TestAuditRecordsUnreachableSite(t *testing.T) {
	auditor := NewAuditor(500*time.Millisecond, "test-agent", nil)
	raw, err := auditor.Audit(context.Background(), &catalog.Paper{
		ID:  3,
		URL: "http://127.0.0.1:1/never",
	})
	if err != nil {
		t.Fatalf("unreachable site is a finding, not an error: %v", err)
	}

	var result AuditResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reachable {
		t.Fatal("expected unreachable")
	}
	if result.FetchError == "" {
		t.Fatal("expected the fetch error to be recorded")
	}
}

func TestAuditSendsConfiguredUserAgent(t *testing.T) {
	var gotAgent string
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
	}))
	defer site.Close()

	auditor := NewAuditor(5*time.Second, "Presswatch/test", nil)
	if _, err := auditor.Audit(context.Background(), &catalog.Paper{ID: 4, URL: site.URL}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if gotAgent != "Presswatch/test" {
		t.Fatalf("expected configured user agent, got %q", gotAgent)
	}
}

func TestLookupCollectsEmailsAcrossPages(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<a href="mailto:news@paper.example?subject=tip">Email us</a>`))
		case "/contact":
			_, _ = w.Write([]byte(`Reach the desk at News@paper.example or ads@paper.example.`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer site.Close()

	finder := NewContactFinder(5*time.Second, "test-agent", []string{"/contact", "/about"}, nil)
	raw, err := finder.Lookup(context.Background(), &catalog.Paper{
		ID:    5,
		URL:   site.URL,
		Email: "old@paper.example",
	})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	var result LookupResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := []string{"ads@paper.example", "news@paper.example"}
	if len(result.Emails) != len(want) {
		t.Fatalf("expected %v, got %v", want, result.Emails)
	}
	for i, email := range want {
		if result.Emails[i] != email {
			t.Fatalf("expected %v, got %v", want, result.Emails)
		}
	}
	if result.KnownEmail != "old@paper.example" {
		t.Fatalf("expected known email carried through, got %q", result.KnownEmail)
	}
	// /about 404s and must be skipped without failing the lookup.
	if len(result.PagesChecked) != 2 {
		t.Fatalf("expected 2 pages checked, got %v", result.PagesChecked)
	}
}

func TestLookupEmptySiteStillSucceeds(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>nothing here</html>`))
	}))
	defer site.Close()

	finder := NewContactFinder(5*time.Second, "test-agent", nil, nil)
	raw, err := finder.Lookup(context.Background(), &catalog.Paper{ID: 6, URL: site.URL})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	var result LookupResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Emails) != 0 {
		t.Fatalf("expected no emails, got %v", result.Emails)
	}
}
