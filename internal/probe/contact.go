package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"presswatch/internal/catalog"
	"presswatch/internal/logging"
)

// LookupResult is the JSON document stored on a completed lookup item.
type LookupResult struct {
	PaperID      int64    `json:"paper_id"`
	Emails       []string `json:"emails"`
	KnownEmail   string   `json:"known_email,omitempty"`
	PagesChecked []string `json:"pages_checked"`
	CheckedAt    string   `json:"checked_at"`
}

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// ContactFinder scrapes contact addresses from a paper's site.
type ContactFinder struct {
	client       *http.Client
	userAgent    string
	contactPages []string
	logger       *slog.Logger
}

// NewContactFinder builds a finder. contactPages are site-relative
// paths tried after the homepage, such as /contact or /about.
func NewContactFinder(timeout time.Duration, userAgent string, contactPages []string, logger *slog.Logger) *ContactFinder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ContactFinder{
		client:       &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		contactPages: contactPages,
		logger:       logger,
	}
}

// Lookup fetches the homepage plus the configured contact pages and
// collects every address found. Unreachable pages are skipped; a paper
// with no discoverable address still yields a valid empty result.
func (f *ContactFinder) Lookup(ctx context.Context, paper *catalog.Paper) (string, error) {
	result := LookupResult{
		PaperID:    paper.ID,
		KnownEmail: paper.Email,
		Emails:     []string{},
		CheckedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	seen := make(map[string]struct{})
	pages := append([]string{""}, f.contactPages...)
	base := strings.TrimRight(paper.URL, "/")

	for _, page := range pages {
		url := base + page
		body, err := f.fetch(ctx, url)
		if err != nil {
			f.logger.Debug("contact page fetch failed",
				logging.Int64(logging.FieldPaperID, paper.ID),
				logging.String("url", url),
				logging.Error(err))
			continue
		}
		result.PagesChecked = append(result.PagesChecked, url)
		for _, email := range extractEmails(body) {
			if _, dup := seen[email]; !dup {
				seen[email] = struct{}{}
				result.Emails = append(result.Emails, email)
			}
		}
	}
	sort.Strings(result.Emails)

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode lookup result: %w", err)
	}
	return string(encoded), nil
}

func (f *ContactFinder) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func extractEmails(body string) []string {
	matches := emailRe.FindAllString(body, -1)
	emails := make([]string, 0, len(matches))
	for _, match := range matches {
		email := strings.ToLower(strings.Trim(match, "."))
		// mailto scrapes often drag query fragments along.
		if idx := strings.IndexAny(email, "?&"); idx >= 0 {
			email = email[:idx]
		}
		if strings.HasSuffix(email, ".png") || strings.HasSuffix(email, ".jpg") {
			continue
		}
		emails = append(emails, email)
	}
	return emails
}
