package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"presswatch/internal/catalog"
	"presswatch/internal/logging"
)

const maxBodyBytes = 2 << 20

// AuditResult is the JSON document stored on a completed audit item.
type AuditResult struct {
	PaperID       int64    `json:"paper_id"`
	URL           string   `json:"url"`
	Reachable     bool     `json:"reachable"`
	StatusCode    int      `json:"status_code,omitempty"`
	FetchError    string   `json:"fetch_error,omitempty"`
	PDFReplica    bool     `json:"pdf_replica"`
	PaywallHints  []string `json:"paywall_hints,omitempty"`
	ClosureHints  []string `json:"closure_hints,omitempty"`
	RSSChecked    bool     `json:"rss_checked"`
	RSSItemCount  int      `json:"rss_item_count,omitempty"`
	RSSLatestDate string   `json:"rss_latest_date,omitempty"`
	CheckedAt     string   `json:"checked_at"`
}

var (
	paywallMarkers = []string{
		"subscribe now",
		"subscription required",
		"metered",
		"subscriber exclusive",
	}
	closureMarkers = []string{
		"ceased publication",
		"no longer publishing",
		"final edition",
		"has closed",
	}
	pdfReplicaMarkers = []string{".pdf", "e-edition", "eedition", "digital edition"}

	rssPubDateRe = regexp.MustCompile(`(?i)<(?:pubDate|updated|dc:date)>([^<]+)<`)
	rssItemRe    = regexp.MustCompile(`(?i)<(?:item|entry)[\s>]`)
)

// Auditor fetches a paper's site and classifies what it finds.
type Auditor struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewAuditor builds an auditor with a bounded per-request timeout.
func NewAuditor(timeout time.Duration, userAgent string, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Auditor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Audit probes the paper's homepage and, when configured, its feed.
// Network failures are captured in the result rather than returned;
// only marshalling problems surface as errors.
func (a *Auditor) Audit(ctx context.Context, paper *catalog.Paper) (string, error) {
	result := AuditResult{
		PaperID:   paper.ID,
		URL:       paper.URL,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	body, status, err := a.fetch(ctx, paper.URL)
	if err != nil {
		result.FetchError = err.Error()
		a.logger.Warn("homepage unreachable",
			logging.Int64(logging.FieldPaperID, paper.ID),
			logging.Error(err))
	} else {
		result.StatusCode = status
		result.Reachable = status >= 200 && status < 400
		lower := strings.ToLower(body)
		result.PDFReplica = containsAny(lower, pdfReplicaMarkers)
		result.PaywallHints = matchMarkers(lower, paywallMarkers)
		result.ClosureHints = matchMarkers(lower, closureMarkers)
	}

	if paper.RSSURL != "" {
		result.RSSChecked = true
		if feed, _, feedErr := a.fetch(ctx, paper.RSSURL); feedErr == nil {
			result.RSSItemCount = len(rssItemRe.FindAllStringIndex(feed, -1))
			if match := rssPubDateRe.FindStringSubmatch(feed); match != nil {
				result.RSSLatestDate = strings.TrimSpace(match[1])
			}
		} else {
			a.logger.Debug("feed fetch failed",
				logging.Int64(logging.FieldPaperID, paper.ID),
				logging.Error(feedErr))
		}
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode audit result: %w", err)
	}
	return string(encoded), nil
}

func (a *Auditor) fetch(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

func containsAny(haystack string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

func matchMarkers(haystack string, markers []string) []string {
	var hits []string
	for _, marker := range markers {
		if strings.Contains(haystack, marker) {
			hits = append(hits, marker)
		}
	}
	return hits
}
