// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed retrieves and parses arXiv category listings.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// apiBase is the arXiv listing endpoint. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://export.arxiv.org/api/query"

const maxAttempts = 3

// retryBaseDelay controls the base duration for exponential backoff on
// transient fetch failures. Tests override this to avoid real sleeps.
var retryBaseDelay = time.Second

const retryMaxDelay = 10 * time.Second

// Client fetches category listings from the arXiv Atom API.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient builds a feed client from configuration.
func NewClient(cfg types.FeedConfig) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// FetchCategory retrieves one category listing, newest first, truncated to
// maxResults. Transient transport failures are retried up to three times
// with exponential backoff; a malformed response is not retried.
func (c *Client) FetchCategory(ctx context.Context, category string, maxResults int) ([]types.ScrapedPaper, error) {
	if maxResults <= 0 {
		maxResults = 25
	}

	listURL := fmt.Sprintf("%s?search_query=cat:%s&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		apiBase, url.QueryEscape(category), maxResults)

	body, err := c.getWithRetry(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("fetching category %s: %w", category, err)
	}

	var parsed atomFeed
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing category %s listing: %w", category, err)
	}

	entries := parsed.Entries
	if len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	now := time.Now().UTC()
	papers := make([]types.ScrapedPaper, 0, len(entries))
	for _, entry := range entries {
		papers = append(papers, parseEntry(entry, now))
	}
	return papers, nil
}

// FetchAll fans out over categories concurrently and joins the results.
// A category whose fetch fails after retry exhaustion contributes zero
// items; the remaining categories are unaffected. The joined result is
// unique by identifier and sorted by published time descending.
func (c *Client) FetchAll(ctx context.Context, categories []string, maxResults int, w io.Writer) []types.ScrapedPaper {
	type fetchResult struct {
		category string
		papers   []types.ScrapedPaper
		err      error
	}

	ch := make(chan fetchResult, len(categories))
	var wg sync.WaitGroup

	for _, category := range categories {
		wg.Add(1)
		go func(category string) {
			defer wg.Done()
			papers, err := c.FetchCategory(ctx, category, maxResults)
			ch <- fetchResult{category: category, papers: papers, err: err}
		}(category)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.ScrapedPaper
	for fr := range ch {
		if fr.err != nil {
			fmt.Fprintf(w, "warning: category %s fetch failed: %v\n", fr.category, fr.err)
			continue
		}
		all = append(all, fr.papers...)
	}

	// Dedup by identifier; categories fetch independently, so which copy
	// survives does not matter. Last seen wins.
	seen := make(map[string]int, len(all))
	deduped := all[:0]
	for _, p := range all {
		if idx, ok := seen[p.ArxivID]; ok {
			deduped[idx] = p
			continue
		}
		seen[p.ArxivID] = len(deduped)
		deduped = append(deduped, p)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].PublishedAt.After(deduped[j].PublishedAt)
	})
	return deduped
}

// getWithRetry issues a GET for the listing URL. Network errors and non-200
// responses are treated as transient and retried with exponential backoff
// (1s base, doubling, capped at 10s).
func (c *Client) getWithRetry(ctx context.Context, listURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}

		body, err := c.get(ctx, listURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, listURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("listing returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// arXiv Atom feed XML structures.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// parseEntry maps one Atom entry to a ScrapedPaper. Absent fields get
// explicit defaults: "Untitled" for a missing title, now for missing
// timestamps, published time for a missing updated time.
func parseEntry(entry atomEntry, now time.Time) types.ScrapedPaper {
	var authors []string
	var affiliations []string
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, name)
		affiliations = append(affiliations, strings.TrimSpace(a.Affiliation))
	}

	var categories []string
	for _, cat := range entry.Categories {
		if term := strings.TrimSpace(cat.Term); term != "" {
			categories = append(categories, term)
		}
	}

	link := strings.TrimSpace(entry.ID)
	var pdfURL string
	for _, l := range entry.Links {
		switch {
		case l.Type == "application/pdf" && pdfURL == "":
			pdfURL = l.Href
		case l.Rel == "alternate" && l.Href != "":
			link = l.Href
		}
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = "Untitled"
	}

	published := parseTime(entry.Published, parseTime(entry.Updated, now))
	updated := parseTime(entry.Updated, published)

	return types.ScrapedPaper{
		ArxivID:      extractID(entry.ID),
		Title:        title,
		Authors:      authors,
		Affiliations: affiliations,
		Abstract:     strings.TrimSpace(entry.Summary),
		Categories:   categories,
		Link:         link,
		PDFURL:       pdfURL,
		PublishedAt:  published,
		UpdatedAt:    updated,
	}
}

func parseTime(value string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return t.UTC()
	}
	return fallback
}

// extractID pulls the identifier from the entry's <id> URL
// ("http://arxiv.org/abs/2401.00003v1" → "2401.00003v1"). The version
// suffix is preserved: it is part of the uniqueness key.
func extractID(idURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(idURL), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
