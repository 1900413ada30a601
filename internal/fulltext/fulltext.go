// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext downloads paper PDFs and extracts machine-readable text.
// Everything here is best effort: any failure degrades to an empty result.
package fulltext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// pdfBase is the canonical PDF host. Declared as a var so tests can
// substitute an httptest server.
var pdfBase = "https://arxiv.org/pdf"

// pageSeparator joins per-page text fragments.
const pageSeparator = "\n\n"

var versionSuffix = regexp.MustCompile(`v\d+$`)

// Client retrieves PDF renderings of papers.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient builds a full-text client from configuration.
func NewClient(cfg types.FullTextConfig) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// Fetch tries candidate URLs in order and returns the extracted plain text
// of the first PDF payload that downloads. It returns "" when no candidate
// succeeds or when extraction fails; it never returns an error.
func (c *Client) Fetch(ctx context.Context, arxivID, pdfURL string) string {
	for _, candidate := range candidateURLs(arxivID, pdfURL) {
		payload := c.download(ctx, candidate)
		if len(payload) == 0 {
			continue
		}
		text, err := extractText(ctx, payload)
		if err != nil {
			return ""
		}
		return text
	}
	return ""
}

// candidateURLs builds the ordered, deduplicated list of URLs to try:
// the explicit PDF URL (plus a ".pdf" variant when it lacks the suffix),
// the canonical host URL for the identifier, and for versioned identifiers
// the unversioned canonical URL as well.
func candidateURLs(arxivID, pdfURL string) []string {
	var urls []string
	if pdfURL != "" {
		urls = append(urls, pdfURL)
		if !strings.HasSuffix(strings.ToLower(pdfURL), ".pdf") {
			urls = append(urls, strings.TrimRight(pdfURL, "/")+".pdf")
		}
	}

	id := strings.TrimSpace(arxivID)
	if id != "" {
		urls = append(urls, fmt.Sprintf("%s/%s.pdf", pdfBase, id))
		if base := versionSuffix.ReplaceAllString(id, ""); base != "" && base != id {
			urls = append(urls, fmt.Sprintf("%s/%s.pdf", pdfBase, base))
		}
	}

	seen := make(map[string]bool, len(urls))
	unique := urls[:0]
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		unique = append(unique, u)
	}
	return unique
}

// download issues one timed GET and returns the payload, or nil on any
// failure. Responses without a PDF content type are skipped unless the URL
// itself ends in ".pdf".
func (c *Client) download(ctx context.Context, candidate string) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "pdf") && !strings.HasSuffix(strings.ToLower(candidate), ".pdf") {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return payload
}

// extractText runs PDF text extraction on its own goroutine so a slow,
// CPU-bound parse cannot hold up callers past their context deadline. The
// extraction keeps running after cancellation; only the wait is abandoned.
func extractText(ctx context.Context, payload []byte) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := pdfToText(payload)
		ch <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.text, r.err
	}
}

// pdfToText concatenates per-page plain text with pageSeparator, trimming
// empty pages. The pdf library panics on some malformed files, so panics
// are converted to errors here.
func pdfToText(payload []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf extraction: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(content); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}
	return strings.Join(pages, pageSeparator), nil
}
