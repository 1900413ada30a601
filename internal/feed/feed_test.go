// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	retryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

const sampleEntry = `
  <entry>
    <id>http://arxiv.org/abs/2401.00003v1</id>
    <title>  Test Paper  </title>
    <summary>Abstract content</summary>
    <published>2024-01-03T00:00:00Z</published>
    <updated>2024-01-04T00:00:00Z</updated>
    <author><name>Alice</name><affiliation>Example University</affiliation></author>
    <author><name>Bob</name></author>
    <category term="cs.DC"/>
    <category term="cs.OS"/>
    <link rel="alternate" type="text/html" href="https://arxiv.org/abs/2401.00003v1"/>
    <link title="pdf" rel="related" type="application/pdf" href="https://arxiv.org/pdf/2401.00003v1"/>
  </entry>`

func feedXML(entries ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom">` +
		strings.Join(entries, "") + `</feed>`
}

func entryXML(id, published string) string {
	return fmt.Sprintf(`<entry><id>http://arxiv.org/abs/%s</id><title>Paper %s</title>`+
		`<summary>s</summary><published>%s</published></entry>`, id, id, published)
}

func testClient() *Client {
	return NewClient(types.FeedConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "paper-digest-test/0.1"},
	})
}

func TestFetchCategory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedXML(sampleEntry))
	}))
	defer ts.Close()

	orig := apiBase
	apiBase = ts.URL
	defer func() { apiBase = orig }()

	papers, err := testClient().FetchCategory(context.Background(), "cs.DC", 25)
	if err != nil {
		t.Fatalf("FetchCategory: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("got %d papers, want 1", len(papers))
	}

	p := papers[0]
	if p.ArxivID != "2401.00003v1" {
		t.Errorf("ArxivID = %q, want %q", p.ArxivID, "2401.00003v1")
	}
	if p.Title != "Test Paper" {
		t.Errorf("Title = %q, want %q", p.Title, "Test Paper")
	}
	if len(p.Authors) != 2 || p.Authors[0] != "Alice" || p.Authors[1] != "Bob" {
		t.Errorf("Authors = %v", p.Authors)
	}
	if len(p.Affiliations) != 2 || p.Affiliations[0] != "Example University" || p.Affiliations[1] != "" {
		t.Errorf("Affiliations = %v, want parallel list with empty slot", p.Affiliations)
	}
	if p.Abstract != "Abstract content" {
		t.Errorf("Abstract = %q", p.Abstract)
	}
	if len(p.Categories) != 2 || p.Categories[0] != "cs.DC" {
		t.Errorf("Categories = %v", p.Categories)
	}
	if p.Link != "https://arxiv.org/abs/2401.00003v1" {
		t.Errorf("Link = %q", p.Link)
	}
	if p.PDFURL != "https://arxiv.org/pdf/2401.00003v1" {
		t.Errorf("PDFURL = %q", p.PDFURL)
	}
	if !p.PublishedAt.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt = %v", p.PublishedAt)
	}
	if !p.UpdatedAt.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("UpdatedAt = %v", p.UpdatedAt)
	}
}

func TestFetchCategory_TruncatesToMax(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedXML(
			entryXML("2401.00001v1", "2024-01-01T00:00:00Z"),
			entryXML("2401.00002v1", "2024-01-02T00:00:00Z"),
			entryXML("2401.00003v1", "2024-01-03T00:00:00Z"),
		))
	}))
	defer ts.Close()

	orig := apiBase
	apiBase = ts.URL
	defer func() { apiBase = orig }()

	papers, err := testClient().FetchCategory(context.Background(), "cs.DC", 2)
	if err != nil {
		t.Fatalf("FetchCategory: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("got %d papers, want 2", len(papers))
	}
}

func TestFetchCategory_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, feedXML(sampleEntry))
	}))
	defer ts.Close()

	orig := apiBase
	apiBase = ts.URL
	defer func() { apiBase = orig }()

	papers, err := testClient().FetchCategory(context.Background(), "cs.DC", 25)
	if err != nil {
		t.Fatalf("FetchCategory: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("got %d papers, want 1", len(papers))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestFetchCategory_ExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	orig := apiBase
	apiBase = ts.URL
	defer func() { apiBase = orig }()

	_, err := testClient().FetchCategory(context.Background(), "cs.DC", 25)
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestFetchCategory_MalformedResponseNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, "this is not XML")
	}))
	defer ts.Close()

	orig := apiBase
	apiBase = ts.URL
	defer func() { apiBase = orig }()

	_, err := testClient().FetchCategory(context.Background(), "cs.DC", 25)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on malformed response)", got)
	}
}

func TestFetchAll_IsolatesFailedCategories(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "cs.OS") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, feedXML(sampleEntry))
	}))
	defer ts.Close()

	orig := apiBase
	apiBase = ts.URL
	defer func() { apiBase = orig }()

	papers := testClient().FetchAll(context.Background(), []string{"cs.DC", "cs.OS"}, 25, io.Discard)
	if len(papers) != 1 {
		t.Fatalf("got %d papers, want 1 from the healthy category", len(papers))
	}
	if papers[0].ArxivID != "2401.00003v1" {
		t.Errorf("ArxivID = %q", papers[0].ArxivID)
	}
}

func TestFetchAll_DedupesAndSortsByPublishedDescending(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "cs.DC") {
			fmt.Fprint(w, feedXML(
				entryXML("2401.00001v1", "2024-01-01T00:00:00Z"),
				entryXML("2401.00002v1", "2024-01-02T00:00:00Z"),
			))
			return
		}
		fmt.Fprint(w, feedXML(
			entryXML("2401.00002v1", "2024-01-02T00:00:00Z"),
			entryXML("2401.00003v1", "2024-01-03T00:00:00Z"),
		))
	}))
	defer ts.Close()

	orig := apiBase
	apiBase = ts.URL
	defer func() { apiBase = orig }()

	papers := testClient().FetchAll(context.Background(), []string{"cs.DC", "cs.OS"}, 25, io.Discard)
	if len(papers) != 3 {
		t.Fatalf("got %d papers, want 3 after dedup", len(papers))
	}
	for i := 1; i < len(papers); i++ {
		if papers[i].PublishedAt.After(papers[i-1].PublishedAt) {
			t.Errorf("papers not sorted by published descending at index %d", i)
		}
	}
	seen := map[string]bool{}
	for _, p := range papers {
		if seen[p.ArxivID] {
			t.Errorf("duplicate identifier %s", p.ArxivID)
		}
		seen[p.ArxivID] = true
	}
}

func TestParseEntry_Defaults(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry atomEntry
		check func(t *testing.T, p types.ScrapedPaper)
	}{
		{
			name:  "missing title defaults to Untitled",
			entry: atomEntry{ID: "http://arxiv.org/abs/2401.00009v2"},
			check: func(t *testing.T, p types.ScrapedPaper) {
				if p.Title != "Untitled" {
					t.Errorf("Title = %q, want Untitled", p.Title)
				}
			},
		},
		{
			name:  "missing timestamps fall back to now",
			entry: atomEntry{ID: "http://arxiv.org/abs/2401.00009v2"},
			check: func(t *testing.T, p types.ScrapedPaper) {
				if !p.PublishedAt.Equal(now) || !p.UpdatedAt.Equal(now) {
					t.Errorf("timestamps = %v / %v, want %v", p.PublishedAt, p.UpdatedAt, now)
				}
			},
		},
		{
			name: "missing updated falls back to published",
			entry: atomEntry{
				ID:        "http://arxiv.org/abs/2401.00009v2",
				Published: "2024-01-09T00:00:00Z",
			},
			check: func(t *testing.T, p types.ScrapedPaper) {
				want := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
				if !p.UpdatedAt.Equal(want) {
					t.Errorf("UpdatedAt = %v, want published time", p.UpdatedAt)
				}
			},
		},
		{
			name: "link falls back to entry id without alternate link",
			entry: atomEntry{
				ID: "http://arxiv.org/abs/2401.00009v2",
			},
			check: func(t *testing.T, p types.ScrapedPaper) {
				if p.Link != "http://arxiv.org/abs/2401.00009v2" {
					t.Errorf("Link = %q", p.Link)
				}
			},
		},
		{
			name: "non-pdf typed links ignored",
			entry: atomEntry{
				ID:    "http://arxiv.org/abs/2401.00009v2",
				Links: []atomLink{{Href: "https://example.com/doc", Rel: "related", Type: "text/html"}},
			},
			check: func(t *testing.T, p types.ScrapedPaper) {
				if p.PDFURL != "" {
					t.Errorf("PDFURL = %q, want empty", p.PDFURL)
				}
			},
		},
		{
			name: "author without name dropped from both lists",
			entry: atomEntry{
				ID:      "http://arxiv.org/abs/2401.00009v2",
				Authors: []atomAuthor{{Name: "  "}, {Name: "Carol", Affiliation: "Lab"}},
			},
			check: func(t *testing.T, p types.ScrapedPaper) {
				if len(p.Authors) != 1 || len(p.Affiliations) != 1 {
					t.Fatalf("Authors = %v, Affiliations = %v", p.Authors, p.Affiliations)
				}
				if p.Affiliations[0] != "Lab" {
					t.Errorf("Affiliations[0] = %q", p.Affiliations[0])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parseEntry(tt.entry, now))
		})
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://arxiv.org/abs/2401.00003v1", "2401.00003v1"},
		{"https://arxiv.org/abs/2401.00003v1/", "2401.00003v1"},
		{"2401.00003v1", "2401.00003v1"},
		{"http://arxiv.org/abs/cond-mat/0703470v2", "0703470v2"},
	}
	for _, tt := range tests {
		if got := extractID(tt.input); got != tt.want {
			t.Errorf("extractID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
