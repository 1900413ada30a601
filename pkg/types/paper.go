// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data model and configuration shared across stages.
package types

import (
	"strings"
	"time"
)

// Sentinel values persisted in the summary_model column when no digest text
// exists. They distinguish "no LLM configured" from "LLM attempted and failed";
// a record that was never considered for enrichment carries neither.
const (
	SummaryModelNotRun = "not-run"
	SummaryModelFailed = "llm-failed"
)

// Paper is one persisted arXiv paper record. The arXiv identifier is the
// uniqueness key and keeps its version suffix exactly as delivered by the
// feed (e.g. "2401.00003v1"), so a new revision creates a new record.
type Paper struct {
	// ArxivID is the last path segment of the feed entry id.
	ArxivID string `json:"arxiv_id" yaml:"arxiv_id"`

	// Title is the paper title, "Untitled" when the feed omits it.
	Title string `json:"title" yaml:"title"`

	// Authors lists author names in feed order.
	Authors []string `json:"authors" yaml:"authors"`

	// Affiliations is parallel to Authors; an author with no known
	// affiliation holds an empty string at the same index.
	Affiliations []string `json:"affiliations" yaml:"affiliations"`

	// Abstract is the feed summary text.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Summary is the LLM digest, empty until enrichment succeeds.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// SummaryModel is the model that produced Summary, or one of the
	// SummaryModel* sentinels when Summary is empty.
	SummaryModel string `json:"summary_model,omitempty" yaml:"summary_model,omitempty"`

	// SummaryLanguage is the language tag of Summary (e.g. "zh").
	SummaryLanguage string `json:"summary_language,omitempty" yaml:"summary_language,omitempty"`

	// Categories lists arXiv category codes in feed order.
	Categories []string `json:"categories" yaml:"categories"`

	// Link is the canonical abstract page URL.
	Link string `json:"link" yaml:"link"`

	// PDFURL is the PDF link advertised by the feed, if any.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`

	// LastSummarizedAt is set only when enrichment succeeded.
	LastSummarizedAt *time.Time `json:"last_summarized_at,omitempty" yaml:"last_summarized_at,omitempty"`
}

// HasSummary reports whether the record carries a non-empty digest.
// A record with a summary is never resummarized.
func (p *Paper) HasSummary() bool {
	return strings.TrimSpace(p.Summary) != ""
}

// ApplyScraped overwrites the mutable content fields from a scraped item.
// Identity, creation time, and summary state are untouched.
func (p *Paper) ApplyScraped(s ScrapedPaper) {
	p.Title = s.Title
	p.Authors = s.Authors
	p.Affiliations = s.Affiliations
	p.Abstract = s.Abstract
	p.Categories = s.Categories
	p.Link = s.Link
	p.PDFURL = s.PDFURL
	p.PublishedAt = s.PublishedAt
	p.UpdatedAt = s.UpdatedAt
}

// MarkSummarized records a successful enrichment.
func (p *Paper) MarkSummarized(text, model, language string, at time.Time) {
	p.Summary = text
	p.SummaryModel = model
	p.SummaryLanguage = language
	t := at
	p.LastSummarizedAt = &t
}

// MarkSummaryNotRun records that enrichment was skipped because no LLM
// capability is configured.
func (p *Paper) MarkSummaryNotRun() {
	p.Summary = ""
	p.SummaryModel = SummaryModelNotRun
	p.SummaryLanguage = ""
	p.LastSummarizedAt = nil
}

// MarkSummaryFailed records that an enrichment attempt produced no digest.
func (p *Paper) MarkSummaryFailed() {
	p.Summary = ""
	p.SummaryModel = SummaryModelFailed
	p.SummaryLanguage = ""
	p.LastSummarizedAt = nil
}

// ScrapedPaper is one feed entry as parsed by the feed fetcher. It exists
// only for the duration of a refresh cycle and is never persisted directly.
type ScrapedPaper struct {
	ArxivID      string
	Title        string
	Authors      []string
	Affiliations []string
	Abstract     string
	Categories   []string
	Link         string
	PDFURL       string
	PublishedAt  time.Time
	UpdatedAt    time.Time
}

// RefreshStats holds the counters for one refresh invocation.
type RefreshStats struct {
	Fetched    int `json:"fetched"`
	Created    int `json:"created"`
	Summarized int `json:"summarized"`
}
