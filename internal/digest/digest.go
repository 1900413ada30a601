// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest orchestrates one refresh cycle: fetch feeds, reconcile
// with stored records, enrich with LLM digests, and commit the batch.
package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/internal/summary"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrRefreshInProgress is returned when a refresh is requested while an
// earlier one is still running. Overlapping cycles would race on the
// final batch commit, so they are rejected rather than queued.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// FeedFetcher retrieves scraped papers for a set of categories.
type FeedFetcher interface {
	FetchAll(ctx context.Context, categories []string, maxResults int, w io.Writer) []types.ScrapedPaper
}

// FullTextFetcher retrieves the plain text of a paper's PDF. An empty
// string means no text is available.
type FullTextFetcher interface {
	Fetch(ctx context.Context, arxivID, pdfURL string) string
}

// Summarizer digests paper text.
type Summarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, title, abstract, fullText string) summary.Outcome
}

// ProgressEvent is published once before the reconcile loop (Current 0,
// Item nil) and once per processed item (Current starting at 1).
type ProgressEvent struct {
	Current int
	Total   int
	Stats   types.RefreshStats
	Item    *types.ScrapedPaper
}

// ProgressFunc receives progress events. Panics are contained at the
// publish site and never abort the refresh.
type ProgressFunc func(ProgressEvent)

// Service runs refresh cycles against a paper store.
type Service struct {
	cfg        types.Config
	store      *store.Store
	feed       FeedFetcher
	fulltext   FullTextFetcher
	summarizer Summarizer

	busy atomic.Bool
	now  func() time.Time
}

// NewService builds a refresh service.
func NewService(cfg types.Config, st *store.Store, feed FeedFetcher, fulltext FullTextFetcher, summarizer Summarizer) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		feed:       feed,
		fulltext:   fulltext,
		summarizer: summarizer,
		now:        time.Now,
	}
}

// Refresh runs one cycle: fetch the given categories (all configured ones
// when nil), reconcile every scraped item with the store, enrich records
// without a digest, and commit the batch in one transaction. Warnings go
// to w; progress may be nil. Only one refresh runs at a time.
func (s *Service) Refresh(ctx context.Context, categories []string, progress ProgressFunc, w io.Writer) (types.RefreshStats, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return types.RefreshStats{}, ErrRefreshInProgress
	}
	defer s.busy.Store(false)

	if len(categories) == 0 {
		categories = s.cfg.Feed.Categories
	}

	scraped := s.feed.FetchAll(ctx, categories, s.cfg.Feed.MaxResultsPerCategory, w)

	var stats types.RefreshStats
	stats.Fetched = len(scraped)

	s.publish(progress, ProgressEvent{Total: len(scraped), Stats: stats})

	staged := make([]*types.Paper, 0, len(scraped))
	for i, item := range scraped {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := s.store.GetByArxivID(ctx, item.ArxivID)
		if err != nil {
			return stats, fmt.Errorf("loading record %s: %w", item.ArxivID, err)
		}
		if record == nil {
			record = &types.Paper{
				ArxivID:   item.ArxivID,
				CreatedAt: s.now().UTC(),
			}
			stats.Created++
		}
		record.ApplyScraped(item)

		s.enrich(ctx, record, &stats, w)

		staged = append(staged, record)

		current := item
		s.publish(progress, ProgressEvent{
			Current: i + 1,
			Total:   len(scraped),
			Stats:   stats,
			Item:    &current,
		})
	}

	if err := s.store.UpsertAll(ctx, staged); err != nil {
		return stats, fmt.Errorf("committing refresh batch: %w", err)
	}
	return stats, nil
}

// enrich decides and performs at most one summarization for the record.
// Records that already carry a digest are never resummarized, and records
// with no abstract are left untouched.
func (s *Service) enrich(ctx context.Context, record *types.Paper, stats *types.RefreshStats, w io.Writer) {
	if record.HasSummary() {
		return
	}
	if strings.TrimSpace(record.Abstract) == "" {
		return
	}
	if !s.summarizer.Enabled() {
		record.MarkSummaryNotRun()
		return
	}

	fullText := s.fulltext.Fetch(ctx, record.ArxivID, record.PDFURL)

	outcome := s.summarizer.Summarize(ctx, record.Title, record.Abstract, fullText)
	switch outcome.Status {
	case summary.StatusSummarized:
		record.MarkSummarized(outcome.Text, outcome.Model, outcome.Language, s.now().UTC())
		stats.Summarized++
	case summary.StatusNotConfigured:
		record.MarkSummaryNotRun()
	case summary.StatusFailed:
		fmt.Fprintf(w, "warning: summarization failed for %s\n", record.ArxivID)
		record.MarkSummaryFailed()
	default:
		fmt.Fprintf(w, "warning: unknown summarization outcome %q for %s\n", outcome.Status, record.ArxivID)
		record.MarkSummaryFailed()
	}
}

// publish delivers one progress event, containing any panic from the
// receiver.
func (s *Service) publish(progress ProgressFunc, event ProgressEvent) {
	if progress == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	progress(event)
}
