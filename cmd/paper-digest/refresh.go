package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/digest"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/fulltext"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/internal/summary"
)

const progressTitleWidth = 80

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the configured categories and summarize new papers",
	Long: `Refresh runs one cycle: fetch the category feeds, store new and updated
papers, and write an LLM digest for each paper that does not have one yet.
Without an LLM API key papers are stored unsummarized.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringSliceP("category", "c", nil, "category to fetch (repeatable; default: configured categories)")

	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	categories, _ := cmd.Flags().GetStringSlice("category")
	cfg := buildConfig()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	summarizer := summary.New(cfg.LLM)
	if !summarizer.Enabled() {
		fmt.Fprintln(os.Stderr, "no LLM API key configured; papers will be stored without digests")
	}

	svc := digest.NewService(cfg, st,
		feed.NewClient(cfg.Feed),
		fulltext.NewClient(cfg.FullText),
		summarizer,
	)

	progress := func(e digest.ProgressEvent) {
		if e.Item == nil {
			fmt.Printf("fetched %d paper(s)\n", e.Total)
			return
		}
		title := e.Item.Title
		if runes := []rune(title); len(runes) > progressTitleWidth {
			title = string(runes[:progressTitleWidth-3]) + "..."
		}
		fmt.Printf("[%d/%d] %s %s\n", e.Current, e.Total, e.Item.ArxivID, title)
	}

	stats, err := svc.Refresh(cmd.Context(), categories, progress, os.Stderr)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	fmt.Printf("\nfetched: %d, created: %d, summarized: %d\n",
		stats.Fetched, stats.Created, stats.Summarized)
	return nil
}
