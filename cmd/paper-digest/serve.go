package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/digest"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/fulltext"
	"github.com/pdiddy/paper-digest/internal/httpapi"
	"github.com/pdiddy/paper-digest/internal/schedule"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/internal/summary"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the paper API and run scheduled refreshes",
	Long: `Serve exposes stored papers over HTTP (GET /api/papers, /api/categories,
GET /healthz) and accepts refresh triggers (POST /api/refresh). One refresh
runs at startup; further refreshes run daily at the configured time unless
the schedule is disabled.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("no-startup-refresh", false, "skip the refresh normally run at startup")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	skipStartup, _ := cmd.Flags().GetBool("no-startup-refresh")
	cfg := buildConfig()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	svc := digest.NewService(cfg, st,
		feed.NewClient(cfg.Feed),
		fulltext.NewClient(cfg.FullText),
		summary.New(cfg.LLM),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runRefreshCycle := func(trigger string) {
		log.Printf("refresh started (%s)", trigger)
		stats, err := svc.Refresh(ctx, nil, nil, os.Stderr)
		if errors.Is(err, digest.ErrRefreshInProgress) {
			log.Printf("refresh skipped (%s): already in progress", trigger)
			return
		}
		if err != nil {
			log.Printf("refresh failed (%s): %v", trigger, err)
			return
		}
		log.Printf("refresh done (%s): fetched %d, created %d, summarized %d",
			trigger, stats.Fetched, stats.Created, stats.Summarized)
	}

	if !skipStartup {
		go runRefreshCycle("startup")
	}

	if cfg.Schedule.Enabled {
		daily, err := schedule.NewDaily(cfg.Schedule)
		if err != nil {
			return fmt.Errorf("configuring schedule: %w", err)
		}
		go daily.Run(ctx, func(time.Time) { runRefreshCycle("schedule") })
		log.Printf("daily refresh scheduled at %02d:%02d %s",
			cfg.Schedule.Hour, cfg.Schedule.Minute, cfg.Schedule.Timezone)
	}

	api := httpapi.NewServer(cfg.Server, st, svc, cfg.Feed.Categories)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
