// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httpapi exposes the read API and the refresh trigger over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/paper-digest/internal/digest"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Refresher triggers one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context, categories []string, progress digest.ProgressFunc, w io.Writer) (types.RefreshStats, error)
}

// Server serves paper listings and accepts refresh requests.
type Server struct {
	cfg       types.ServerConfig
	store     *store.Store
	refresher Refresher

	// configured categories, the fallback when the store is empty
	categories []string
}

// NewServer builds the HTTP API server.
func NewServer(cfg types.ServerConfig, st *store.Store, refresher Refresher, categories []string) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		refresher:  refresher,
		categories: categories,
	}
}

// Handler builds the gin engine with all routes registered.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/papers", s.handleListPapers)
		api.GET("/categories", s.handleCategories)
		api.POST("/refresh", s.handleRefresh)
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListPapers(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	papers, total, err := s.store.ListPapers(c.Request.Context(), store.ListOptions{
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]paperView, 0, len(papers))
	for i := range papers {
		views = append(views, newPaperView(&papers[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"papers": views,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	categories, err := s.store.DistinctCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(categories) == 0 {
		categories = s.categories
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (s *Server) handleRefresh(c *gin.Context) {
	if s.cfg.AdminToken != "" && c.GetHeader("X-Admin-Token") != s.cfg.AdminToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}

	var req struct {
		Categories []string `json:"categories"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	stats, err := s.refresher.Refresh(c.Request.Context(), req.Categories, nil, io.Discard)
	if errors.Is(err, digest.ErrRefreshInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// paperView is the JSON shape served to clients. Empty summary state maps
// to nulls so clients can distinguish "no digest" without knowing the
// sentinel encoding.
type paperView struct {
	ArxivID          string   `json:"arxiv_id"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	Affiliations     []string `json:"affiliations"`
	Abstract         string   `json:"abstract"`
	Summary          *string  `json:"summary"`
	SummaryModel     *string  `json:"summary_model"`
	SummaryLanguage  *string  `json:"summary_language"`
	Categories       []string `json:"categories"`
	Link             string   `json:"link"`
	PDFURL           string   `json:"pdf_url"`
	PublishedAt      string   `json:"published_at"`
	UpdatedAt        string   `json:"updated_at"`
	LastSummarizedAt *string  `json:"last_summarized_at"`
}

func newPaperView(p *types.Paper) paperView {
	v := paperView{
		ArxivID:      p.ArxivID,
		Title:        p.Title,
		Authors:      orEmpty(p.Authors),
		Affiliations: orEmpty(p.Affiliations),
		Abstract:     p.Abstract,
		Categories:   orEmpty(p.Categories),
		Link:         p.Link,
		PDFURL:       p.PDFURL,
		PublishedAt:  formatTime(p.PublishedAt),
		UpdatedAt:    formatTime(p.UpdatedAt),
	}
	if p.HasSummary() {
		v.Summary = &p.Summary
		v.SummaryModel = &p.SummaryModel
		v.SummaryLanguage = &p.SummaryLanguage
	} else if p.SummaryModel != "" {
		v.SummaryModel = &p.SummaryModel
	}
	if p.LastSummarizedAt != nil {
		at := formatTime(*p.LastSummarizedAt)
		v.LastSummarizedAt = &at
	}
	return v
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
