// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists papers in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// listSeparator joins authors and affiliations; the two columns stay
// index-aligned so affiliations can be re-split per author.
const listSeparator = ";"

// categorySeparator joins the category list.
const categorySeparator = ","

// Store manages the papers SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the papers database at cfg.Path, creating parent
// directories as needed. The schema is created if it does not exist and
// older databases are migrated in place.
func Open(cfg types.StoreConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "WAL"
	}
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 30 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=%d",
		cfg.Path, journalMode, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			arxiv_id TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			authors TEXT,
			author_affiliations TEXT,
			abstract TEXT,
			summary TEXT,
			summary_model TEXT,
			summary_language TEXT,
			categories TEXT,
			link TEXT,
			pdf_url TEXT,
			published_at TEXT,
			updated_at TEXT,
			created_at TEXT,
			last_summarized_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_published_at ON papers(published_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	return s.backfillColumns()
}

// backfillColumns adds columns introduced after the initial schema so
// databases created by older builds keep working.
func (s *Store) backfillColumns() error {
	rows, err := s.db.Query(`PRAGMA table_info(papers)`)
	if err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("scanning table info: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating table info: %w", err)
	}

	added := map[string]string{
		"author_affiliations": "TEXT",
		"summary_model":       "TEXT",
		"summary_language":    "TEXT",
		"last_summarized_at":  "TEXT",
	}
	for name, typ := range added {
		if existing[name] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE papers ADD COLUMN %s %s`, name, typ)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("adding column %s: %w", name, err)
		}
	}
	return nil
}

const paperColumns = `arxiv_id, title, authors, author_affiliations, abstract,
	summary, summary_model, summary_language, categories, link, pdf_url,
	published_at, updated_at, created_at, last_summarized_at`

// GetByArxivID returns the stored paper with the given arXiv identifier,
// or nil when none exists.
func (s *Store) GetByArxivID(ctx context.Context, arxivID string) (*types.Paper, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE arxiv_id = ?`, arxivID)
	p, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading paper %s: %w", arxivID, err)
	}
	return p, nil
}

// UpsertAll writes the given papers in one transaction. Existing rows,
// matched on arxiv_id, are updated in place; created_at is preserved on
// update.
func (s *Store) UpsertAll(ctx context.Context, papers []*types.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (`+paperColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(arxiv_id) DO UPDATE SET
			title=excluded.title, authors=excluded.authors,
			author_affiliations=excluded.author_affiliations,
			abstract=excluded.abstract, summary=excluded.summary,
			summary_model=excluded.summary_model,
			summary_language=excluded.summary_language,
			categories=excluded.categories, link=excluded.link,
			pdf_url=excluded.pdf_url, published_at=excluded.published_at,
			updated_at=excluded.updated_at,
			last_summarized_at=excluded.last_summarized_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range papers {
		_, err := stmt.ExecContext(ctx,
			p.ArxivID, p.Title,
			joinList(p.Authors, listSeparator),
			joinList(p.Affiliations, listSeparator),
			p.Abstract, p.Summary, p.SummaryModel, p.SummaryLanguage,
			joinList(p.Categories, categorySeparator),
			p.Link, p.PDFURL,
			formatTime(p.PublishedAt), formatTime(p.UpdatedAt), formatTime(p.CreatedAt),
			formatTimePtr(p.LastSummarizedAt),
		)
		if err != nil {
			return fmt.Errorf("upserting paper %s: %w", p.ArxivID, err)
		}
	}

	return tx.Commit()
}

// ListOptions narrows and pages a paper listing.
type ListOptions struct {
	Category string
	Limit    int
	Offset   int
}

// ListPapers returns papers ordered by publication date, newest first,
// along with the total number of papers matching the filter.
func (s *Store) ListPapers(ctx context.Context, opts ListOptions) ([]types.Paper, int, error) {
	where := categoryFilter(opts.Category)

	countQuery, countArgs, err := sq.Select("COUNT(*)").From("papers").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting papers: %w", err)
	}

	builder := sq.Select(paperColumns).From("papers").Where(where).
		OrderBy("published_at DESC", "arxiv_id ASC")
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		builder = builder.Offset(uint64(opts.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating papers: %w", err)
	}
	return papers, total, nil
}

// categoryFilter matches category as an exact member of the stored
// comma-joined list, not a substring.
func categoryFilter(category string) sq.Sqlizer {
	if category == "" {
		return sq.Expr("1 = 1")
	}
	return sq.Or{
		sq.Eq{"categories": category},
		sq.Like{"categories": category + categorySeparator + "%"},
		sq.Like{"categories": "%" + categorySeparator + category},
		sq.Like{"categories": "%" + categorySeparator + category + categorySeparator + "%"},
	}
}

// DistinctCategories returns every category that appears on any stored
// paper, sorted.
func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT categories FROM papers WHERE categories IS NOT NULL AND categories != ''`)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	defer rows.Close()

	set := map[string]bool{}
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return nil, fmt.Errorf("scanning categories: %w", err)
		}
		for _, c := range strings.Split(joined, categorySeparator) {
			if c = strings.TrimSpace(c); c != "" {
				set[c] = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}

	categories := make([]string, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

// ExportAll returns every stored paper ordered by publication date,
// newest first.
func (s *Store) ExportAll(ctx context.Context) ([]types.Paper, error) {
	papers, _, err := s.ListPapers(ctx, ListOptions{})
	return papers, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*types.Paper, error) {
	var (
		p                 types.Paper
		authors           sql.NullString
		affiliations      sql.NullString
		categories        sql.NullString
		publishedAt       sql.NullString
		updatedAt         sql.NullString
		createdAt         sql.NullString
		lastSummarizedAt  sql.NullString
		abstract, summary sql.NullString
		model, language   sql.NullString
		link, pdfURL      sql.NullString
	)
	err := row.Scan(&p.ArxivID, &p.Title, &authors, &affiliations, &abstract,
		&summary, &model, &language, &categories, &link, &pdfURL,
		&publishedAt, &updatedAt, &createdAt, &lastSummarizedAt)
	if err != nil {
		return nil, err
	}

	p.Authors = splitList(authors.String, listSeparator)
	p.Affiliations = splitAffiliations(affiliations.String, len(p.Authors))
	p.Abstract = abstract.String
	p.Summary = summary.String
	p.SummaryModel = model.String
	p.SummaryLanguage = language.String
	p.Categories = splitList(categories.String, categorySeparator)
	p.Link = link.String
	p.PDFURL = pdfURL.String
	p.PublishedAt = parseTime(publishedAt.String)
	p.UpdatedAt = parseTime(updatedAt.String)
	p.CreatedAt = parseTime(createdAt.String)
	if lastSummarizedAt.Valid && lastSummarizedAt.String != "" {
		t := parseTime(lastSummarizedAt.String)
		p.LastSummarizedAt = &t
	}
	return &p, nil
}

func joinList(values []string, sep string) string {
	return strings.Join(values, sep)
}

// splitList drops empty elements; an empty input yields nil.
func splitList(joined, sep string) []string {
	if joined == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(joined, sep) {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// splitAffiliations keeps empty slots so the result stays aligned with
// the author list, padding or truncating to count.
func splitAffiliations(joined string, count int) []string {
	if count == 0 {
		return nil
	}
	values := make([]string, count)
	if joined != "" {
		for i, v := range strings.Split(joined, listSeparator) {
			if i >= count {
				break
			}
			values[i] = v
		}
	}
	return values
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
