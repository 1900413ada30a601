// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summary turns paper text into bounded-length LLM digests.
// Long documents are split into overlapping chunks, digested piecewise,
// and consolidated in a final pass.
package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Status tags the outcome of a summarization attempt.
type Status string

const (
	// StatusSummarized means a digest was produced.
	StatusSummarized Status = "summarized"

	// StatusNotConfigured means no LLM credential is configured; no
	// chunking or network activity happened.
	StatusNotConfigured Status = "not-configured"

	// StatusFailed means the attempt produced no digest (no content, or
	// the LLM calls ultimately failed after retries).
	StatusFailed Status = "failed"
)

// Outcome is the result of one summarization attempt. Text, Model, and
// Language are populated only for StatusSummarized.
type Outcome struct {
	Status   Status
	Text     string
	Model    string
	Language string
}

const (
	// minChunkChars is the floor for the chunk window size.
	minChunkChars = 1000

	// chunk partial digests are capped at this many bullet points.
	partialBulletPoints = 3

	defaultMaxRetries = 3
	defaultMaxChunks  = 6
)

// backoffBase controls the base duration for exponential backoff between
// chat call attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

const backoffMax = 10 * time.Second

const systemPrompt = "You are a helpful assistant specialized in summarizing arXiv papers."

// Summarizer produces digests of papers via an external chat API.
type Summarizer struct {
	cfg    types.LLMConfig
	client *chatClient
}

// New builds a Summarizer. When cfg.APIKey is empty the summarizer is
// disabled and every attempt reports StatusNotConfigured.
func New(cfg types.LLMConfig) *Summarizer {
	s := &Summarizer{cfg: cfg}
	if cfg.APIKey != "" {
		s.client = &chatClient{
			baseURL: cfg.BaseURL,
			apiKey:  cfg.APIKey,
			model:   cfg.Model,
			http:    &http.Client{Timeout: cfg.Timeout},
		}
	}
	return s
}

// Enabled reports whether an LLM credential is configured.
func (s *Summarizer) Enabled() bool {
	return s.client != nil
}

// Summarize digests a paper. Full text is preferred over the abstract as
// the source when non-empty. Per-chunk call failures degrade to skipped
// chunks; only the final consolidation (or whole-document) call failing
// yields StatusFailed.
func (s *Summarizer) Summarize(ctx context.Context, title, abstract, fullText string) Outcome {
	if !s.Enabled() {
		return Outcome{Status: StatusNotConfigured}
	}

	abstract = strings.TrimSpace(abstract)
	document := strings.TrimSpace(fullText)
	if document == "" {
		document = abstract
	}
	if document == "" {
		return Outcome{Status: StatusFailed}
	}

	chunks := chunkText(document, s.cfg.ChunkChars, s.cfg.ChunkOverlap)

	var text string
	var err error
	if len(chunks) <= 1 {
		text, err = s.requestDigest(ctx, s.wholePrompt(title, document))
	} else {
		text, err = s.summarizeChunked(ctx, title, abstract, document, chunks)
	}
	if err != nil || strings.TrimSpace(text) == "" {
		return Outcome{Status: StatusFailed}
	}

	return Outcome{
		Status:   StatusSummarized,
		Text:     strings.TrimSpace(text),
		Model:    s.cfg.Model,
		Language: s.cfg.Language,
	}
}

// summarizeChunked digests the first maxChunks chunks individually and
// consolidates the partial digests. When every partial call comes back
// empty it falls back to a single whole-document request.
func (s *Summarizer) summarizeChunked(ctx context.Context, title, abstract, document string, chunks []string) (string, error) {
	maxChunks := s.cfg.MaxChunks
	if maxChunks < 1 {
		maxChunks = defaultMaxChunks
	}
	limited := chunks
	if len(limited) > maxChunks {
		limited = limited[:maxChunks]
	}

	var partials []string
	for i, chunk := range limited {
		prompt := s.chunkPrompt(title, chunk, i+1, len(chunks), len(limited))
		partial, err := s.requestDigest(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			continue
		}
		if trimmed := strings.TrimSpace(partial); trimmed != "" {
			partials = append(partials, trimmed)
		}
	}

	if len(partials) == 0 {
		return s.requestDigest(ctx, s.wholePrompt(title, document))
	}
	return s.requestDigest(ctx, s.mergePrompt(title, abstract, partials))
}

func (s *Summarizer) wholePrompt(title, document string) string {
	return fmt.Sprintf(
		"你是一位研究助理。请用%s总结下面的arXiv论文全文内容，\n"+
			"给出%d条要点列表，突出贡献、方法，并简要说明实验结果。\n"+
			"标题: %s\n正文: %s",
		s.cfg.Language, s.bulletPoints(), title, document)
}

func (s *Summarizer) chunkPrompt(title, chunk string, index, total, analyzed int) string {
	return fmt.Sprintf(
		"你是一位研究助理，正在阅读一篇arXiv论文的部分内容。\n"+
			"请用%s简要提炼该部分的关键信息，\n"+
			"包括核心问题、主要方法、关键实验或理论结果以及与全篇的关系。\n"+
			"请输出%d条以内的要点列表。\n"+
			"标题: %s\n篇章进度: 第%d段，共%d段（分析前%d段）。\n章节内容:\n%s",
		s.cfg.Language, partialBulletPoints, title, index, total, analyzed, chunk)
}

func (s *Summarizer) mergePrompt(title, abstract string, partials []string) string {
	abstractClause := ""
	if abstract != "" {
		abstractClause = "\n摘要供参考: " + abstract
	}
	return fmt.Sprintf(
		"你是一位科研助理。以下是对论文不同部分的提炼笔记，请整合它们，\n"+
			"用%s输出%d条要点，\n"+
			"每条阐述一个核心发现或贡献，并说明对应的证据或方法。\n"+
			"标题: %s\n局部总结: %s%s",
		s.cfg.Language, s.bulletPoints(), title, strings.Join(partials, "\n\n"), abstractClause)
}

func (s *Summarizer) bulletPoints() int {
	if s.cfg.BulletPoints > 0 {
		return s.cfg.BulletPoints
	}
	return 5
}

// requestDigest issues one chat call with retry on transient failures:
// up to maxRetries attempts, exponential backoff with a 1s base doubling
// up to 10s. Non-transient API errors and context cancellation fail
// immediately.
func (s *Summarizer) requestDigest(ctx context.Context, prompt string) (string, error) {
	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffBase << (attempt - 1)
			if delay > backoffMax {
				delay = backoffMax
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := s.client.complete(ctx, systemPrompt, prompt)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		var ae *apiError
		if errors.As(err, &ae) && !ae.transient() {
			return "", fmt.Errorf("chat call failed: %w", err)
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

// chunkText splits text into overlapping windows. The window size is
// clamped to at least minChunkChars and the overlap to at most half the
// window; each window after the first starts overlap characters before the
// previous window's end. Sizes are measured in characters, not bytes, so
// CJK text chunks correctly. Whitespace-only windows are dropped.
func chunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if size < minChunkChars {
		size = minChunkChars
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size/2 {
		overlap = size / 2
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
