// Package pipeline runs discovery and per-document signal extraction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/candidate"
	"github.com/TobiSchelling/radar/internal/collect"
	"github.com/TobiSchelling/radar/internal/config"
	"github.com/TobiSchelling/radar/internal/database"
	"github.com/TobiSchelling/radar/internal/fetch"
	"github.com/TobiSchelling/radar/internal/llm"
	"github.com/TobiSchelling/radar/internal/signal"
	"github.com/TobiSchelling/radar/internal/translate"
)

var errEmptyContent = errors.New("no text extracted")

// Discoverer yields new pending documents whose URL is not in known.
type Discoverer interface {
	Discover(ctx context.Context, known map[string]struct{}) []database.SourceDocument
}

// Retriever returns the plain text at url, or "" on failure.
type Retriever interface {
	Retrieve(ctx context.Context, url string) string
}

// Structurer turns one candidate sentence into a card, a discarded signal,
// or nil.
type Structurer interface {
	Generate(ctx context.Context, candidate, contextTitle, reportID string) *signal.Result
}

// Translator fills a document's secondary-language fields in place.
type Translator interface {
	TranslateDocument(ctx context.Context, doc *database.SourceDocument)
}

// Components are the collaborators a Pipeline drives.
type Components struct {
	Discoverer Discoverer
	Retriever  Retriever
	Structurer Structurer
	Translator Translator
}

// Result holds the summary counts of one run.
type Result struct {
	Discovered int
	Requeued   int
	Processed  int
	Failed     int
	Accepted   int
	Discarded  int
}

// Pipeline orchestrates discovery, retrieval, selection, and structuring.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	c        Components
	selector *candidate.Selector
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a pipeline wired to the network feed, fetcher, and LLM
// provider described by cfg.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	provider := llm.CreateProvider(cfg.LLM, cfg.APIKey())
	return NewWithComponents(cfg, db, Components{
		Discoverer: collect.NewDiscoverer(collect.NewFeedReader(cfg.Feed)),
		Retriever:  fetch.NewContentFetcher(cfg.Fetch),
		Structurer: signal.NewGenerator(provider, cfg.Pipeline.AcceptanceThreshold, cfg.LLM.MaxTokens),
		Translator: translate.NewTranslator(provider, cfg.LLM.MaxTokens),
	})
}

// NewWithComponents creates a pipeline over the given collaborators.
func NewWithComponents(cfg *config.Config, db *database.DB, c Components) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		c:        c,
		selector: candidate.New(cfg.Pipeline.MinSentenceLength, cfg.Pipeline.MaxSentenceLength),
		sleep:    sleepContext,
	}
}

// DiscoverAndProcess discovers new documents, persists them, then processes
// every pending document. Only storage and ledger failures are returned.
func (p *Pipeline) DiscoverAndProcess(ctx context.Context) (*Result, error) {
	started := time.Now()
	r := &Result{}

	docs := p.db.Documents.FindAll()
	discovered := p.c.Discoverer.Discover(ctx, database.KnownURLs(docs))
	if len(discovered) > 0 {
		docs = append(docs, discovered...)
		if err := p.db.Documents.SaveAll(docs); err != nil {
			return nil, fmt.Errorf("saving discovered documents: %w", err)
		}
	}
	r.Discovered = len(discovered)
	log.Info().Int("discovered", r.Discovered).Int("total", len(docs)).Msg("discovery complete")

	r.Requeued = p.requeueFailed(docs)

	if err := p.processAll(ctx, docs, r); err != nil {
		return r, err
	}
	if err := p.record(started, r); err != nil {
		return r, err
	}
	return r, nil
}

// Reprocess discards all cards and discarded signals, marks every document
// pending, and processes them again without discovery.
func (p *Pipeline) Reprocess(ctx context.Context) (*Result, error) {
	started := time.Now()
	if err := p.db.ClearSignals(); err != nil {
		return nil, err
	}
	if _, err := p.db.MarkAllPending(); err != nil {
		return nil, err
	}

	r := &Result{}
	if err := p.processAll(ctx, p.db.Documents.FindAll(), r); err != nil {
		return r, err
	}
	if err := p.record(started, r); err != nil {
		return r, err
	}
	return r, nil
}

// DryRun reports what a run would do. It only reads local state: no feed,
// document, or LLM requests are made.
func DryRun(cfg *config.Config, db *database.DB) []string {
	docs := db.Documents.FindAll()
	counts := database.CountByStatus(docs)

	retryable := 0
	for _, d := range docs {
		if isRetryable(d, cfg.Pipeline.MaxAttempts) {
			retryable++
		}
	}

	lines := []string{
		fmt.Sprintf("[dry-run] would fetch feed %s", cfg.Feed.URL),
		fmt.Sprintf("[dry-run] %d documents stored (%d pending, %d processed, %d failed)",
			len(docs), counts[database.StatusPending], counts[database.StatusProcessed], counts[database.StatusFailed]),
		fmt.Sprintf("[dry-run] %d failed documents would be retried", retryable),
		fmt.Sprintf("[dry-run] %d documents would be processed, at most %d signals each",
			counts[database.StatusPending]+retryable, cfg.Pipeline.MaxSignalsPerDocument),
	}
	switch {
	case strings.EqualFold(cfg.LLM.Provider, "ollama"):
		lines = append(lines, fmt.Sprintf("[dry-run] would use Ollama model %s at %s", cfg.LLM.Model, cfg.LLM.OllamaURL))
	case cfg.APIKey() == "":
		lines = append(lines, fmt.Sprintf("[dry-run] $%s is not set: structuring and translation would be skipped", cfg.LLM.APIKeyEnv))
	default:
		lines = append(lines, fmt.Sprintf("[dry-run] would use OpenAI model %s", cfg.LLM.Model))
	}
	return lines
}

func isRetryable(d database.SourceDocument, maxAttempts int) bool {
	return d.IngestionStatus == database.StatusFailed && d.Attempts < maxAttempts
}

func (p *Pipeline) requeueFailed(docs []database.SourceDocument) int {
	n := 0
	for i := range docs {
		if isRetryable(docs[i], p.cfg.Pipeline.MaxAttempts) {
			docs[i].IngestionStatus = database.StatusPending
			n++
		}
	}
	if n > 0 {
		log.Info().Int("requeued", n).Msg("retrying failed documents")
	}
	return n
}

// processAll processes pending documents in stored order, then persists
// statuses and extracted signals.
func (p *Pipeline) processAll(ctx context.Context, docs []database.SourceDocument, r *Result) error {
	var cards []database.OpportunityCard
	var discarded []database.DiscardedSignal

	pending := 0
	for _, d := range docs {
		if d.IngestionStatus == database.StatusPending {
			pending++
		}
	}
	log.Info().Int("pending", pending).Msg("processing pending documents")

	n := 0
	for i := range docs {
		doc := &docs[i]
		if doc.IngestionStatus != database.StatusPending {
			continue
		}
		if ctx.Err() != nil {
			log.Warn().Msg("run cancelled, leaving remaining documents pending")
			break
		}
		n++
		log.Info().Int("n", n).Int("of", pending).Str("report_id", doc.ReportID).Str("title", doc.Title).Msg("processing document")

		out, err := p.processDocument(ctx, doc)
		switch {
		case err != nil && ctx.Err() != nil:
			doc.Attempts--
			log.Warn().Str("report_id", doc.ReportID).Msg("document interrupted, left pending")
		case err != nil:
			doc.IngestionStatus = database.StatusFailed
			r.Failed++
			log.Error().Err(err).Str("report_id", doc.ReportID).Str("url", doc.URL).Msg("document failed")
		default:
			doc.IngestionStatus = database.StatusProcessed
			r.Processed++
			cards = append(cards, out.cards...)
			discarded = append(discarded, out.discarded...)
			log.Info().Str("report_id", doc.ReportID).Int("candidates", out.candidates).
				Int("accepted", len(out.cards)).Int("discarded", len(out.discarded)).Msg("document processed")
			if err := p.sleep(ctx, p.cfg.Pipeline.DocumentDelay); err != nil {
				log.Debug().Err(err).Msg("delay interrupted")
			}
		}
	}

	r.Accepted = len(cards)
	r.Discarded = len(discarded)
	return p.finalize(docs, cards, discarded)
}

type documentOutcome struct {
	candidates int
	cards      []database.OpportunityCard
	discarded  []database.DiscardedSignal
}

func (p *Pipeline) processDocument(ctx context.Context, doc *database.SourceDocument) (out documentOutcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic processing document: %v", rec)
		}
	}()

	doc.Attempts++

	p.c.Translator.TranslateDocument(ctx, doc)

	text := p.c.Retriever.Retrieve(ctx, doc.URL)
	if text == "" {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, errEmptyContent
	}

	candidates := p.selector.Select(text)
	if limit := p.cfg.Pipeline.MaxSignalsPerDocument; limit > 0 && len(candidates) > limit {
		log.Debug().Int("candidates", len(candidates)).Int("cap", limit).Msg("capping candidates")
		candidates = candidates[:limit]
	}
	out.candidates = len(candidates)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res := p.c.Structurer.Generate(ctx, c, doc.Title, doc.ReportID)
		switch {
		case res == nil:
		case res.Card != nil:
			out.cards = append(out.cards, *res.Card)
			log.Debug().Int("score", res.Card.ImportanceScore).Str("report_id", doc.ReportID).Msg("accepted signal")
		case res.Discarded != nil:
			out.discarded = append(out.discarded, *res.Discarded)
			log.Debug().Int("score", res.Discarded.ImportanceScore).Str("report_id", doc.ReportID).Msg("discarded signal")
		}
	}
	return out, nil
}

func (p *Pipeline) finalize(docs []database.SourceDocument, cards []database.OpportunityCard, discarded []database.DiscardedSignal) error {
	if err := p.db.Documents.SaveAll(docs); err != nil {
		return fmt.Errorf("saving documents: %w", err)
	}
	if err := p.db.Cards.Append(cards); err != nil {
		return fmt.Errorf("saving cards: %w", err)
	}
	if len(discarded) > 0 {
		if err := p.db.Discarded.Append(discarded); err != nil {
			return fmt.Errorf("saving discarded signals: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) record(started time.Time, r *Result) error {
	_, err := p.db.RecordRun(database.RunReport{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Discovered: r.Discovered,
		Processed:  r.Processed,
		Failed:     r.Failed,
		Accepted:   r.Accepted,
		Discarded:  r.Discarded,
	})
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
