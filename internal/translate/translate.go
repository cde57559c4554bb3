// Package translate adds secondary-language renderings of document titles
// and summaries.
package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/database"
	"github.com/TobiSchelling/radar/internal/llm"
)

const defaultMaxTokens = 1024

const systemInstruction = "You are a professional translator for business intelligence."

const translationPrompt = `Translate the following Title and Summary of a business report into professional Korean.
Return ONLY a JSON object: {"title_ko": "...", "summary_ko": "..."}

Title: %s
Summary: %s`

type translation struct {
	TitleKo   *string `json:"title_ko"`
	SummaryKo *string `json:"summary_ko"`
}

// Translator translates documents in place and caches results for its
// lifetime.
type Translator struct {
	provider  llm.Provider
	maxTokens int

	mu    sync.Mutex
	cache map[string]translation
}

// NewTranslator creates a translator backed by provider. A maxTokens of 0
// uses the default response limit.
func NewTranslator(provider llm.Provider, maxTokens int) *Translator {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Translator{provider: provider, maxTokens: maxTokens, cache: make(map[string]translation)}
}

func cacheKey(doc *database.SourceDocument) string {
	return doc.Title + "|" + doc.SummaryText()
}

// TranslateDocument populates doc's secondary-language title and summary.
// It is a no-op when doc is already translated or the provider is
// unavailable. Failures are logged and leave the fields unset.
func (t *Translator) TranslateDocument(ctx context.Context, doc *database.SourceDocument) {
	if doc.IsTranslated() {
		log.Debug().Str("report_id", doc.ReportID).Msg("document already translated")
		return
	}

	key := cacheKey(doc)
	t.mu.Lock()
	cached, ok := t.cache[key]
	t.mu.Unlock()
	if ok {
		doc.TitleKo, doc.SummaryKo = cached.TitleKo, cached.SummaryKo
		log.Debug().Str("report_id", doc.ReportID).Msg("using cached translation")
		return
	}

	if !llm.Available(t.provider) {
		log.Warn().Msg("LLM provider not available, skipping translation")
		return
	}

	resp, err := t.provider.Generate(ctx, llm.Request{
		System:    systemInstruction,
		Prompt:    fmt.Sprintf(translationPrompt, doc.Title, doc.SummaryText()),
		JSON:      true,
		MaxTokens: t.maxTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("report_id", doc.ReportID).Msg("translation call failed")
		return
	}

	var tr translation
	if err := llm.DecodeJSONResponse(resp, &tr); err != nil {
		log.Error().Err(err).Str("report_id", doc.ReportID).Msg("failed to parse translation")
		return
	}
	tr.TitleKo, tr.SummaryKo = nonEmpty(tr.TitleKo), nonEmpty(tr.SummaryKo)

	doc.TitleKo, doc.SummaryKo = tr.TitleKo, tr.SummaryKo

	t.mu.Lock()
	t.cache[key] = tr
	t.mu.Unlock()

	log.Info().Str("report_id", doc.ReportID).Msg("translated document")
}

// ClearCache drops all cached translations.
func (t *Translator) ClearCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.cache)
}

// CacheSize returns the number of cached translations.
func (t *Translator) CacheSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
