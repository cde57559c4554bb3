// Package signal turns candidate sentences into scored opportunity cards or
// discarded signals via the LLM.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/database"
	"github.com/TobiSchelling/radar/internal/llm"
	"github.com/TobiSchelling/radar/internal/translate"
)

// Unknown fills narrative fields the model left out.
const Unknown = "Unknown"

const defaultMaxTokens = 1024

// Result holds exactly one of Card or Discarded.
type Result struct {
	Card      *database.OpportunityCard
	Discarded *database.DiscardedSignal
}

// Accepted reports whether the result is an opportunity card.
func (r *Result) Accepted() bool {
	return r != nil && r.Card != nil
}

// Generator structures candidate sentences using an LLM provider.
type Generator struct {
	provider  llm.Provider
	threshold int
	maxTokens int
	now       func() time.Time
}

// NewGenerator creates a generator that accepts scores at or above threshold.
// A maxTokens of 0 uses the default response limit.
func NewGenerator(provider llm.Provider, threshold, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Generator{provider: provider, threshold: threshold, maxTokens: maxTokens, now: time.Now}
}

// Generate structures one candidate sentence. It returns nil when the
// provider is unavailable, the call fails, or the response is malformed.
func (g *Generator) Generate(ctx context.Context, candidate, contextTitle, reportID string) *Result {
	if !llm.Available(g.provider) {
		log.Warn().Msg("LLM provider not available, skipping structuring")
		return nil
	}

	responseText, err := g.provider.Generate(ctx, llm.Request{
		System:    systemInstruction,
		Prompt:    FormatPrompt(candidate, contextTitle, g.threshold),
		JSON:      true,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("LLM call failed")
		return nil
	}

	var parsed map[string]any
	if err := llm.DecodeJSONResponse(responseText, &parsed); err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("malformed LLM response")
		return nil
	}
	if parsed == nil {
		log.Error().Str("report_id", reportID).Msg("LLM response was not a JSON object")
		return nil
	}

	return g.build(parsed, candidate, reportID)
}

func (g *Generator) build(parsed map[string]any, candidate, reportID string) *Result {
	score := clampInt(getInt(parsed, "importance_score", 0), 0, 100)
	now := g.now()

	if score < g.threshold {
		return &Result{Discarded: &database.DiscardedSignal{
			SignalID:        newID("disc"),
			ReportID:        reportID,
			Reason:          fmt.Sprintf("low score: %d", score),
			RawText:         candidate,
			ImportanceScore: score,
			CreatedAt:       now,
		}}
	}

	return &Result{Card: &database.OpportunityCard{
		CardID:             newID("card"),
		PainHolder:         getString(parsed, "pain_holder", Unknown),
		PainHolderKo:       getOptional(parsed, "pain_holder_ko"),
		PainContext:        getString(parsed, "pain_context", Unknown),
		PainContextKo:      getOptional(parsed, "pain_context_ko"),
		PainMechanism:      getString(parsed, "pain_mechanism", Unknown),
		PainMechanismKo:    getOptional(parsed, "pain_mechanism_ko"),
		AttackVector:       getString(parsed, "attack_vector", Unknown),
		AttackVectorKo:     getOptional(parsed, "attack_vector_ko"),
		EvidenceSentence:   candidate,
		EvidenceSentenceKo: getOptional(parsed, "evidence_sentence_ko"),
		IndustryTags:       getStrings(parsed, "industry_tags"),
		TechnologyTags:     getStrings(parsed, "technology_tags"),
		ImportanceScore:    score,
		ConfidenceScore:    clampFloat(getFloat(parsed, "confidence_score", 0), 0, 1),
		ReportID:           reportID,
		MarketSize:         getOptional(parsed, "market_size"),
		ValueType:          getOptional(parsed, "value_type"),
		ExpectedImpact:     getOptional(parsed, "expected_impact"),
		Timeline:           getOptional(parsed, "timeline"),
		CreatedAt:          now,
	}}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fallback
}

// getOptional treats placeholder echoes such as "..." as missing.
func getOptional(m map[string]any, key string) *string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && !translate.IsPlaceholder(s) {
			return &s
		}
	}
	return nil
}

func getStrings(m map[string]any, key string) []string {
	out := []string{}
	arr, ok := m[key].([]any)
	if !ok {
		return out
	}
	for _, v := range arr {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func getFloat(m map[string]any, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			var f float64
			if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
				return f
			}
		}
	}
	return fallback
}

func getInt(m map[string]any, key string, fallback int) int {
	f := getFloat(m, key, math.NaN())
	if math.IsNaN(f) {
		return fallback
	}
	return int(math.Round(f))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
