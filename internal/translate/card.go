package translate

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/database"
	"github.com/TobiSchelling/radar/internal/llm"
)

const cardSystemInstruction = "You are a professional Korean translator for business/consulting text. " +
	"Translate the user's text into natural Korean. " +
	"Rules: output Korean only; keep proper nouns and acronyms (e.g., ESG, AI, PwC) as-is; " +
	"keep quotation marks; do not add explanations."

// Reasons a card's Korean field needs repair.
const (
	ReasonPlaceholder = "placeholder"
	ReasonNoHangul    = "no hangul"
)

var placeholders = map[string]struct{}{
	"...":  {},
	"…":    {},
	"-":    {},
	"null": {},
	"None": {},
}

// IsPlaceholder reports whether s is blank or a stand-in value a model
// echoes instead of translating.
func IsPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := placeholders[s]
	return ok
}

// HasHangul reports whether s contains at least one Hangul syllable.
func HasHangul(s string) bool {
	for _, r := range s {
		if r >= '가' && r <= '힣' {
			return true
		}
	}
	return false
}

// FieldFix describes one Korean card field that needs repair.
type FieldFix struct {
	CardID string
	Field  string
	Reason string
	// Source is the text sent for translation: the English field for
	// placeholders, the existing value when it is in another language.
	Source string
	Old    *string
	New    *string
}

// Skipped reports whether there was no source text to translate.
func (f FieldFix) Skipped() bool {
	return strings.TrimSpace(f.Source) == ""
}

type cardField struct {
	name    string
	english string
	korean  **string
}

func cardFields(c *database.OpportunityCard) []cardField {
	return []cardField{
		{"pain_holder_ko", c.PainHolder, &c.PainHolderKo},
		{"pain_context_ko", c.PainContext, &c.PainContextKo},
		{"pain_mechanism_ko", c.PainMechanism, &c.PainMechanismKo},
		{"attack_vector_ko", c.AttackVector, &c.AttackVectorKo},
		{"evidence_sentence_ko", c.EvidenceSentence, &c.EvidenceSentenceKo},
	}
}

// PlanCardFixes lists the Korean fields of card that are missing, a
// placeholder, or contain no Hangul. It makes no LLM calls.
func PlanCardFixes(card *database.OpportunityCard) []FieldFix {
	var fixes []FieldFix
	for _, f := range cardFields(card) {
		ko := *f.korean
		fix := FieldFix{CardID: card.CardID, Field: f.name, Old: ko}
		switch {
		case ko == nil || IsPlaceholder(*ko):
			fix.Reason = ReasonPlaceholder
			fix.Source = strings.TrimSpace(f.english)
		case !HasHangul(*ko):
			fix.Reason = ReasonNoHangul
			fix.Source = strings.TrimSpace(*ko)
		default:
			continue
		}
		fixes = append(fixes, fix)
	}
	return fixes
}

// TranslateCard re-translates card's broken Korean fields in place and
// returns the fields it examined. Fields without source text are left
// unchanged, as are fields whose translation failed.
func (t *Translator) TranslateCard(ctx context.Context, card *database.OpportunityCard) []FieldFix {
	fixes := PlanCardFixes(card)
	if len(fixes) == 0 {
		return nil
	}
	if !llm.Available(t.provider) {
		log.Warn().Msg("LLM provider not available, skipping card translation")
		return fixes
	}

	fields := make(map[string]**string, len(fixes))
	for _, f := range cardFields(card) {
		fields[f.name] = f.korean
	}

	for i := range fixes {
		fix := &fixes[i]
		if fix.Skipped() {
			log.Debug().Str("card_id", card.CardID).Str("field", fix.Field).Msg("no source text, skipping")
			continue
		}
		if ctx.Err() != nil {
			break
		}

		resp, err := t.provider.Generate(ctx, llm.Request{
			System:    cardSystemInstruction,
			Prompt:    fix.Source,
			MaxTokens: t.maxTokens,
		})
		if err != nil {
			log.Error().Err(err).Str("card_id", card.CardID).Str("field", fix.Field).Msg("card translation failed")
			continue
		}
		ko := strings.TrimSpace(resp)
		if IsPlaceholder(ko) {
			log.Warn().Str("card_id", card.CardID).Str("field", fix.Field).Msg("empty card translation")
			continue
		}

		fix.New = &ko
		*fields[fix.Field] = fix.New
		log.Debug().Str("card_id", card.CardID).Str("field", fix.Field).Str("reason", fix.Reason).Msg("fixed Korean field")
	}
	return fixes
}
