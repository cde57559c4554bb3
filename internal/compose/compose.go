// Package compose renders opportunity cards as a Markdown digest.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/radar/internal/database"
)

const emptyDigest = "No opportunities have been extracted yet."

// Options controls digest rendering.
type Options struct {
	// Korean prefers the secondary-language fields where they are set.
	Korean bool
	// MinScore drops cards scoring below it.
	MinScore int
	// Limit caps the number of cards per report. Zero means no cap.
	Limit int
}

type section struct {
	doc   *database.SourceDocument
	cards []database.OpportunityCard
}

// Digest groups cards by source document and renders them as Markdown.
// Reports are ordered by their best card, cards by importance then
// confidence.
func Digest(docs []database.SourceDocument, cards []database.OpportunityCard, opts Options) string {
	byID := make(map[string]*database.SourceDocument, len(docs))
	for i := range docs {
		byID[docs[i].ReportID] = &docs[i]
	}

	groups := make(map[string]*section)
	var order []string
	total := 0
	for _, c := range cards {
		if c.ImportanceScore < opts.MinScore {
			continue
		}
		g, ok := groups[c.ReportID]
		if !ok {
			g = &section{doc: byID[c.ReportID]}
			groups[c.ReportID] = g
			order = append(order, c.ReportID)
		}
		g.cards = append(g.cards, c)
		total++
	}

	if total == 0 {
		return "# Opportunity Radar\n\n" + emptyDigest + "\n"
	}

	for _, g := range groups {
		sort.SliceStable(g.cards, func(i, j int) bool {
			a, b := g.cards[i], g.cards[j]
			if a.ImportanceScore != b.ImportanceScore {
				return a.ImportanceScore > b.ImportanceScore
			}
			return a.ConfidenceScore > b.ConfidenceScore
		})
		if opts.Limit > 0 && len(g.cards) > opts.Limit {
			g.cards = g.cards[:opts.Limit]
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return groups[order[i]].cards[0].ImportanceScore > groups[order[j]].cards[0].ImportanceScore
	})

	var b strings.Builder
	b.WriteString("# Opportunity Radar\n\n")
	fmt.Fprintf(&b, "_%d opportunities from %d reports_\n", total, len(order))
	for _, id := range order {
		b.WriteString("\n---\n\n")
		writeSection(&b, id, groups[id], opts)
	}
	return b.String()
}

func writeSection(b *strings.Builder, reportID string, g *section, opts Options) {
	if g.doc == nil {
		fmt.Fprintf(b, "## %s\n\n", reportID)
	} else {
		fmt.Fprintf(b, "## %s\n\n", pick(g.doc.Title, g.doc.TitleKo, opts.Korean))
		fmt.Fprintf(b, "[%s](%s) · %s\n\n", g.doc.Source, g.doc.URL, g.doc.PublishedAt.Format("2006-01-02"))
	}

	for _, c := range g.cards {
		fmt.Fprintf(b, "### %s\n\n", pick(c.AttackVector, c.AttackVectorKo, opts.Korean))
		fmt.Fprintf(b, "Score **%d** · confidence %.2f\n\n", c.ImportanceScore, c.ConfidenceScore)
		fmt.Fprintf(b, "- **Who:** %s\n", pick(c.PainHolder, c.PainHolderKo, opts.Korean))
		fmt.Fprintf(b, "- **Where:** %s\n", pick(c.PainContext, c.PainContextKo, opts.Korean))
		fmt.Fprintf(b, "- **Why:** %s\n", pick(c.PainMechanism, c.PainMechanismKo, opts.Korean))
		writeOptional(b, "Market size", c.MarketSize)
		writeOptional(b, "Value type", c.ValueType)
		writeOptional(b, "Expected impact", c.ExpectedImpact)
		writeOptional(b, "Timeline", c.Timeline)
		if tags := append(append([]string{}, c.IndustryTags...), c.TechnologyTags...); len(tags) > 0 {
			fmt.Fprintf(b, "- **Tags:** %s\n", strings.Join(tags, ", "))
		}
		fmt.Fprintf(b, "\n> %s\n\n", pick(c.EvidenceSentence, c.EvidenceSentenceKo, opts.Korean))
	}
}

func writeOptional(b *strings.Builder, label string, v *string) {
	if v != nil && *v != "" {
		fmt.Fprintf(b, "- **%s:** %s\n", label, *v)
	}
}

func pick(primary string, secondary *string, preferSecondary bool) string {
	if preferSecondary && secondary != nil && *secondary != "" {
		return *secondary
	}
	return primary
}
