// Package collect discovers new source documents from a syndication feed.
package collect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/database"
)

// Discoverer turns unseen feed entries into pending documents.
type Discoverer struct {
	reader *FeedReader
	now    func() time.Time
}

// NewDiscoverer creates a discoverer over reader.
func NewDiscoverer(reader *FeedReader) *Discoverer {
	return &Discoverer{reader: reader, now: time.Now}
}

// Discover fetches the feed and returns documents whose URL is not in
// known. An unreachable feed yields no documents and no error.
func (d *Discoverer) Discover(ctx context.Context, known map[string]struct{}) []database.SourceDocument {
	entries, err := d.reader.Fetch(ctx)
	if err != nil {
		log.Error().Err(err).Str("feed", d.reader.URL()).Msg("feed fetch failed")
		return nil
	}

	docs := NewDocuments(entries, known, d.reader.Source(), d.now())
	log.Info().Int("entries", len(entries)).Int("new", len(docs)).Str("source", d.reader.Source()).Msg("discovered documents")
	return docs
}

// NewDocuments builds pending documents for entries whose URL is neither in
// known nor repeated earlier in entries. known is not modified.
func NewDocuments(entries []FeedEntry, known map[string]struct{}, source string, now time.Time) []database.SourceDocument {
	seen := make(map[string]struct{}, len(entries))
	var docs []database.SourceDocument
	for _, e := range entries {
		if _, ok := known[e.URL]; ok {
			continue
		}
		if _, ok := seen[e.URL]; ok {
			continue
		}
		seen[e.URL] = struct{}{}

		var summary *string
		if e.Summary != "" {
			s := e.Summary
			summary = &s
		}
		docs = append(docs, database.SourceDocument{
			ReportID:        "rep_" + uuid.NewString(),
			Title:           e.Title,
			Source:          source,
			URL:             e.URL,
			PublishedAt:     e.PublishedAt,
			IngestionStatus: database.StatusPending,
			Summary:         summary,
			CreatedAt:       now,
		})
	}
	return docs
}
