package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// KnownURLs returns the set of URLs already present in docs.
func KnownURLs(docs []SourceDocument) map[string]struct{} {
	urls := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		urls[d.URL] = struct{}{}
	}
	return urls
}

// CountByStatus tallies documents per ingestion status.
func CountByStatus(docs []SourceDocument) map[IngestionStatus]int {
	counts := make(map[IngestionStatus]int)
	for _, d := range docs {
		counts[d.IngestionStatus]++
	}
	return counts
}

// FindDocument returns the document with the given ID, or nil.
func (db *DB) FindDocument(reportID string) *SourceDocument {
	for _, d := range db.Documents.FindAll() {
		if d.ReportID == reportID {
			return &d
		}
	}
	return nil
}

// FindDocumentsByStatus returns documents in the given state, in stored order.
func (db *DB) FindDocumentsByStatus(status IngestionStatus) []SourceDocument {
	var out []SourceDocument
	for _, d := range db.Documents.FindAll() {
		if d.IngestionStatus == status {
			out = append(out, d)
		}
	}
	return out
}

// UpdateStatus sets the status of one document. Returns false if it does not
// exist.
func (db *DB) UpdateStatus(reportID string, status IngestionStatus) (bool, error) {
	docs := db.Documents.FindAll()
	for i := range docs {
		if docs[i].ReportID != reportID {
			continue
		}
		docs[i].IngestionStatus = status
		if err := db.Documents.SaveAll(docs); err != nil {
			return false, err
		}
		log.Info().Str("report_id", reportID).Str("status", string(status)).Msg("updated document status")
		return true, nil
	}
	log.Warn().Str("report_id", reportID).Msg("document not found for status update")
	return false, nil
}

// RequeueFailed moves every failed document back to pending and resets its
// attempt counter. Returns the number of documents requeued.
func (db *DB) RequeueFailed() (int, error) {
	docs := db.Documents.FindAll()
	n := 0
	for i := range docs {
		if docs[i].IngestionStatus == StatusFailed {
			docs[i].IngestionStatus = StatusPending
			docs[i].Attempts = 0
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := db.Documents.SaveAll(docs); err != nil {
		return 0, fmt.Errorf("saving requeued documents: %w", err)
	}
	return n, nil
}

// MarkAllPending moves every document back to pending, for a full
// reprocessing sweep.
func (db *DB) MarkAllPending() (int, error) {
	docs := db.Documents.FindAll()
	for i := range docs {
		docs[i].IngestionStatus = StatusPending
		docs[i].Attempts = 0
	}
	if err := db.Documents.SaveAll(docs); err != nil {
		return 0, fmt.Errorf("saving documents: %w", err)
	}
	return len(docs), nil
}

// FindCardsByReport returns the cards extracted from one document.
func (db *DB) FindCardsByReport(reportID string) []OpportunityCard {
	var out []OpportunityCard
	for _, c := range db.Cards.FindAll() {
		if c.ReportID == reportID {
			out = append(out, c)
		}
	}
	return out
}
