package database

import "time"

// IngestionStatus is the lifecycle state of a source document.
type IngestionStatus string

const (
	StatusPending   IngestionStatus = "pending"
	StatusProcessed IngestionStatus = "processed"
	StatusFailed    IngestionStatus = "failed"
	StatusSkipped   IngestionStatus = "skipped"
)

// SourceDocument is one discovered report or article.
type SourceDocument struct {
	ReportID        string          `json:"report_id"`
	Title           string          `json:"title"`
	TitleKo         *string         `json:"title_ko"`
	Source          string          `json:"source"`
	URL             string          `json:"url"`
	PublishedAt     time.Time       `json:"published_at"`
	IngestionStatus IngestionStatus `json:"ingestion_status"`
	Summary         *string         `json:"summary"`
	SummaryKo       *string         `json:"summary_ko"`
	Attempts        int             `json:"attempts"`
	CreatedAt       time.Time       `json:"created_at"`
}

// IsTranslated reports whether both secondary-language fields are populated.
func (d *SourceDocument) IsTranslated() bool {
	return d.TitleKo != nil && *d.TitleKo != "" && d.SummaryKo != nil && *d.SummaryKo != ""
}

// SummaryText returns the summary or an empty string.
func (d *SourceDocument) SummaryText() string {
	if d.Summary == nil {
		return ""
	}
	return *d.Summary
}

// OpportunityCard is an accepted, above-threshold signal.
type OpportunityCard struct {
	CardID             string    `json:"card_id"`
	PainHolder         string    `json:"pain_holder"`
	PainHolderKo       *string   `json:"pain_holder_ko"`
	PainContext        string    `json:"pain_context"`
	PainContextKo      *string   `json:"pain_context_ko"`
	PainMechanism      string    `json:"pain_mechanism"`
	PainMechanismKo    *string   `json:"pain_mechanism_ko"`
	AttackVector       string    `json:"attack_vector"`
	AttackVectorKo     *string   `json:"attack_vector_ko"`
	EvidenceSentence   string    `json:"evidence_sentence"`
	EvidenceSentenceKo *string   `json:"evidence_sentence_ko"`
	IndustryTags       []string  `json:"industry_tags"`
	TechnologyTags     []string  `json:"technology_tags"`
	ImportanceScore    int       `json:"importance_score"`
	ConfidenceScore    float64   `json:"confidence_score"`
	ReportID           string    `json:"report_id"`
	MarketSize         *string   `json:"market_size"`
	ValueType          *string   `json:"value_type"`
	ExpectedImpact     *string   `json:"expected_impact"`
	Timeline           *string   `json:"timeline"`
	CreatedAt          time.Time `json:"created_at"`
}

// DiscardedSignal is a below-threshold extraction kept for audit.
type DiscardedSignal struct {
	SignalID        string    `json:"signal_id"`
	ReportID        string    `json:"report_id"`
	Reason          string    `json:"reason"`
	RawText         string    `json:"raw_text"`
	ImportanceScore int       `json:"importance_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// RunReport holds the summary of one pipeline run.
type RunReport struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Processed  int
	Failed     int
	Accepted   int
	Discarded  int
}

// Stats contains aggregate repository statistics.
type Stats struct {
	TotalDocuments int
	ByStatus       map[IngestionStatus]int
	Cards          int
	Discarded      int
	Runs           int
}
