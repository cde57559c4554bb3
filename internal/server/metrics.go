package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/database"
)

var statuses = []database.IngestionStatus{
	database.StatusPending,
	database.StatusProcessed,
	database.StatusFailed,
	database.StatusSkipped,
}

// repositoryCollector exports repository counts, read at scrape time.
type repositoryCollector struct {
	db *database.DB

	documents *prometheus.Desc
	cards     *prometheus.Desc
	discarded *prometheus.Desc
	runs      *prometheus.Desc
	lastRun   *prometheus.Desc
}

func newRepositoryCollector(db *database.DB) *repositoryCollector {
	return &repositoryCollector{
		db:        db,
		documents: prometheus.NewDesc("radar_documents", "Source documents by ingestion status.", []string{"status"}, nil),
		cards:     prometheus.NewDesc("radar_opportunity_cards", "Stored opportunity cards.", nil, nil),
		discarded: prometheus.NewDesc("radar_discarded_signals", "Stored discarded signals.", nil, nil),
		runs:      prometheus.NewDesc("radar_runs_total", "Pipeline runs recorded in the ledger.", nil, nil),
		lastRun:   prometheus.NewDesc("radar_last_run_timestamp_seconds", "Finish time of the most recent run.", nil, nil),
	}
}

func (c *repositoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.documents
	ch <- c.cards
	ch <- c.discarded
	ch <- c.runs
	ch <- c.lastRun
}

func (c *repositoryCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.db.GetStats()
	if err != nil {
		log.Error().Err(err).Msg("collecting repository metrics")
		return
	}
	for _, s := range statuses {
		ch <- prometheus.MustNewConstMetric(c.documents, prometheus.GaugeValue, float64(stats.ByStatus[s]), string(s))
	}
	ch <- prometheus.MustNewConstMetric(c.cards, prometheus.GaugeValue, float64(stats.Cards))
	ch <- prometheus.MustNewConstMetric(c.discarded, prometheus.GaugeValue, float64(stats.Discarded))
	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(stats.Runs))

	if last, err := c.db.LastRun(); err == nil && last != nil {
		ch <- prometheus.MustNewConstMetric(c.lastRun, prometheus.GaugeValue, float64(last.FinishedAt.Unix()))
	}
}
