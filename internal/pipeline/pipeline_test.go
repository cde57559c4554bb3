package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/radar/internal/config"
	"github.com/TobiSchelling/radar/internal/database"
	"github.com/TobiSchelling/radar/internal/signal"
)

type fakeDiscoverer struct {
	docs []database.SourceDocument
}

func (f *fakeDiscoverer) Discover(_ context.Context, known map[string]struct{}) []database.SourceDocument {
	var out []database.SourceDocument
	for _, d := range f.docs {
		if _, ok := known[d.URL]; !ok {
			out = append(out, d)
		}
	}
	return out
}

type fakeRetriever struct {
	texts   map[string]string
	panicOn string
	calls   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, url string) string {
	f.calls++
	if url == f.panicOn {
		panic("parser exploded")
	}
	return f.texts[url]
}

// fakeStructurer accepts every candidate unless it contains "minor", which
// is discarded.
type fakeStructurer struct {
	calls int
}

func (f *fakeStructurer) Generate(_ context.Context, candidate, _, reportID string) *signal.Result {
	f.calls++
	if strings.Contains(candidate, "minor") {
		return &signal.Result{Discarded: &database.DiscardedSignal{
			SignalID: fmt.Sprintf("disc_%d", f.calls), ReportID: reportID, Reason: "low score: 10", RawText: candidate, ImportanceScore: 10,
		}}
	}
	return &signal.Result{Card: &database.OpportunityCard{
		CardID: fmt.Sprintf("card_%d", f.calls), ReportID: reportID, EvidenceSentence: candidate, ImportanceScore: 80,
		IndustryTags: []string{}, TechnologyTags: []string{},
	}}
}

type fakeTranslator struct {
	calls int
}

func (f *fakeTranslator) TranslateDocument(_ context.Context, doc *database.SourceDocument) {
	f.calls++
	title := doc.Title + " (ko)"
	doc.TitleKo = &title
}

type harness struct {
	db         *database.DB
	cfg        *config.Config
	discoverer *fakeDiscoverer
	retriever  *fakeRetriever
	structurer *fakeStructurer
	translator *fakeTranslator
	pipeline   *Pipeline
}

func newHarness(t *testing.T, docs ...database.SourceDocument) *harness {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{
		db:         db,
		cfg:        config.Default(),
		discoverer: &fakeDiscoverer{docs: docs},
		retriever:  &fakeRetriever{texts: map[string]string{}},
		structurer: &fakeStructurer{},
		translator: &fakeTranslator{},
	}
	h.build()
	return h
}

func (h *harness) build() {
	h.pipeline = NewWithComponents(h.cfg, h.db, Components{
		Discoverer: h.discoverer,
		Retriever:  h.retriever,
		Structurer: h.structurer,
		Translator: h.translator,
	})
	h.pipeline.sleep = func(context.Context, time.Duration) error { return nil }
}

func doc(id, url string) database.SourceDocument {
	return database.SourceDocument{
		ReportID:        id,
		Title:           "Report " + id,
		Source:          "PwC",
		URL:             url,
		IngestionStatus: database.StatusPending,
	}
}

const sampleText = "Retailers face a growing labour shortage in rural stores. " +
	"This is a minor issue for most regional chains today. " +
	"Everything else went according to plan."

func statusOf(t *testing.T, db *database.DB, id string) database.IngestionStatus {
	t.Helper()
	d := db.FindDocument(id)
	if d == nil {
		t.Fatalf("document %s not found", id)
	}
	return d.IngestionStatus
}

func TestDiscoverAndProcess(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/a"))
	h.retriever.texts["https://example.com/a"] = sampleText

	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatalf("DiscoverAndProcess: %v", err)
	}
	if r.Discovered != 1 || r.Processed != 1 || r.Failed != 0 {
		t.Errorf("unexpected result %+v", r)
	}
	if r.Accepted != 1 || r.Discarded != 1 {
		t.Errorf("expected 1 accepted and 1 discarded, got %+v", r)
	}

	if statusOf(t, h.db, "rep_1") != database.StatusProcessed {
		t.Error("expected document processed")
	}
	stored := h.db.FindDocument("rep_1")
	if stored.Attempts != 1 {
		t.Errorf("attempts = %d", stored.Attempts)
	}
	if stored.TitleKo == nil {
		t.Error("expected translation persisted")
	}
	if len(h.db.FindAllAccepted()) != 1 || len(h.db.FindAllDiscarded()) != 1 {
		t.Error("expected signals persisted")
	}

	last, err := h.db.LastRun()
	if err != nil || last == nil {
		t.Fatalf("expected run recorded: %v", err)
	}
	if last.Discovered != 1 || last.Processed != 1 || last.Accepted != 1 || last.Discarded != 1 {
		t.Errorf("unexpected ledger entry %+v", last)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	h := newHarness(t,
		doc("rep_1", "https://example.com/1"),
		doc("rep_2", "https://example.com/2"),
		doc("rep_3", "https://example.com/3"),
	)
	for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		h.retriever.texts[u] = sampleText
	}
	h.retriever.panicOn = "https://example.com/2"

	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatalf("DiscoverAndProcess: %v", err)
	}
	if r.Processed != 2 || r.Failed != 1 {
		t.Errorf("expected 2 processed and 1 failed, got %+v", r)
	}
	if statusOf(t, h.db, "rep_1") != database.StatusProcessed ||
		statusOf(t, h.db, "rep_2") != database.StatusFailed ||
		statusOf(t, h.db, "rep_3") != database.StatusProcessed {
		t.Error("unexpected statuses after partial failure")
	}
	for _, c := range h.db.FindAllAccepted() {
		if c.ReportID == "rep_2" {
			t.Error("failed document must not contribute cards")
		}
	}
	if len(h.db.FindAllAccepted()) != 2 {
		t.Errorf("expected 2 cards, got %d", len(h.db.FindAllAccepted()))
	}
}

func TestCandidateCap(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/big"))
	var sentences []string
	for i := range 35 {
		sentences = append(sentences, fmt.Sprintf("Firm number %d faces a serious staffing shortage this year.", i))
	}
	h.retriever.texts["https://example.com/big"] = strings.Join(sentences, " ")

	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.structurer.calls != config.DefaultMaxSignalsPerDocument {
		t.Errorf("expected %d structuring calls, got %d", config.DefaultMaxSignalsPerDocument, h.structurer.calls)
	}
	if r.Accepted != config.DefaultMaxSignalsPerDocument {
		t.Errorf("accepted = %d", r.Accepted)
	}
}

func TestDeduplicationAcrossRuns(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/a"), doc("rep_2", "https://example.com/b"))
	h.retriever.texts["https://example.com/a"] = sampleText
	h.retriever.texts["https://example.com/b"] = sampleText

	if _, err := h.pipeline.DiscoverAndProcess(context.Background()); err != nil {
		t.Fatal(err)
	}
	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Discovered != 0 || r.Processed != 0 {
		t.Errorf("second run should find nothing new, got %+v", r)
	}
	if n := len(h.db.FindAllDocuments()); n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}
	if h.retriever.calls != 2 {
		t.Errorf("processed documents must not be fetched again, got %d fetches", h.retriever.calls)
	}
}

func TestEmptyTextMarksFailed(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/empty"))

	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Failed != 1 || r.Processed != 0 {
		t.Errorf("unexpected result %+v", r)
	}
	if statusOf(t, h.db, "rep_1") != database.StatusFailed {
		t.Error("expected failed status")
	}
	if h.structurer.calls != 0 {
		t.Error("structurer must not be called without text")
	}
}

func TestZeroCandidatesStillProcessed(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/calm"))
	h.retriever.texts["https://example.com/calm"] = "Everything went according to plan this quarter."

	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Processed != 1 || r.Accepted != 0 {
		t.Errorf("unexpected result %+v", r)
	}
	if statusOf(t, h.db, "rep_1") != database.StatusProcessed {
		t.Error("expected processed status")
	}
}

func TestFailedNotRetriedByDefault(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/flaky"))

	if _, err := h.pipeline.DiscoverAndProcess(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.retriever.texts["https://example.com/flaky"] = sampleText

	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Requeued != 0 || r.Processed != 0 {
		t.Errorf("failed document must stay failed, got %+v", r)
	}
	if statusOf(t, h.db, "rep_1") != database.StatusFailed {
		t.Error("expected failed status")
	}
}

func TestFailedRetriedWithinMaxAttempts(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/flaky"))
	h.cfg.Pipeline.MaxAttempts = 2
	h.build()

	if _, err := h.pipeline.DiscoverAndProcess(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.retriever.texts["https://example.com/flaky"] = sampleText

	r, err := h.pipeline.DiscoverAndProcess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Requeued != 1 || r.Processed != 1 {
		t.Errorf("expected retry to succeed, got %+v", r)
	}
	if d := h.db.FindDocument("rep_1"); d.Attempts != 2 || d.IngestionStatus != database.StatusProcessed {
		t.Errorf("unexpected document %+v", d)
	}
}

func TestCancelledRunLeavesDocumentsPending(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/a"))
	h.retriever.texts["https://example.com/a"] = sampleText

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := h.pipeline.DiscoverAndProcess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Discovered != 1 || r.Processed != 0 {
		t.Errorf("unexpected result %+v", r)
	}
	if statusOf(t, h.db, "rep_1") != database.StatusPending {
		t.Error("expected document left pending")
	}
}

func TestReprocess(t *testing.T) {
	h := newHarness(t, doc("rep_1", "https://example.com/a"))
	h.retriever.texts["https://example.com/a"] = sampleText

	if _, err := h.pipeline.DiscoverAndProcess(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.discoverer.docs = append(h.discoverer.docs, doc("rep_2", "https://example.com/new"))

	r, err := h.pipeline.Reprocess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Discovered != 0 || r.Processed != 1 {
		t.Errorf("unexpected result %+v", r)
	}
	if len(h.db.FindAllAccepted()) != 1 || len(h.db.FindAllDiscarded()) != 1 {
		t.Errorf("signals should be regenerated, not accumulated: %d cards, %d discarded",
			len(h.db.FindAllAccepted()), len(h.db.FindAllDiscarded()))
	}
	if h.db.FindDocument("rep_2") != nil {
		t.Error("reprocess must not discover")
	}
}

func TestDryRun(t *testing.T) {
	h := newHarness(t)
	if err := h.db.Documents.SaveAll([]database.SourceDocument{doc("rep_1", "https://example.com/a")}); err != nil {
		t.Fatal(err)
	}
	h.cfg.LLM.APIKeyEnv = "RADAR_TEST_DRY_RUN_KEY"
	t.Setenv("RADAR_TEST_DRY_RUN_KEY", "")

	lines := DryRun(h.cfg, h.db)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "1 documents would be processed") {
		t.Errorf("unexpected dry run output:\n%s", joined)
	}
	if !strings.Contains(joined, "$RADAR_TEST_DRY_RUN_KEY is not set") {
		t.Errorf("expected missing key notice:\n%s", joined)
	}
	if h.retriever.calls != 0 || h.structurer.calls != 0 {
		t.Error("dry run must not fetch or structure")
	}
	if statusOf(t, h.db, "rep_1") != database.StatusPending {
		t.Error("dry run must not change state")
	}
}

func TestDryRunOllamaMakesNoRequests(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	h := newHarness(t)
	h.cfg.LLM.Provider = "ollama"
	h.cfg.LLM.OllamaURL = srv.URL
	h.cfg.Feed.URL = srv.URL + "/feed"

	joined := strings.Join(DryRun(h.cfg, h.db), "\n")
	if !strings.Contains(joined, "would use Ollama model") {
		t.Errorf("unexpected dry run output:\n%s", joined)
	}
	if hits != 0 {
		t.Errorf("dry run made %d HTTP requests", hits)
	}
}
