package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/radar/internal/database"
	"github.com/TobiSchelling/radar/internal/llm"
)

type mockProvider struct {
	response   string
	err        error
	configured bool
	calls      int
	last       llm.Request
}

func (m *mockProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	m.calls++
	m.last = req
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return m.configured }

func ptr(s string) *string { return &s }

func newDoc() *database.SourceDocument {
	return &database.SourceDocument{
		ReportID: "rep_1",
		Title:    "Global Workforce Survey",
		Summary:  ptr("Employers report skill shortages."),
	}
}

const okResponse = `{"title_ko": "글로벌 인력 조사", "summary_ko": "고용주들은 기술 부족을 보고합니다."}`

func TestTranslateDocument(t *testing.T) {
	p := &mockProvider{response: okResponse, configured: true}
	doc := newDoc()

	NewTranslator(p, 0).TranslateDocument(context.Background(), doc)

	if doc.TitleKo == nil || *doc.TitleKo != "글로벌 인력 조사" {
		t.Errorf("title_ko = %v", doc.TitleKo)
	}
	if !doc.IsTranslated() {
		t.Error("expected document to be translated")
	}
	if !p.last.JSON || p.last.System != systemInstruction {
		t.Errorf("unexpected request %+v", p.last)
	}
	if p.last.MaxTokens != 1024 {
		t.Errorf("max tokens = %d, want default 1024", p.last.MaxTokens)
	}
	if !strings.Contains(p.last.Prompt, "Global Workforce Survey") || !strings.Contains(p.last.Prompt, "skill shortages") {
		t.Errorf("prompt missing document text: %q", p.last.Prompt)
	}
}

func TestTranslateAlreadyTranslated(t *testing.T) {
	p := &mockProvider{response: okResponse, configured: true}
	doc := newDoc()
	doc.TitleKo, doc.SummaryKo = ptr("제목"), ptr("요약")

	tr := NewTranslator(p, 0)
	tr.TranslateDocument(context.Background(), doc)
	tr.TranslateDocument(context.Background(), doc)

	if p.calls != 0 {
		t.Errorf("expected 0 calls, got %d", p.calls)
	}
	if *doc.TitleKo != "제목" {
		t.Error("existing translation must not be overwritten")
	}
}

func TestTranslateCacheHit(t *testing.T) {
	p := &mockProvider{response: okResponse, configured: true}
	tr := NewTranslator(p, 0)

	tr.TranslateDocument(context.Background(), newDoc())
	second := newDoc()
	second.ReportID = "rep_2"
	tr.TranslateDocument(context.Background(), second)

	if p.calls != 1 {
		t.Errorf("expected 1 call, got %d", p.calls)
	}
	if !second.IsTranslated() {
		t.Error("expected cached translation applied")
	}
	if tr.CacheSize() != 1 {
		t.Errorf("cache size = %d", tr.CacheSize())
	}

	tr.ClearCache()
	tr.TranslateDocument(context.Background(), newDoc())
	if p.calls != 2 {
		t.Errorf("expected a call after clearing cache, got %d", p.calls)
	}
}

func TestTranslateUnavailable(t *testing.T) {
	p := &mockProvider{response: okResponse}
	doc := newDoc()

	NewTranslator(p, 0).TranslateDocument(context.Background(), doc)
	NewTranslator(nil, 0).TranslateDocument(context.Background(), doc)

	if p.calls != 0 || doc.TitleKo != nil {
		t.Error("unavailable provider must be a no-op")
	}
}

func TestTranslateFailuresLeaveFieldsUnset(t *testing.T) {
	for name, p := range map[string]*mockProvider{
		"bad json":  {response: "certainly! here you go", configured: true},
		"transport": {err: errors.New("timeout"), configured: true},
	} {
		tr := NewTranslator(p, 0)
		doc := newDoc()
		tr.TranslateDocument(context.Background(), doc)
		if doc.TitleKo != nil || doc.SummaryKo != nil {
			t.Errorf("%s: fields should stay unset", name)
		}
		if tr.CacheSize() != 0 {
			t.Errorf("%s: failure must not be cached", name)
		}
	}
}

func TestTranslateNilSummary(t *testing.T) {
	p := &mockProvider{response: okResponse, configured: true}
	doc := &database.SourceDocument{ReportID: "rep_3", Title: "Only a title"}

	NewTranslator(p, 0).TranslateDocument(context.Background(), doc)

	if !strings.Contains(p.last.Prompt, "Summary: ") {
		t.Errorf("prompt = %q", p.last.Prompt)
	}
	if doc.TitleKo == nil {
		t.Error("expected title translation")
	}
}

func TestTranslateDocumentMaxTokens(t *testing.T) {
	p := &mockProvider{response: okResponse, configured: true}
	NewTranslator(p, 256).TranslateDocument(context.Background(), newDoc())
	if p.last.MaxTokens != 256 {
		t.Errorf("max tokens = %d, want 256", p.last.MaxTokens)
	}
}
