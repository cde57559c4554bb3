// Package server exposes the repository over read-only HTTP: an HTML digest,
// JSON accessors, and Prometheus metrics.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/radar/internal/compose"
	"github.com/TobiSchelling/radar/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Linkify))

const defaultRunLimit = 20

// Server is the HTTP server for browsing extracted opportunities.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "title" and "content" do not
	// collide.
	pageNames := []string{"index.html", "documents.html", "document.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		newRepositoryCollector(db),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes(registry)
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes(registry *prometheus.Registry) {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /documents", s.handleDocuments)
	s.mux.HandleFunc("GET /documents/{id}", s.handleDocument)

	s.mux.HandleFunc("GET /api/documents", s.apiDocuments)
	s.mux.HandleFunc("GET /api/documents/{id}", s.apiDocument)
	s.mux.HandleFunc("GET /api/cards", s.apiCards)
	s.mux.HandleFunc("GET /api/discarded", s.apiDiscarded)
	s.mux.HandleFunc("GET /api/runs", s.apiRuns)
	s.mux.HandleFunc("GET /api/stats", s.apiStats)
}

func korean(r *http.Request) bool {
	return r.URL.Query().Get("lang") == "ko"
}

func intParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		log.Error().Err(err).Msg("loading stats")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	digest := compose.Digest(s.db.FindAllDocuments(), s.db.FindAllAccepted(), compose.Options{
		Korean:   korean(r),
		MinScore: intParam(r, "min_score", 0),
	})
	s.render(w, "index.html", map[string]any{
		"Korean": korean(r),
		"Stats":  stats,
		"Digest": digest,
	})
}

type documentRow struct {
	Doc   database.SourceDocument
	Cards int
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	perReport := make(map[string]int)
	for _, c := range s.db.FindAllAccepted() {
		perReport[c.ReportID]++
	}

	docs := s.db.FindAllDocuments()
	rows := make([]documentRow, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		rows = append(rows, documentRow{Doc: docs[i], Cards: perReport[docs[i].ReportID]})
	}

	s.render(w, "documents.html", map[string]any{
		"Korean":    korean(r),
		"Documents": rows,
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc := s.db.FindDocument(r.PathValue("id"))
	if doc == nil {
		http.NotFound(w, r)
		return
	}

	digest := compose.Digest([]database.SourceDocument{*doc}, s.db.FindCardsByReport(doc.ReportID), compose.Options{Korean: korean(r)})
	s.render(w, "document.html", map[string]any{
		"Korean":   korean(r),
		"Document": doc,
		"Digest":   digest,
	})
}

func (s *Server) apiDocuments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusOK, s.db.FindAllDocuments())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.db.FindDocumentsByStatus(database.IngestionStatus(status))))
}

func (s *Server) apiDocument(w http.ResponseWriter, r *http.Request) {
	doc := s.db.FindDocument(r.PathValue("id"))
	if doc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"cards":    nonNil(s.db.FindCardsByReport(doc.ReportID)),
	})
}

func (s *Server) apiCards(w http.ResponseWriter, r *http.Request) {
	reportID := r.URL.Query().Get("report_id")
	minScore := intParam(r, "min_score", 0)

	cards := []database.OpportunityCard{}
	for _, c := range s.db.FindAllAccepted() {
		if reportID != "" && c.ReportID != reportID {
			continue
		}
		if c.ImportanceScore < minScore {
			continue
		}
		cards = append(cards, c)
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) apiDiscarded(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.db.FindAllDiscarded())
}

type runJSON struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Discovered int       `json:"discovered"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Accepted   int       `json:"accepted"`
	Discarded  int       `json:"discarded"`
}

func (s *Server) apiRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.RecentRuns(intParam(r, "limit", defaultRunLimit))
	if err != nil {
		log.Error().Err(err).Msg("loading runs")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "loading runs failed"})
		return
	}
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) apiStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		log.Error().Err(err).Msg("loading stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "loading stats failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_documents": stats.TotalDocuments,
		"by_status":       stats.ByStatus,
		"cards":           stats.Cards,
		"discarded":       stats.Discarded,
		"runs":            stats.Runs,
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding JSON response")
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("rendering template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// RenderMarkdown converts Markdown to HTML.
func RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderMarkdown(text string) template.HTML {
	out, err := RenderMarkdown(text)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(out) //nolint: gosec
}

// Serve runs the HTTP server on the given port until ctx is cancelled.
func Serve(ctx context.Context, db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://"+addr).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("shutting down server")
		return httpServer.Shutdown(shutdownCtx)
	}
}
