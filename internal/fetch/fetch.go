// Package fetch retrieves documents over HTTP and extracts normalized plain
// text from HTML or PDF bodies.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/radar/internal/config"
)

const defaultMaxBodyBytes = 25 << 20

// HTML extraction modes.
const (
	ModeStrip       = "strip"
	ModeReadability = "readability"
)

// ContentFetcher fetches a URL and returns its readable text. It never
// returns an error: any failure yields an empty string.
type ContentFetcher struct {
	client       *http.Client
	userAgent    string
	htmlMode     string
	maxBodyBytes int64
}

// NewContentFetcher creates a fetcher from the fetch config section.
func NewContentFetcher(cfg config.Fetch) *ContentFetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	mode := cfg.HTMLMode
	if mode == "" {
		mode = ModeStrip
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:    cfg.UserAgent,
		htmlMode:     mode,
		maxBodyBytes: maxBody,
	}
}

// Retrieve returns the normalized text of the document at url, dispatching on
// the URL suffix. Failures are logged and produce "".
func (f *ContentFetcher) Retrieve(ctx context.Context, url string) string {
	body, err := f.download(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("fetch failed")
		return ""
	}

	var text string
	if IsPDF(url) {
		text, err = ExtractPDF(body)
	} else {
		text, err = f.extractHTML(body, url)
	}
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("text extraction failed")
		return ""
	}
	return text
}

// IsPDF reports whether url should be handled as a PDF document.
func IsPDF(url string) bool {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

func (f *ContentFetcher) extractHTML(body []byte, pageURL string) (string, error) {
	if f.htmlMode == ModeReadability {
		text, err := ExtractReadable(body, pageURL)
		if err == nil && text != "" {
			return text, nil
		}
		log.Debug().Err(err).Str("url", pageURL).Msg("readability produced nothing, stripping page instead")
	}
	return ExtractHTML(body)
}

func (f *ContentFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", f.maxBodyBytes)
	}
	return body, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}
