package fetch

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// noiseSelectors are elements removed before text is collected.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "header", "footer", "aside",
	"form", "iframe",
}

// ExtractHTML strips non-content elements and returns the remaining visible
// text, normalized.
func ExtractHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	// Selection.Text concatenates text nodes without separators, so collect
	// them one at a time to keep adjacent block elements apart.
	var buf bytes.Buffer
	collectText(root, &buf)
	return CleanText(buf.String()), nil
}

func collectText(sel *goquery.Selection, buf *bytes.Buffer) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			buf.WriteString(s.Text())
			buf.WriteByte(' ')
			return
		}
		collectText(s, buf)
	})
}

// ExtractReadable runs readability over the page and returns the article text.
func ExtractReadable(body []byte, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return CleanText(article.TextContent), nil
}
