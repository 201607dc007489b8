// internal/scraper/parser.go
package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

// HTMLParser provides HTML parsing and lookup helpers over a fetched page
type HTMLParser struct {
	document *goquery.Document
	content  string
}

// NewHTMLParser creates a new HTML parser from HTML content
func NewHTMLParser(content string) (*HTMLParser, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &HTMLParser{
		document: doc,
		content:  content,
	}, nil
}

// Document returns the underlying goquery document
func (hp *HTMLParser) Document() *goquery.Document {
	return hp.document
}

// Content returns the raw HTML the parser was built from
func (hp *HTMLParser) Content() string {
	return hp.content
}

// ExtractText returns the collapsed text of the first element matching
// selector, or false when nothing matches or the text is empty.
func (hp *HTMLParser) ExtractText(selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	selection := hp.document.Find(selector).First()
	if selection.Length() == 0 {
		return "", false
	}
	text := utils.CollapseWhitespace(selection.Text())
	return text, text != ""
}

// OwnText returns the text held directly by the first node of s, ignoring
// text that belongs to child elements.
func OwnText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var sb strings.Builder
	for c := s.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		}
	}
	return utils.CollapseWhitespace(sb.String())
}

// ElementText returns the collapsed full text of s.
func ElementText(s *goquery.Selection) string {
	return utils.CollapseWhitespace(s.Text())
}
