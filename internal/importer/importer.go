// Package importer extracts candidate vocabulary from reading material:
// PDF files, web pages and plain text.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/nkoreli/lexibase/internal/linker"
)

const maxFetchSize = 5 << 20 // 5MB

// FromFile extracts plain text from the file at path. PDF and HTML files
// are parsed; anything else is read as-is.
func FromFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".html", ".htm":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return extractHTML(bytes.NewReader(b))
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// FromURL fetches url and extracts its text content. HTML responses are
// stripped to their text; other content types are returned as-is.
func FromURL(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		return extractHTML(bytes.NewReader(body))
	}
	return string(body), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

func extractHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String()), nil
}

// CandidateWords tokenizes content and returns up to limit distinct
// normalized words in order of first appearance. Single-character and
// purely numeric tokens are dropped. Pass limit <= 0 for no cap.
func CandidateWords(language, content string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, frag := range linker.Fragments(language, content) {
		if seen[frag] || !keepCandidate(frag) {
			continue
		}
		seen[frag] = true
		out = append(out, frag)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func keepCandidate(word string) bool {
	runes := []rune(word)
	// Japanese fragments are meaningful at a single character.
	if len(runes) < 2 && !isCJK(runes) {
		return false
	}
	for _, r := range runes {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isCJK(runes []rune) bool {
	for _, r := range runes {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
