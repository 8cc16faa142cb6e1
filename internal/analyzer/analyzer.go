// Package analyzer extracts and evaluates meta tags from page HTML.
package analyzer

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Extraction holds the meta signals pulled from one page.
type Extraction struct {
	Title           string
	MetaDescription string

	// Heuristic issues beyond length scoring, in detection order.
	Issues []string
}

// Analyzer parses HTML and applies meta-description heuristics. It also
// keeps a cross-page index of description hashes for duplicate
// detection; call Reset between scans.
type Analyzer struct {
	descHashes map[string][]string // normalized description hash -> URLs
}

// New creates an analyzer with an empty duplicate index.
func New() *Analyzer {
	return &Analyzer{descHashes: make(map[string][]string)}
}

// Analyze extracts title and meta description from htmlContent and
// evaluates the content-quality heuristics. The length-based status
// scoring lives in the seo package; issues returned here are
// concatenated after it by the caller.
func (a *Analyzer) Analyze(htmlContent []byte, pageURL string) (*Extraction, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	ex := &Extraction{Issues: make([]string, 0)}
	extract(doc, ex)

	ex.Title = strings.TrimSpace(ex.Title)
	ex.MetaDescription = strings.TrimSpace(ex.MetaDescription)

	if ex.MetaDescription != "" {
		a.applyHeuristics(ex)

		// Duplicate grouping normalizes (trimmed, case-insensitive) so
		// cosmetic variants land in the same bucket. Change detection
		// elsewhere deliberately does not.
		hash := hashDesc(ex.MetaDescription)
		a.descHashes[hash] = append(a.descHashes[hash], pageURL)
	}

	return ex, nil
}

// Duplicates returns, per URL, an issue for every description shared by
// more than one page seen since the last Reset.
func (a *Analyzer) Duplicates() map[string]string {
	issues := make(map[string]string)
	for _, urls := range a.descHashes {
		if len(urls) < 2 {
			continue
		}
		for _, u := range urls {
			issues[u] = fmt.Sprintf("Duplicate meta description found on %d pages", len(urls))
		}
	}
	return issues
}

// Reset clears the duplicate index.
func (a *Analyzer) Reset() {
	a.descHashes = make(map[string][]string)
}

func hashDesc(desc string) string {
	normalized := strings.ToLower(strings.TrimSpace(desc))
	return fmt.Sprintf("%x", md5.Sum([]byte(normalized)))
}

var placeholderMarkers = []string{
	"lorem ipsum",
	"description here",
	"your description",
	"add a description",
	"page description",
	"todo",
}

func (a *Analyzer) applyHeuristics(ex *Extraction) {
	desc := ex.MetaDescription

	if ex.Title != "" && strings.EqualFold(desc, ex.Title) {
		ex.Issues = append(ex.Issues, "Meta description duplicates the page title")
	}

	lower := strings.ToLower(desc)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			ex.Issues = append(ex.Issues, "Meta description looks like placeholder text")
			break
		}
	}

	if word := repeatedWord(desc); word != "" {
		ex.Issues = append(ex.Issues, fmt.Sprintf("Meta description repeats the word %q", word))
	}

	if !hasTerminalPunctuation(desc) {
		ex.Issues = append(ex.Issues, "Meta description does not end with punctuation")
	}
}

// repeatedWord returns the first word (4+ letters) appearing three or
// more times, or "".
func repeatedWord(s string) string {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(w) < 4 {
			continue
		}
		counts[w]++
		if counts[w] == 3 {
			return w
		}
	}
	return ""
}

func hasTerminalPunctuation(s string) bool {
	trimmed := strings.TrimRight(s, " \t\n")
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	return last == '.' || last == '!' || last == '?'
}

// extract walks the parsed document collecting the title text and the
// description meta tag.
func extract(n *html.Node, ex *Extraction) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if ex.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				ex.Title = n.FirstChild.Data
			}
		case "meta":
			var name, content string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "name":
					name = strings.ToLower(attr.Val)
				case "content":
					content = attr.Val
				}
			}
			if name == "description" && ex.MetaDescription == "" {
				ex.MetaDescription = content
			}
		case "body":
			// Meta tags live in head; no need to walk the body.
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extract(c, ex)
	}
}
