package blog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ldGraph is the subset of the page's rank-math JSON-LD block we extract.
type ldGraph struct {
	Graph []ldNode `json:"@graph"`
}

type ldNode struct {
	Type          json.RawMessage `json:"@type"`
	URL           string          `json:"url"`
	Name          json.RawMessage `json:"name"`
	DatePublished string          `json:"datePublished"`
	DateModified  string          `json:"dateModified"`
}

// ParseArticle extracts an Article from rendered page HTML. Metadata comes
// from the rank-math JSON-LD block; tags, links and paragraphs come from the
// entry markup. Missing pieces yield zero values, not errors, so a partially
// tagged page still produces a usable record.
func ParseArticle(html string) (Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Article{}, fmt.Errorf("parse article html: %w", err)
	}

	var art Article

	doc.Find(`script.rank-math-schema[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		applyLDGraph(&art, s.Text())
		return false
	})

	if tagsEl := doc.Find("div.entry-category-header.default-max-width").First(); tagsEl.Length() > 0 {
		for _, tag := range strings.Split(strings.TrimSpace(tagsEl.Text()), ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				art.Tags = append(art.Tags, tag)
			}
		}
	}

	content := doc.Find("div.entry-content").First()
	if content.Length() > 0 {
		content.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			art.ContentLinks = append(art.ContentLinks, ContentLink{
				Text: strings.TrimSpace(a.Text()),
				Link: href,
			})
		})
		content.Find("*").Each(func(_ int, el *goquery.Selection) {
			if text := strings.TrimSpace(el.Text()); text != "" {
				art.Content = append(art.Content, text)
			}
		})
	}

	if !art.DateModified.IsZero() {
		art.Year = art.DateModified.Year()
		art.Month = int(art.DateModified.Month())
	}
	return art, nil
}

func applyLDGraph(art *Article, raw string) {
	var graph ldGraph
	if err := json.Unmarshal([]byte(raw), &graph); err != nil {
		return
	}
	for _, node := range graph.Graph {
		switch {
		case nodeHasType(node, "WebPage"):
			art.URL = node.URL
			art.Title = nameAsString(node.Name)
			art.DatePublished = parseISOTime(node.DatePublished)
			art.DateModified = parseISOTime(node.DateModified)
		case nodeHasType(node, "Person"):
			art.Author = nameAsString(node.Name)
		}
	}
}

// nodeHasType matches "@type" whether it is a string or an array of strings.
func nodeHasType(node ldNode, want string) bool {
	var single string
	if err := json.Unmarshal(node.Type, &single); err == nil {
		return single == want
	}
	var many []string
	if err := json.Unmarshal(node.Type, &many); err == nil {
		for _, t := range many {
			if t == want {
				return true
			}
		}
	}
	return false
}

// nameAsString handles names serialized either as a bare string or as an
// object with a "text" field.
func nameAsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	return ""
}

func parseISOTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
