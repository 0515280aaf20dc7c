// Package blog defines the records flowing through the medallion pipeline
// and the sitemap/article extraction logic that produces them.
package blog

import "time"

// BaseURL is the article index page; it appears in the sitemap but carries
// no article content of its own.
const BaseURL = "https://pybit.es/articles/"

// Exclusions lists URL suffixes the sitemap yields that are media assets,
// not articles.
var Exclusions = []string{"png", "jpeg", "jpg"}

// URLRecord is one sitemap entry: a page URL and when it last changed.
// The URL is the natural key; LastModified is the change-detection column.
type URLRecord struct {
	URL          string
	LastModified time.Time
}

// ContentLink is one anchor found inside an article body.
type ContentLink struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

// Article is the raw parsed page as it lands in the bronze layer.
// Year and Month are derived from DateModified and act as the partition key
// for the raw object-storage files.
type Article struct {
	URL           string        `json:"url"`
	Title         string        `json:"title"`
	DatePublished time.Time     `json:"date_published"`
	DateModified  time.Time     `json:"date_modified"`
	Author        string        `json:"author"`
	Tags          []string      `json:"tags"`
	ContentLinks  []ContentLink `json:"content_links"`
	Content       []string      `json:"content"`
	Year          int           `json:"year"`
	Month         int           `json:"month"`
}

// SilverArticle is the cleaned, enriched form of an Article. Exactly one row
// exists per URL in the silver table at any time; the windowed backfill
// enforces that, not a uniqueness constraint.
type SilverArticle struct {
	RowID                        string
	URL                          string
	Domain                       string
	Category                     string
	URLTitle                     string
	DatePublished                time.Time
	DateModified                 time.Time
	DaysBetweenPublishedModified int
	Title                        string
	Author                       string
	Tags                         []string
	ContentLinks                 []ContentLink
	Content                      []string
	ContentParagraphs            int64
	TotalContentWords            int64
	Year                         int
	Month                        int
}

// ContentLinkRow is one unnested (article, link) pair from the silver fanout
// table. Its lifecycle is tied to the owning silver window backfill.
type ContentLinkRow struct {
	RowID        string
	URL          string
	Alias        string
	Link         string
	DateModified time.Time
}

// Link liveness classifications. Timeouts are reported as the literal string
// "timeout {N} sec" where N is the probe timeout, so LinkStatusRow.Status is
// a plain string rather than a closed enum.
const (
	LinkInternalWorking = "internal_working"
	LinkInternalBroken  = "internal_broken"
	LinkExternalWorking = "external_working"
	LinkExternalBroken  = "external_broken"
	LinkMail            = "mail_link"
	LinkParseError      = "parse_error"
)

// LinkStatusRow records the probe outcome for one content link.
type LinkStatusRow struct {
	RowID        string
	URL          string
	Link         string
	Status       string
	DateModified time.Time
}

// ChunkMetadata travels with every vector-store document, encoded as JSON.
type ChunkMetadata struct {
	RowID         string   `json:"row_id"`
	URL           string   `json:"url"`
	DatePublished string   `json:"date_published"`
	DateModified  string   `json:"date_modified"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Tags          []string `json:"tags"`
}

// DocumentChunk is one embedded slice of an article, ready for the vector
// store. ID is "{row_id}_{chunk_index}" so re-ingesting the same article
// overwrites its previous chunks instead of duplicating them.
type DocumentChunk struct {
	ID          string
	Content     string
	DenseVector []float32
	Metadata    string
}
