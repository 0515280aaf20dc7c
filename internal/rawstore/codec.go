package rawstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

// EncodeNDJSON writes one JSON document per line. Newline-delimited JSON
// keeps the partition files streamable on reload.
func EncodeNDJSON(w io.Writer, articles []blog.Article) error {
	enc := json.NewEncoder(w)
	for i := range articles {
		if err := enc.Encode(&articles[i]); err != nil {
			return fmt.Errorf("encode article %s: %w", articles[i].URL, err)
		}
	}
	return nil
}

// DecodeNDJSON reads articles back from a partition file. Blank lines are
// tolerated; a malformed line fails the whole read, since a half-decoded
// partition must not reach the bronze merge.
func DecodeNDJSON(r io.Reader) ([]blog.Article, error) {
	var articles []blog.Article
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var a blog.Article
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		articles = append(articles, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read partition file: %w", err)
	}
	return articles, nil
}

// PartitionPath builds the hive-style object name for a (year, month)
// partition under the given prefix.
func PartitionPath(prefix string, year, month int) string {
	return fmt.Sprintf("%s/year=%d/month=%d/blogs.ndjson", prefix, year, month)
}
