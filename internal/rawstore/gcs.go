// Package rawstore persists raw parsed articles as partitioned NDJSON files
// in Google Cloud Storage, one object per (year, month) partition.
package rawstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

// Store writes and reads raw article partitions in a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// New creates a GCS client and verifies bucket access. Authentication uses
// Application Default Credentials. A missing bucket or credential is a
// startup precondition failure, so this fails fast rather than at first
// write.
func New(ctx context.Context, bucket string, logger *zap.Logger) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage.bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("Failed to close GCS client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("access gcs bucket %q: %w", bucket, err)
	}
	return &Store{client: client, bucket: bucket, logger: logger}, nil
}

// Close releases the GCS client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// WritePartitioned groups articles by (year, month) and writes one NDJSON
// object per partition. Re-writing a partition overwrites the previous
// object, which keeps the raw layer idempotent per partition. Returns the
// object names written.
func (s *Store) WritePartitioned(ctx context.Context, prefix string, articles []blog.Article) ([]string, error) {
	if len(articles) == 0 {
		s.logger.Warn("No articles to write to raw storage", zap.String("prefix", prefix))
		return nil, nil
	}

	partitions := make(map[[2]int][]blog.Article)
	for _, a := range articles {
		key := [2]int{a.Year, a.Month}
		partitions[key] = append(partitions[key], a)
	}
	keys := make([][2]int, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	var written []string
	for _, key := range keys {
		name := PartitionPath(prefix, key[0], key[1])
		if err := s.writeObject(ctx, name, partitions[key]); err != nil {
			return written, err
		}
		s.logger.Info("Wrote raw partition",
			zap.String("object", name),
			zap.Int("articles", len(partitions[key])))
		written = append(written, name)
	}
	return written, nil
}

func (s *Store) writeObject(ctx context.Context, name string, articles []blog.Article) error {
	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = "application/x-ndjson"
	if err := EncodeNDJSON(wc, articles); err != nil {
		if cerr := wc.Close(); cerr != nil {
			s.logger.Warn("Failed to close GCS writer after encode failure", zap.Error(cerr))
		}
		return fmt.Errorf("write object %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", name, err)
	}
	return nil
}

// ReadPartitioned loads every partition object under the prefix back into
// memory for the bronze merge.
func (s *Store) ReadPartitioned(ctx context.Context, prefix string) ([]blog.Article, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix + "/"})

	var articles []blog.Article
	objects := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		part, err := s.readObject(ctx, attrs.Name)
		if err != nil {
			return nil, err
		}
		articles = append(articles, part...)
		objects++
	}
	s.logger.Info("Read raw partitions",
		zap.String("prefix", prefix),
		zap.Int("objects", objects),
		zap.Int("articles", len(articles)))
	return articles, nil
}

func (s *Store) readObject(ctx context.Context, name string) ([]blog.Article, error) {
	rc, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", name, err)
	}
	defer rc.Close()
	articles, err := DecodeNDJSON(rc)
	if err != nil {
		return nil, fmt.Errorf("decode object %s: %w", name, err)
	}
	return articles, nil
}
