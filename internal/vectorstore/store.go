// Package vectorstore persists document chunks for retrieval. Chunks live
// in a plain SQLite table; dense vectors go to a sqlite-vec vec0 virtual
// table and text goes to an FTS5 index, both keyed by the chunk rowid, so
// dense, sparse, and hybrid search all run against one file.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

func init() {
	// Registers the vec0 module with every sqlite3 connection the driver
	// opens from here on.
	vec.Auto()
}

var validIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default weights for hybrid retrieval. Dense carries most of the signal
// for short conversational queries; sparse rescues exact-term matches.
const (
	DefaultDenseWeight  = 0.7
	DefaultSparseWeight = 0.3
)

// Store is a chunk store backed by SQLite with sqlite-vec and FTS5.
type Store struct {
	db         *sql.DB
	collection string
	dims       int
	logger     *zap.Logger
}

// Open opens (creating if needed) the vector database, verifies the
// connection, and makes sure the collection's tables exist.
func Open(ctx context.Context, path, collection string, dims int, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("vector.path is required")
	}
	if !validIdent.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	if dims <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", dims)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping vector database: %w", err)
	}
	s := &Store{db: db, collection: collection, dims: dims, logger: logger}
	if err := s.ensureCollection(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing handle (primarily for testing). The caller is
// responsible for calling EnsureCollection-equivalent setup via Open in
// production paths.
func NewWithDB(db *sql.DB, collection string, dims int, logger *zap.Logger) (*Store, error) {
	if !validIdent.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	s := &Store{db: db, collection: collection, dims: dims, logger: logger}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) chunksTable() string { return s.collection + "_chunks" }
func (s *Store) vecTable() string    { return s.collection + "_vec" }
func (s *Store) ftsTable() string    { return s.collection + "_fts" }

func (s *Store) ensureCollection(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	rowid INTEGER PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
)`, s.chunksTable()),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
	embedding float[%d]
)`, s.vecTable(), s.dims),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(content)`, s.ftsTable()),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create collection %s: %w", s.collection, err)
		}
	}
	s.logger.Info("Vector collection ready",
		zap.String("collection", s.collection),
		zap.Int("dims", s.dims))
	return nil
}

// Upsert writes chunks into the collection, replacing any chunk that
// already exists under the same id. All three tables are updated in one
// transaction so a chunk is never indexed without its vector.
func (s *Store) Upsert(ctx context.Context, chunks []blog.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vector upsert: %w", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		if len(c.DenseVector) != s.dims {
			return fmt.Errorf("chunk %s: vector has %d dimensions, collection expects %d",
				c.ID, len(c.DenseVector), s.dims)
		}
		if err := s.deleteChunkTx(ctx, tx, c.ID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, content, metadata) VALUES (?, ?, ?)`, s.chunksTable()),
			c.ID, c.Content, c.Metadata)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("chunk %s rowid: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (rowid, embedding) VALUES (?, ?)`, s.vecTable()),
			rowid, EncodeVector(c.DenseVector)); err != nil {
			return fmt.Errorf("index vector for chunk %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (rowid, content) VALUES (?, ?)`, s.ftsTable()),
			rowid, c.Content); err != nil {
			return fmt.Errorf("index text for chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vector upsert: %w", err)
	}
	s.logger.Debug("Upserted chunks",
		zap.String("collection", s.collection),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (s *Store) deleteChunkTx(ctx context.Context, tx *sql.Tx, id string) error {
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE id = ?`, s.chunksTable()), id)
	var rowid int64
	switch err := row.Scan(&rowid); err {
	case nil:
	case sql.ErrNoRows:
		return nil
	default:
		return fmt.Errorf("look up chunk %s: %w", id, err)
	}
	for _, table := range []string{s.vecTable(), s.ftsTable(), s.chunksTable()} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), rowid); err != nil {
			return fmt.Errorf("delete chunk %s from %s: %w", id, table, err)
		}
	}
	return nil
}

// DeleteByIDPrefix removes every chunk whose id starts with the prefix.
// Chunk ids embed their source row id, so this drops all chunks of one
// article before re-ingesting it.
func (s *Store) DeleteByIDPrefix(ctx context.Context, prefix string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin vector delete: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE id LIKE ? ESCAPE '\'`, s.chunksTable()),
		escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("list chunks for prefix %s: %w", prefix, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list chunks for prefix %s: %w", prefix, err)
	}

	for _, id := range ids {
		if err := s.deleteChunkTx(ctx, tx, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit vector delete: %w", err)
	}
	return int64(len(ids)), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SearchDense returns the k nearest chunks by cosine distance. Scores are
// 1-distance so higher is better, matching the sparse and hybrid paths.
func (s *Store) SearchDense(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if len(query) != s.dims {
		return nil, fmt.Errorf("query vector has %d dimensions, collection expects %d", len(query), s.dims)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	stmt := fmt.Sprintf(`
SELECT c.id, c.content, c.metadata, vec_distance_cosine(v.embedding, ?) AS distance
FROM %s v
JOIN %s c ON c.rowid = v.rowid
ORDER BY distance ASC
LIMIT ?`, s.vecTable(), s.chunksTable())
	rows, err := s.db.QueryContext(ctx, stmt, EncodeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var distance float64
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &distance); err != nil {
			return nil, fmt.Errorf("scan dense result: %w", err)
		}
		r.Score = 1 - distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return results, nil
}

// SearchSparse returns the k best chunks by BM25 over the FTS5 index.
// SQLite's bm25() is negative-better, so scores are negated to make
// higher better.
func (s *Store) SearchSparse(ctx context.Context, query string, k int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	stmt := fmt.Sprintf(`
SELECT c.id, c.content, c.metadata, bm25(%s) AS rank
FROM %s
JOIN %s c ON c.rowid = %s.rowid
WHERE %s MATCH ?
ORDER BY rank ASC
LIMIT ?`, s.ftsTable(), s.ftsTable(), s.chunksTable(), s.ftsTable(), s.ftsTable())
	rows, err := s.db.QueryContext(ctx, stmt, match, k)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &rank); err != nil {
			return nil, fmt.Errorf("scan sparse result: %w", err)
		}
		r.Score = -rank
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	return results, nil
}

// ftsQuery turns free text into an FTS5 MATCH expression. Each term is
// quoted so user punctuation cannot inject FTS syntax, and terms are ORed
// for recall; ranking sorts the good hits up.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// HybridSearch runs dense and sparse retrieval and fuses them with
// weighted reciprocal rank. Each leg over-fetches 2k candidates so the
// fused top k has material from both.
func (s *Store) HybridSearch(ctx context.Context, queryVector []float32, queryText string, k int, denseWeight, sparseWeight float64) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	dense, err := s.SearchDense(ctx, queryVector, k*2)
	if err != nil {
		return nil, err
	}
	sparse, err := s.SearchSparse(ctx, queryText, k*2)
	if err != nil {
		return nil, err
	}
	return FuseRRF(dense, sparse, denseWeight, sparseWeight, k), nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.chunksTable())).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
