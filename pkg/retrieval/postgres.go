package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a VectorStore backed by PostgreSQL with the pgvector extension.
type PGStore struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// PGOption configures a PGStore.
type PGOption func(*PGStore)

// WithTable overrides the documents table name.
func WithTable(name string) PGOption {
	return func(s *PGStore) {
		if name != "" {
			s.table = name
		}
	}
}

var _ ports.VectorStore = (*PGStore)(nil)

// NewPGStore connects to databaseURL and migrates the schema for vectors of
// dim dimensions. A table created for another dimension is recreated.
func NewPGStore(ctx context.Context, databaseURL string, dim int, opts ...PGOption) (*PGStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("pgvector: invalid dimension %d", dim)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &PGStore{pool: pool, table: "documents", dim: dim}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) ident() string { return pgx.Identifier{s.table}.Sanitize() }

func (s *PGStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}

	var current int
	err := s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = to_regclass($1) AND attname = 'embedding'`, s.table).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("inspect %s: %w", s.table, err)
	case current != s.dim:
		if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+s.ident()+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", s.table, err)
		}
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			knowledge_base TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			source TEXT,
			embedding vector(%d),
			content_hash TEXT,
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now()
		)`, s.ident(), s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			pgx.Identifier{s.table + "_embedding_idx"}.Sanitize(), s.ident()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (knowledge_base)`,
			pgx.Identifier{s.table + "_kb_idx"}.Sanitize(), s.ident()),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}

// Upsert implements ports.VectorStore.
func (s *PGStore) Upsert(ctx context.Context, doc domain.Document, embedding []float32) error {
	if len(embedding) != s.dim {
		return fmt.Errorf("upsert %s: embedding has %d dimensions, want %d", doc.ID, len(embedding), s.dim)
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, knowledge_base, title, content, source, embedding, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
		ON CONFLICT (id) DO UPDATE SET
			knowledge_base = EXCLUDED.knowledge_base,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			embedding = EXCLUDED.embedding,
			content_hash = EXCLUDED.content_hash,
			updated_at = now()`, s.ident()),
		doc.ID, doc.KnowledgeBase, doc.Title, doc.Content, doc.Source, vectorLiteral(embedding), doc.ContentHash)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", doc.ID, err)
	}
	return nil
}

// ContentHash implements ports.VectorStore.
func (s *PGStore) ContentHash(ctx context.Context, id string) (string, bool, error) {
	var hash *string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT content_hash FROM %s WHERE id = $1`, s.ident()), id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if hash == nil {
		return "", true, nil
	}
	return *hash, true, nil
}

// Search implements ports.VectorStore.
func (s *PGStore) Search(ctx context.Context, kb string, embedding []float32, k int) ([]ports.ScoredDocument, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, knowledge_base, title, content, COALESCE(source, ''), COALESCE(content_hash, ''),
			created_at, updated_at, 1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE knowledge_base = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, s.ident()), vectorLiteral(embedding), kb, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kb, err)
	}
	defer rows.Close()

	var out []ports.ScoredDocument
	for rows.Next() {
		var hit ports.ScoredDocument
		d := &hit.Document
		if err := rows.Scan(&d.ID, &d.KnowledgeBase, &d.Title, &d.Content, &d.Source, &d.ContentHash,
			&d.CreatedAt, &d.UpdatedAt, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

// List implements ports.VectorStore. Content is omitted.
func (s *PGStore) List(ctx context.Context, kb string) ([]domain.Document, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, knowledge_base, title, COALESCE(source, ''), COALESCE(content_hash, ''), created_at, updated_at
		FROM %s WHERE knowledge_base = $1
		ORDER BY updated_at DESC, id`, s.ident()), kb)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kb, err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.KnowledgeBase, &d.Title, &d.Source, &d.ContentHash, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete implements ports.VectorStore.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.ident()), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Count implements ports.VectorStore.
func (s *PGStore) Count(ctx context.Context, kb string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE knowledge_base = $1`, s.ident()), kb).Scan(&n)
	return n, err
}

func vectorLiteral(vec []float32) string {
	values := make([]string, len(vec))
	for i, v := range vec {
		values[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(values, ",") + "]"
}
