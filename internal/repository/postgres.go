package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/citedoc/internal/domain"
	"github.com/cloo-solutions/citedoc/internal/pagination"
	"github.com/cloo-solutions/citedoc/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore persists documents in Postgres and index vectors in pgvector columns.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPostgresStore creates a PostgresStore backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	return getDocument(ctx, s.db, id)
}

func getDocument(ctx context.Context, db dbtx, id string) (*domain.Document, error) {
	var d domain.Document
	var storageKey *string
	err := db.QueryRow(ctx,
		`SELECT id, filename, content_type, body, page_count, word_count, storage_key, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Filename, &d.ContentType, &d.Text, &d.Metadata.PageCount, &d.Metadata.WordCount, &storageKey, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}

	rows, err := db.Query(ctx,
		`SELECT chunk_index, content, start_offset, end_offset, chunk_type
		 FROM document_chunks WHERE document_id = $1
		 ORDER BY chunk_index`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Chunk
		var chunkType string
		if err := rows.Scan(&c.Index, &c.Text, &c.Start, &c.End, &chunkType); err != nil {
			return nil, err
		}
		c.Metadata = domain.ChunkMetadata{Filename: d.Filename, Type: domain.ChunkType(chunkType)}
		d.Chunks = append(d.Chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	d.Metadata.ChunkCount = len(d.Chunks)
	return &d, nil
}

// Put stores doc and its chunks in one transaction, replacing any previous
// version and its index.
func (s *PostgresStore) Put(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrMissingRequiredField
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, doc.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO documents (id, filename, content_type, body, page_count, word_count, storage_key, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			doc.ID, doc.Filename, doc.ContentType, doc.Text, doc.Metadata.PageCount, doc.Metadata.WordCount,
			nullableString(doc.StorageKey), doc.CreatedAt,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, c := range doc.Chunks {
			batch.Queue(
				`INSERT INTO document_chunks (document_id, chunk_index, content, start_offset, end_offset, chunk_type)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				doc.ID, c.Index, c.Text, c.Start, c.End, string(c.Metadata.Type),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// List returns document headers ordered by creation time, newest first.
// Chunks are not loaded.
func (s *PostgresStore) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = s.db.Query(ctx,
			`SELECT d.id, d.filename, d.content_type, d.page_count, d.word_count, d.storage_key, d.created_at,
			        (SELECT count(*) FROM document_chunks c WHERE c.document_id = d.id)
			 FROM documents d
			 WHERE (d.created_at, d.id) < ($1, $2)
			 ORDER BY d.created_at DESC, d.id DESC
			 LIMIT $3`,
			cursor.CreatedAt, cursor.ID, limit+1,
		)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT d.id, d.filename, d.content_type, d.page_count, d.word_count, d.storage_key, d.created_at,
			        (SELECT count(*) FROM document_chunks c WHERE c.document_id = d.id)
			 FROM documents d
			 ORDER BY d.created_at DESC, d.id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		var d domain.Document
		var storageKey *string
		if err := rows.Scan(&d.ID, &d.Filename, &d.ContentType, &d.Metadata.PageCount, &d.Metadata.WordCount,
			&storageKey, &d.CreatedAt, &d.Metadata.ChunkCount); err != nil {
			return nil, err
		}
		if storageKey != nil {
			d.StorageKey = *storageKey
		}
		items = append(items, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, nextCursor, hasMore := pagination.Trim(items, limit, documentCursor)

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (s *PostgresStore) GetIndex(ctx context.Context, documentID string) (*domain.SimilarityIndex, error) {
	idx := domain.SimilarityIndex{DocumentID: documentID, Vectors: make(map[int][]float32)}
	err := s.db.QueryRow(ctx,
		`SELECT model, built_at FROM document_indexes WHERE document_id = $1`,
		documentID,
	).Scan(&idx.Model, &idx.BuiltAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT chunk_index, embedding::text FROM chunk_vectors WHERE document_id = $1`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var chunkIndex int
		var raw string
		if err := rows.Scan(&chunkIndex, &raw); err != nil {
			return nil, err
		}
		var v pgvector.Vector
		if err := v.Scan(raw); err != nil {
			return nil, fmt.Errorf("failed to decode vector for chunk %d: %w", chunkIndex, err)
		}
		idx.Vectors[chunkIndex] = v.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &idx, nil
}

// PutIndex replaces a document's index in one transaction, so readers see
// either the previous index or the complete new one.
func (s *PostgresStore) PutIndex(ctx context.Context, idx *domain.SimilarityIndex) error {
	if idx == nil || idx.DocumentID == "" {
		return domain.ErrMissingRequiredField
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM document_indexes WHERE document_id = $1`, idx.DocumentID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO document_indexes (document_id, model, built_at)
			 SELECT id, $2, $3 FROM documents WHERE id = $1`,
			idx.DocumentID, idx.Model, idx.BuiltAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrDocumentNotFound
		}

		batch := &pgx.Batch{}
		for chunkIndex, vector := range idx.Vectors {
			batch.Queue(
				`INSERT INTO chunk_vectors (document_id, chunk_index, embedding) VALUES ($1, $2, $3)`,
				idx.DocumentID, chunkIndex, pgvector.NewVector(vector),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// ListUnindexed returns up to limit documents without an index, oldest first.
func (s *PostgresStore) ListUnindexed(ctx context.Context, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT d.id FROM documents d
		 LEFT JOIN document_indexes i ON i.document_id = d.id
		 WHERE i.document_id IS NULL
		 ORDER BY d.created_at, d.id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	docs := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := getDocument(ctx, s.db, id)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
