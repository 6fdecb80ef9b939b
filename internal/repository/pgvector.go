package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

const pgUndefinedTable = "42P01"

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGVectorStore stores embedding records in PostgreSQL using the pgvector
// extension. Collections share one table and are told apart by name.
type PGVectorStore struct {
	pool       *pgxpool.Pool
	collection string
	dimension  int
	boot       bootstrap
}

func NewPGVectorStore(pool *pgxpool.Pool, collection string, dimension int) *PGVectorStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &PGVectorStore{
		pool:       pool,
		collection: collection,
		dimension:  dimension,
	}
}

// EnsureCollection registers the collection on first use and checks that an
// existing registration has the configured dimension.
func (s *PGVectorStore) EnsureCollection(ctx context.Context) error {
	return s.boot.ensure(ctx, s.ensureCollection)
}

func (s *PGVectorStore) ensureCollection(ctx context.Context) error {
	if s.dimension <= 0 {
		return domain.NewConfigurationError("vector dimension must be greater than zero")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO vector_collections (name, dimension, distance)
		 VALUES ($1, $2, 'cosine')
		 ON CONFLICT (name) DO NOTHING`,
		s.collection, s.dimension,
	)
	if err != nil {
		return pgStorageError("ensure_collection", err)
	}

	var dimension int
	var distance string
	err = s.pool.QueryRow(ctx,
		`SELECT dimension, distance FROM vector_collections WHERE name = $1`,
		s.collection,
	).Scan(&dimension, &distance)
	if err != nil {
		return pgStorageError("ensure_collection", err)
	}
	if dimension != s.dimension {
		return dimensionMismatch(s.collection, dimension, s.dimension)
	}
	if distance != "cosine" {
		return domain.NewConfigurationError(fmt.Sprintf("collection %s uses %s distance, expected cosine", s.collection, distance))
	}
	return nil
}

// Upsert writes all records in one transaction; either every record is
// stored or none is.
func (s *PGVectorStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.Payload) error {
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	if err := validateUpsert(ids, vectors, payloads, s.dimension); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgStorageError("upsert", err)
	}

	if err := upsertRecords(ctx, tx, s.collection, ids, vectors, payloads); err != nil {
		_ = tx.Rollback(ctx)
		return pgStorageError("upsert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return pgStorageError("upsert", err)
	}
	return nil
}

// upsertRecords applies records in index order, so a duplicate id ends up
// with its last payload.
func upsertRecords(ctx context.Context, db dbtx, collection string, ids []string, vectors [][]float32, payloads []domain.Payload) error {
	for i, id := range ids {
		_, err := db.Exec(ctx,
			`INSERT INTO embedding_records (collection, id, source, text, embedding, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (collection, id) DO UPDATE SET
				source = EXCLUDED.source,
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding,
				updated_at = EXCLUDED.updated_at`,
			collection, id, payloads[i].Source, payloads[i].Text, pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Search returns the topK records closest to vector by cosine distance.
// Equal distances are ordered by id.
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, topK int, sourceFilter string) (*domain.RetrievalResult, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	if err := validateSearch(vector, topK, s.dimension); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source, text
		 FROM embedding_records
		 WHERE collection = $1 AND ($3 = '' OR source = $3)
		 ORDER BY embedding <=> $2, id
		 LIMIT $4`,
		s.collection, pgvector.NewVector(vector), sourceFilter, topK,
	)
	if err != nil {
		return nil, pgStorageError("search", err)
	}
	defer rows.Close()

	result := domain.NewRetrievalResult(topK)
	for rows.Next() {
		var p domain.Payload
		if err := rows.Scan(&p.Source, &p.Text); err != nil {
			return nil, pgStorageError("search", err)
		}
		result.Add(p)
	}
	if err := rows.Err(); err != nil {
		return nil, pgStorageError("search", err)
	}
	return result, nil
}

func pgStorageError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUndefinedTable {
			return domain.NewStorageError(op, domain.StorageReasonSchemaMismatch,
				"vector tables are missing, run migrations", err)
		}
		if pgErr.Code == "22000" || pgErr.Code == "22P02" {
			return domain.NewStorageError(op, domain.StorageReasonValidation, "rejected by database", err)
		}
		return domain.NewStorageError(op, domain.StorageReasonConnectivity, "database error", err)
	}
	return domain.NewStorageError(op, domain.StorageReasonConnectivity, "database unreachable", err)
}
