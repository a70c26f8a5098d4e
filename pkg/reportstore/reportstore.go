// Package reportstore persists the terminal artifact a deep-research
// Task's ResultRef points to: the ai_reports row spec.md §6 names
// (id, report_content, model_used, metadata, created_at). Save upserts by
// id (saving an existing id overwrites its content, model and metadata);
// a Task's ResultRef is only ever set after its report has been durably
// stored, never the other way around.
package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantmemo/memocore/pkg/models"
)

// ErrReportNotFound indicates no report exists with the given id.
var ErrReportNotFound = errors.New("reportstore: report not found")

// Store is the durable Report persistence contract.
type Store interface {
	Save(ctx context.Context, r models.Report) error
	Get(ctx context.Context, id string) (models.Report, error)
}

// PostgresStore persists reports in the ai_reports table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, r models.Report) error {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("reportstore: marshal metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ai_reports (id, report_content, model_used, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET report_content = EXCLUDED.report_content, model_used = EXCLUDED.model_used, metadata = EXCLUDED.metadata`,
		r.ID, r.ReportContent, r.ModelUsed, metadata, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("reportstore: insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.Report, error) {
	var (
		r           models.Report
		metadataRaw []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, report_content, model_used, metadata, created_at FROM ai_reports WHERE id = $1`, id).
		Scan(&r.ID, &r.ReportContent, &r.ModelUsed, &metadataRaw, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Report{}, ErrReportNotFound
		}
		return models.Report{}, fmt.Errorf("reportstore: scan report: %w", err)
	}
	if err := json.Unmarshal(metadataRaw, &r.Metadata); err != nil {
		return models.Report{}, fmt.Errorf("reportstore: unmarshal metadata: %w", err)
	}
	return r, nil
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	reports map[string]models.Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]models.Report)}
}

func (s *MemoryStore) Save(ctx context.Context, r models.Report) error {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	s.reports[r.ID] = r
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return models.Report{}, ErrReportNotFound
	}
	return r, nil
}
