// Package postgres provides the pgx-backed RecordStore.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthdata/internal/domain"
	"example.com/healthdata/internal/observability"
)

// Repository persists health records in the health_records table, keyed by
// (subject_id, date). Sample and category sequences are stored as JSONB.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `subject_id, date, step_count, distance, active_energy, avg_heart_rate, heart_rate_samples, categories`

// Get returns the record for the key, or nil when absent.
func (r *Repository) Get(ctx context.Context, subjectID, date string) (*domain.HealthRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM health_records WHERE subject_id=$1 AND date=$2`

	row := r.pool.QueryRow(ctx, query, subjectID, date)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// Upsert writes the record, replacing any previous row for the key.
func (r *Repository) Upsert(ctx context.Context, record domain.HealthRecord) error {
	const stmt = `INSERT INTO health_records (` + recordColumns + `, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
        ON CONFLICT (subject_id, date) DO UPDATE SET
            step_count = EXCLUDED.step_count,
            distance = EXCLUDED.distance,
            active_energy = EXCLUDED.active_energy,
            avg_heart_rate = EXCLUDED.avg_heart_rate,
            heart_rate_samples = EXCLUDED.heart_rate_samples,
            categories = EXCLUDED.categories,
            updated_at = NOW()`

	samples := record.HeartRateSamples
	if samples == nil {
		samples = []float64{}
	}
	categories := record.Categories
	if categories == nil {
		categories = map[string][]float64{}
	}

	_, err := r.pool.Exec(ctx, stmt,
		record.SubjectID,
		record.Date,
		record.StepCount,
		record.Distance,
		record.ActiveEnergy,
		record.AvgHeartRate,
		samples,
		categories,
	)
	if err != nil {
		return err
	}
	observability.RecordMergePersisted(time.Now().UTC())
	return nil
}

// ListBySubject returns all records for the subject ordered by date.
func (r *Repository) ListBySubject(ctx context.Context, subjectID string) ([]domain.HealthRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM health_records WHERE subject_id=$1 ORDER BY date`

	rows, err := r.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListAll returns every stored record ordered by subject then date.
func (r *Repository) ListAll(ctx context.Context) ([]domain.HealthRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM health_records ORDER BY subject_id, date`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]domain.HealthRecord, error) {
	records := make([]domain.HealthRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*domain.HealthRecord, error) {
	var record domain.HealthRecord
	if err := row.Scan(
		&record.SubjectID,
		&record.Date,
		&record.StepCount,
		&record.Distance,
		&record.ActiveEnergy,
		&record.AvgHeartRate,
		&record.HeartRateSamples,
		&record.Categories,
	); err != nil {
		return nil, err
	}
	return &record, nil
}
