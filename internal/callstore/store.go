// Package callstore is the Postgres-backed datastore behind the live feed.
// Reads go through a pgx pool; the insert subscription rides on a LISTEN
// connection fed by an AFTER INSERT trigger on the calls table.
package callstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/triagedesk/internal/feed"
	"github.com/triagedesk/pkg/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS calls (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	risk_tier TEXT,
	advice TEXT NOT NULL DEFAULT '',
	clinical_reason TEXT NOT NULL DEFAULT '',
	transcript TEXT NOT NULL DEFAULT '',
	symptoms JSONB NOT NULL DEFAULT '{}',
	caller_phone TEXT NOT NULL DEFAULT '',
	weeks_pregnant INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS calls_created_at_idx ON calls (created_at DESC);

CREATE OR REPLACE FUNCTION notify_call_inserted() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('call_inserted', NEW.id::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS calls_notify_insert ON calls;
CREATE TRIGGER calls_notify_insert
	AFTER INSERT ON calls
	FOR EACH ROW EXECUTE FUNCTION notify_call_inserted();
`

const callColumns = `id::text, created_at, COALESCE(risk_tier, ''), advice, clinical_reason, transcript, symptoms, caller_phone, weeks_pregnant`

// Store provides call record storage and the feed's collaborator surface.
type Store struct {
	pool *pgxpool.Pool
	dsn  string
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, dsn: dsn}, nil
}

// Pool exposes the underlying pgx pool for collaborators that share the
// database (the job queue driver).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the calls table and its insert-notification trigger
// if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure calls schema: %w", err)
	}
	return nil
}

// InsertCall stores a triaged call record. Inserting fires the
// call_inserted notification that live feeds subscribe to. Re-inserting an
// existing id is a no-op so job retries stay idempotent.
func (s *Store) InsertCall(ctx context.Context, rec models.CallRecord) error {
	symptoms, err := json.Marshal(rec.Symptoms)
	if err != nil {
		return fmt.Errorf("failed to marshal symptoms for call %s: %w", rec.ID, err)
	}

	query := `
	INSERT INTO calls (
		id, created_at, risk_tier, advice, clinical_reason, transcript, symptoms, caller_phone, weeks_pregnant
	) VALUES (
		$1::uuid, $2, $3, $4, $5, $6, $7, $8, $9
	)
	ON CONFLICT (id) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		rec.ID,
		rec.CreatedAt,
		string(rec.RiskTier),
		rec.Advice,
		rec.ClinicalReason,
		rec.Transcript,
		symptoms,
		rec.CallerPhone,
		rec.WeeksPregnant,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call %s: %w", rec.ID, err)
	}

	log.Debug().
		Str("call_id", rec.ID).
		Str("risk_tier", string(rec.RiskTier)).
		Msg("Inserted call record")
	return nil
}

// FetchByID resolves a record id to the full call record, or feed.ErrNotFound.
// Ids that are not UUIDs cannot exist in the table and resolve to not found.
func (s *Store) FetchByID(ctx context.Context, id string) (models.CallRecord, error) {
	if uuid.Validate(id) != nil {
		return models.CallRecord{}, feed.ErrNotFound
	}
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1::uuid`

	rec, err := scanCall(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CallRecord{}, feed.ErrNotFound
		}
		return models.CallRecord{}, fmt.Errorf("failed to fetch call %s: %w", id, err)
	}
	return rec, nil
}

// FetchOrdered returns at most limit calls, newest first.
func (s *Store) FetchOrdered(ctx context.Context, limit int) ([]models.CallRecord, error) {
	query := `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var records []models.CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read call rows: %w", err)
	}
	return records, nil
}

func scanCall(row pgx.Row) (models.CallRecord, error) {
	var rec models.CallRecord
	var tier string
	var symptoms []byte

	err := row.Scan(
		&rec.ID,
		&rec.CreatedAt,
		&tier,
		&rec.Advice,
		&rec.ClinicalReason,
		&rec.Transcript,
		&symptoms,
		&rec.CallerPhone,
		&rec.WeeksPregnant,
	)
	if err != nil {
		return models.CallRecord{}, err
	}

	rec.RiskTier = models.ParseRiskTier(tier)
	if len(symptoms) > 0 {
		if err := json.Unmarshal(symptoms, &rec.Symptoms); err != nil {
			return models.CallRecord{}, fmt.Errorf("failed to decode symptoms: %w", err)
		}
	}
	return rec, nil
}
