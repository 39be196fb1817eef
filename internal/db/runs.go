package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run is one persisted canonicalization run: the final canonical document,
// its reports and enough metadata to list and replay it.
type Run struct {
	ID           uuid.UUID       `json:"id"`
	SourceKey    string          `json:"source_key,omitempty"`
	Canonical    json.RawMessage `json:"canonical,omitempty"`
	Corrections  json.RawMessage `json:"corrections,omitempty"`
	EN16931      json.RawMessage `json:"en16931,omitempty"`
	PatchCount   int             `json:"patch_count"`
	EnrichedWith string          `json:"enriched_with,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// EnsureSchema creates the runs table when it does not exist yet.
func EnsureSchema(ctx context.Context) error {
	_, err := Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id            UUID PRIMARY KEY,
			source_key    TEXT NOT NULL DEFAULT '',
			canonical     JSONB NOT NULL,
			corrections   JSONB NOT NULL,
			en16931       JSONB NOT NULL,
			patch_count   INT NOT NULL DEFAULT 0,
			enriched_with TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// SaveRun inserts one run. The caller assigns the id.
func SaveRun(ctx context.Context, run *Run) error {
	return Pool.QueryRow(ctx, `
		INSERT INTO runs (id, source_key, canonical, corrections, en16931, patch_count, enriched_with)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`,
		run.ID, run.SourceKey, run.Canonical, run.Corrections,
		run.EN16931, run.PatchCount, run.EnrichedWith,
	).Scan(&run.CreatedAt)
}

// GetRuns lists recent runs without their document payloads.
func GetRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := Pool.Query(ctx, `
		SELECT id, source_key, patch_count, enriched_with, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.SourceKey, &run.PatchCount, &run.EnrichedWith, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes one run.
func DeleteRun(ctx context.Context, id uuid.UUID) error {
	_, err := Pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	return err
}

// GetRun loads one run with its full payloads.
func GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := Pool.QueryRow(ctx, `
		SELECT id, source_key, canonical, corrections, en16931, patch_count, enriched_with, created_at
		FROM runs
		WHERE id = $1
	`, id).Scan(
		&run.ID, &run.SourceKey, &run.Canonical, &run.Corrections,
		&run.EN16931, &run.PatchCount, &run.EnrichedWith, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
