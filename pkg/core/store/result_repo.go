package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"finsheets/pkg/core/pipeline"
)

// ResultRepo persists finished extraction results, one row per issuer.
// Persistence is optional: the pipeline itself never touches it, and callers
// only construct a repo when DATABASE_URL is configured.
type ResultRepo struct{}

func NewResultRepo() *ResultRepo {
	return &ResultRepo{}
}

// Save upserts the latest extraction for the issuer's CIK.
//
// Schema assumption (managed outside this package):
//
//	CREATE TABLE IF NOT EXISTS extraction_results (
//	  cik TEXT PRIMARY KEY,
//	  issuer_name TEXT,
//	  result_json JSONB,
//	  updated_at TIMESTAMPTZ
//	);
func (r *ResultRepo) Save(ctx context.Context, result *pipeline.Result) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO extraction_results (cik, issuer_name, result_json, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cik)
		DO UPDATE SET
			issuer_name = EXCLUDED.issuer_name,
			result_json = EXCLUDED.result_json,
			updated_at = EXCLUDED.updated_at;
	`

	if _, err := pool.Exec(ctx, query, result.Issuer.CIK, result.Issuer.Name, jsonData, time.Now()); err != nil {
		return fmt.Errorf("failed to save extraction result: %w", err)
	}
	return nil
}

// Load retrieves the stored extraction for a CIK.
func (r *ResultRepo) Load(ctx context.Context, cik string) (*pipeline.Result, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var jsonData []byte
	err := pool.QueryRow(ctx, `SELECT result_json FROM extraction_results WHERE cik = $1`, cik).Scan(&jsonData)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no stored extraction for CIK %s", cik)
		}
		return nil, fmt.Errorf("failed to load extraction result: %w", err)
	}

	var result pipeline.Result
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extraction result: %w", err)
	}
	return &result, nil
}
