// Package postgres implements a provenance-keyed storage.ProvenanceReader and
// storage.ProvenanceWriter over lib/pq, grounded on the teacher's
// internal/infra/db/postgres/scan_repo.go.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
)

type Store struct {
	db *sql.DB
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS scan_results (
  provenance_key TEXT NOT NULL,
  scanner_name TEXT NOT NULL,
  scanner_version TEXT NOT NULL,
  config_fingerprint TEXT NOT NULL,
  summary_json TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (provenance_key, scanner_name, scanner_version, config_fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_scan_results_provenance ON scan_results (provenance_key);
`)
	return err
}

// Read implements storage.ProvenanceReader.
func (s *Store) Read(ctx context.Context, known provenance.Provenance, criteria scanner.ScannerCriteria) ([]scanner.ScanResult, error) {
	const q = `
SELECT scanner_name, scanner_version, config_fingerprint, summary_json
FROM scan_results
WHERE provenance_key = $1`

	rows, err := s.db.QueryContext(ctx, q, known.CacheKey())
	if err != nil {
		return nil, fmt.Errorf("query scan_results: %w", err)
	}
	defer rows.Close()

	var out []scanner.ScanResult
	for rows.Next() {
		var details scanner.ScannerDetails
		var summaryJSON string
		if err := rows.Scan(&details.Name, &details.Version, &details.ConfigFingerprint, &summaryJSON); err != nil {
			return nil, fmt.Errorf("scan scan_results row: %w", err)
		}
		if !criteria.Satisfies(details) {
			continue
		}
		var summary scanner.ScanSummary
		if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
			return nil, fmt.Errorf("decode summary for %s: %w", known.CacheKey(), err)
		}
		out = append(out, scanner.ScanResult{Provenance: known, Scanner: details, Summary: summary})
	}
	return out, rows.Err()
}

// Write implements storage.ProvenanceWriter.
func (s *Store) Write(ctx context.Context, known provenance.Provenance, result scanner.ScanResult) error {
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	const q = `
INSERT INTO scan_results (provenance_key, scanner_name, scanner_version, config_fingerprint, summary_json)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (provenance_key, scanner_name, scanner_version, config_fingerprint)
DO UPDATE SET summary_json = EXCLUDED.summary_json, created_at = now();`

	_, err = s.db.ExecContext(ctx, q,
		known.CacheKey(),
		result.Scanner.Name, result.Scanner.Version, result.Scanner.ConfigFingerprint,
		string(summaryJSON),
	)
	return err
}

// ListProvenances returns every distinct provenance key stored, paginated
// the way the teacher paginates scans (internal/domain/scans/paginated.go),
// useful for operators auditing cache contents.
func (s *Store) ListProvenances(ctx context.Context, page, pageSize int) ([]string, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT provenance_key FROM scan_results
ORDER BY provenance_key
LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, 0, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT provenance_key) FROM scan_results`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return keys, total, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
