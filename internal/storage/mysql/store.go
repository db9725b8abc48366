// Package mysql implements a package-keyed storage.PackageReader and
// storage.PackageWriter over go-sql-driver/mysql, grounded on the teacher's
// internal/infra/db/mysql/scan_repo.go.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
	"github.com/bryanwahyu/scanorch/internal/storage"
)

type Store struct {
	db *sql.DB
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
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
CREATE TABLE IF NOT EXISTS nested_scan_results (
  package_id VARCHAR(255) NOT NULL,
  scanner_name VARCHAR(255) NOT NULL,
  scanner_version VARCHAR(64) NOT NULL,
  nested_json MEDIUMTEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (package_id, scanner_name, scanner_version)
) ENGINE=InnoDB;
`)
	return err
}

// wireNestedResult is the JSON-on-the-wire shape of a storage.NestedResult;
// it exists because scanner.ScanResult.Provenance carries json:"-" (it is
// redundant with the key in ScanResults) but the persisted row still needs
// to carry the NestedProvenance tree itself.
type wireNestedResult struct {
	Nested      provenance.NestedProvenance  `json:"nested"`
	ScanResults map[string][]scanner.ScanResult `json:"scanResults"`
}

// Read implements storage.PackageReader. Because scanner_name/scanner_version
// are part of the primary key rather than the row payload, criteria.NamePattern
// narrows the SQL query and ConfigCompatible/version-range narrowing happens
// in-memory against the decoded rows.
func (s *Store) Read(ctx context.Context, pkg pkgmodel.Package, criteria scanner.ScannerCriteria) ([]storage.NestedResult, error) {
	query := `SELECT nested_json FROM nested_scan_results WHERE package_id = ?`
	args := []any{string(pkg.ID)}
	if criteria.NamePattern != "" {
		query += ` AND scanner_name = ?`
		args = append(args, criteria.NamePattern)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nested_scan_results: %w", err)
	}
	defer rows.Close()

	var out []storage.NestedResult
	for rows.Next() {
		var nestedJSON string
		if err := rows.Scan(&nestedJSON); err != nil {
			return nil, fmt.Errorf("scan nested_scan_results row: %w", err)
		}
		var wire wireNestedResult
		if err := json.Unmarshal([]byte(nestedJSON), &wire); err != nil {
			return nil, fmt.Errorf("decode nested result for %s: %w", pkg.ID, err)
		}
		filtered := filterByCriteria(wire.ScanResults, criteria)
		if len(filtered) == 0 {
			continue
		}
		out = append(out, storage.NestedResult{Nested: wire.Nested, ScanResults: filtered})
	}
	return out, rows.Err()
}

func filterByCriteria(all map[string][]scanner.ScanResult, criteria scanner.ScannerCriteria) map[string][]scanner.ScanResult {
	out := make(map[string][]scanner.ScanResult, len(all))
	for key, results := range all {
		var kept []scanner.ScanResult
		for _, r := range results {
			if criteria.Satisfies(r.Scanner) {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			out[key] = kept
		}
	}
	return out
}

// Write implements storage.PackageWriter. The scanner identity used for the
// row key is taken from the first result found in the nested tree; a
// package-granular scanner writes one ScannerDetails across its whole tree,
// so any entry is representative.
func (s *Store) Write(ctx context.Context, pkg pkgmodel.Package, result storage.NestedResult) error {
	details := representativeDetails(result)
	wire := wireNestedResult{Nested: result.Nested, ScanResults: result.ScanResults}
	nestedJSON, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode nested result: %w", err)
	}

	const q = `
INSERT INTO nested_scan_results (package_id, scanner_name, scanner_version, nested_json)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE nested_json = VALUES(nested_json), created_at = CURRENT_TIMESTAMP;`

	_, err = s.db.ExecContext(ctx, q, stringOrDash(string(pkg.ID)), stringOrDash(details.Name), stringOrDash(details.Version), string(nestedJSON))
	return err
}

func representativeDetails(result storage.NestedResult) scanner.ScannerDetails {
	for _, results := range result.ScanResults {
		if len(results) > 0 {
			return results[0].Scanner
		}
	}
	return scanner.ScannerDetails{}
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
