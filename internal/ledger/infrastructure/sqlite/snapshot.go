package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	ledger "cie-ledger/internal/ledger/domain"
)

const snapshotSchema = `
CREATE TABLE ledger_rows (
	seq INTEGER PRIMARY KEY,
	unit_code TEXT,
	region_code TEXT,
	agency_code TEXT,
	site_name TEXT,
	identifier TEXT NOT NULL,
	tension TEXT,
	period TEXT,
	consumption REAL,
	amount REAL,
	supplementary_period TEXT,
	status TEXT,
	subscribed_power REAL,
	reached_power REAL,
	expense_account TEXT
)`

// SnapshotStore persists the ledger wholesale into a single sqlite file. The
// file is the authoritative store; it is rewritten completely on every save
// and deleted when found corrupt.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore constructs a store for the given file path.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	if path == "" {
		return nil, errors.New("snapshot store: empty path")
	}
	return &SnapshotStore{path: path}, nil
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string { return s.path }

// Exists reports whether a snapshot file is present.
func (s *SnapshotStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Remove deletes the snapshot file. Missing file is not an error.
func (s *SnapshotStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads the whole ledger back. Any read or scan failure is returned to
// the caller, which decides whether to discard the file and fall back.
func (s *SnapshotStore) Load(ctx context.Context) (ledger.Table, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: open: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
SELECT unit_code, region_code, agency_code, site_name, identifier, tension,
	period, consumption, amount, supplementary_period, status,
	subscribed_power, reached_power, expense_account
FROM ledger_rows
ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: query: %w", err)
	}
	defer rows.Close()

	var table ledger.Table
	for rows.Next() {
		var r ledger.Row
		if err := rows.Scan(
			&r.UnitCode, &r.RegionCode, &r.AgencyCode, &r.SiteName,
			&r.Identifier, &r.Tension, &r.Period, &r.Consumption, &r.Amount,
			&r.SupplementaryPeriod, &r.Status,
			&r.SubscribedPower, &r.ReachedPower, &r.ExpenseAccount,
		); err != nil {
			return nil, fmt.Errorf("snapshot store: scan: %w", err)
		}
		r.Identifier = ledger.NormalizeIdentifier(r.Identifier)
		if r.ExpenseAccount == "" {
			r.ExpenseAccount = ledger.DefaultExpenseAccount
		}
		table = append(table, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot store: rows: %w", err)
	}
	return table, nil
}

// Save rewrites the snapshot with the full table in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, table ledger.Table) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("snapshot store: open: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot store: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS ledger_rows`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("snapshot store: drop: %w", err)
	}
	if _, err := tx.ExecContext(ctx, snapshotSchema); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("snapshot store: create: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO ledger_rows (
	seq, unit_code, region_code, agency_code, site_name, identifier, tension,
	period, consumption, amount, supplementary_period, status,
	subscribed_power, reached_power, expense_account
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("snapshot store: prepare: %w", err)
	}
	defer stmt.Close()

	for i, r := range table {
		if _, err := stmt.ExecContext(ctx,
			i, r.UnitCode, r.RegionCode, r.AgencyCode, r.SiteName,
			r.Identifier, r.Tension, r.Period, r.Consumption, r.Amount,
			r.SupplementaryPeriod, r.Status,
			r.SubscribedPower, r.ReachedPower, r.ExpenseAccount,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("snapshot store: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot store: commit: %w", err)
	}
	return nil
}
