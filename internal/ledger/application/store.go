package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	ledger "cie-ledger/internal/ledger/domain"
	"cie-ledger/internal/observability/metrics"
)

// Load sources, in fallback order.
const (
	SourceSnapshot = "snapshot"
	SourceBackup   = "backup"
	SourceEmpty    = "empty"
)

// SnapshotStore is the authoritative binary store for the ledger.
type SnapshotStore interface {
	Exists() bool
	Load(ctx context.Context) (ledger.Table, error)
	Save(ctx context.Context, table ledger.Table) error
	Remove() error
	Path() string
}

// BackupStore is the human-readable spreadsheet mirror.
type BackupStore interface {
	Exists() bool
	Read() (ledger.Table, error)
	Write(table ledger.Table) error
	Path() string
}

// LoadResult reports which source produced the in-memory ledger.
type LoadResult struct {
	Source    string
	Rows      int
	Recovered bool // a corrupt snapshot was deleted during the load
}

// Store owns the in-memory ledger for the session: loaded once at start,
// mutated through merges or manual edits, persisted wholesale after every
// mutation. Exactly one writer per session.
type Store struct {
	snapshot SnapshotStore
	backup   BackupStore
	logger   *log.Logger

	table ledger.Table
}

// NewStore constructs the session store.
func NewStore(snapshot SnapshotStore, backup BackupStore, logger *log.Logger) (*Store, error) {
	if snapshot == nil {
		return nil, errors.New("ledger store: nil snapshot store")
	}
	if backup == nil {
		return nil, errors.New("ledger store: nil backup store")
	}
	if logger == nil {
		return nil, errors.New("ledger store: nil logger")
	}
	return &Store{snapshot: snapshot, backup: backup, logger: logger}, nil
}

// Rows returns the current ledger table.
func (s *Store) Rows() ledger.Table { return s.table }

// Replace swaps the in-memory table. The caller is responsible for saving.
func (s *Store) Replace(table ledger.Table) { s.table = table }

// Load fills the store from the first working source: binary snapshot, then
// spreadsheet backup, then an empty ledger. A snapshot that fails to
// deserialize is deleted so the next session starts clean.
func (s *Store) Load(ctx context.Context) (LoadResult, error) {
	result := LoadResult{Source: SourceEmpty}

	if s.snapshot.Exists() {
		table, err := s.snapshot.Load(ctx)
		if err == nil {
			s.table = table
			result.Source = SourceSnapshot
			result.Rows = len(table)
			return result, nil
		}
		s.logger.Printf("ledger store: snapshot unreadable, discarding %s: %v", s.snapshot.Path(), err)
		if rmErr := s.snapshot.Remove(); rmErr != nil {
			s.logger.Printf("ledger store: could not remove corrupt snapshot: %v", rmErr)
		}
		result.Recovered = true
	}

	if s.backup.Exists() {
		table, err := s.backup.Read()
		if err == nil {
			s.table = table
			result.Source = SourceBackup
			result.Rows = len(table)
			return result, nil
		}
		s.logger.Printf("ledger store: backup unreadable %s: %v", s.backup.Path(), err)
	}

	s.table = ledger.Table{}
	return result, nil
}

// Save persists the table: snapshot first, with one delete-and-retry on
// failure; a second failure propagates (the table stays valid in memory but
// is not durable). The spreadsheet mirror is best-effort and never fatal.
func (s *Store) Save(ctx context.Context) error {
	retried := false
	err := s.snapshot.Save(ctx, s.table)
	if err != nil {
		s.logger.Printf("ledger store: snapshot save failed, retrying after delete: %v", err)
		retried = true
		if rmErr := s.snapshot.Remove(); rmErr != nil {
			s.logger.Printf("ledger store: could not remove stale snapshot: %v", rmErr)
		}
		err = s.snapshot.Save(ctx, s.table)
	}
	if err != nil {
		metrics.ObserveSave(metrics.ResultError, retried)
		return fmt.Errorf("ledger store: snapshot not saved, data remains in memory only: %w", err)
	}
	metrics.ObserveSave(metrics.ResultSuccess, retried)

	if err := s.backup.Write(s.table); err != nil {
		s.logger.Printf("ledger store: backup mirror failed (non-fatal): %v", err)
	}
	return nil
}

// AddRow appends a manually entered row and saves. Manual entry is the only
// way to onboard a site the ledger has never seen.
func (s *Store) AddRow(ctx context.Context, params ledger.RowParams) (ledger.Row, error) {
	row, err := ledger.NewRow(params)
	if err != nil {
		return ledger.Row{}, err
	}
	s.table = append(s.table, row)
	deduped, _ := s.table.Dedupe()
	s.table = deduped
	if err := s.Save(ctx); err != nil {
		return row, err
	}
	return row, nil
}

// UpdateRow replaces the row at index and saves.
func (s *Store) UpdateRow(ctx context.Context, index int, row ledger.Row) error {
	if index < 0 || index >= len(s.table) {
		return fmt.Errorf("ledger store: row index %d out of range", index)
	}
	s.table[index] = row
	return s.Save(ctx)
}

// DeleteRows removes the rows at the given indexes and saves.
func (s *Store) DeleteRows(ctx context.Context, indexes []int) (int, error) {
	drop := make(map[int]struct{}, len(indexes))
	for _, idx := range indexes {
		if idx >= 0 && idx < len(s.table) {
			drop[idx] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	kept := make(ledger.Table, 0, len(s.table)-len(drop))
	for i, row := range s.table {
		if _, gone := drop[i]; !gone {
			kept = append(kept, row)
		}
	}
	s.table = kept
	if err := s.Save(ctx); err != nil {
		return len(drop), err
	}
	return len(drop), nil
}
