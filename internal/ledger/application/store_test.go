package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	ledger "cie-ledger/internal/ledger/domain"
)

type stubSnapshot struct {
	table    ledger.Table
	exists   bool
	loadErr  error
	saveErrs []error // popped per Save call
	removed  int
	saves    int
}

func (s *stubSnapshot) Exists() bool { return s.exists }
func (s *stubSnapshot) Path() string { return "stub.db" }

func (s *stubSnapshot) Load(context.Context) (ledger.Table, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.table, nil
}

func (s *stubSnapshot) Save(_ context.Context, table ledger.Table) error {
	s.saves++
	if len(s.saveErrs) > 0 {
		err := s.saveErrs[0]
		s.saveErrs = s.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	s.table = table
	s.exists = true
	return nil
}

func (s *stubSnapshot) Remove() error {
	s.removed++
	s.exists = false
	return nil
}

type stubBackup struct {
	table    ledger.Table
	exists   bool
	readErr  error
	writeErr error
	writes   int
}

func (b *stubBackup) Exists() bool { return b.exists }
func (b *stubBackup) Path() string { return "stub.xlsx" }

func (b *stubBackup) Read() (ledger.Table, error) {
	if b.readErr != nil {
		return nil, b.readErr
	}
	return b.table, nil
}

func (b *stubBackup) Write(table ledger.Table) error {
	b.writes++
	if b.writeErr != nil {
		return b.writeErr
	}
	b.table = table
	b.exists = true
	return nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func row(id, period string, amount float64) ledger.Row {
	return ledger.Row{Identifier: id, Tension: ledger.TensionLow, Period: period, Amount: amount, Status: ledger.StatusActive}
}

func TestLoadPrefersSnapshot(t *testing.T) {
	snap := &stubSnapshot{exists: true, table: ledger.Table{row("A1", "01/2025", 10)}}
	back := &stubBackup{exists: true, table: ledger.Table{row("B2", "01/2025", 20)}}
	store, _ := NewStore(snap, back, quietLogger())

	result, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Source != SourceSnapshot || result.Rows != 1 {
		t.Fatalf("result = %+v, want snapshot source", result)
	}
	if store.Rows()[0].Identifier != "A1" {
		t.Fatalf("loaded table from wrong source: %+v", store.Rows())
	}
}

func TestLoadCorruptSnapshotFallsBackToBackup(t *testing.T) {
	snap := &stubSnapshot{exists: true, loadErr: errors.New("file is not a database")}
	back := &stubBackup{exists: true, table: ledger.Table{row("B2", "01/2025", 20)}}
	store, _ := NewStore(snap, back, quietLogger())

	result, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Source != SourceBackup || !result.Recovered {
		t.Fatalf("result = %+v, want recovered backup source", result)
	}
	if snap.removed != 1 {
		t.Fatalf("corrupt snapshot should be deleted, removed=%d", snap.removed)
	}
}

func TestLoadNothingPresentSynthesizesEmpty(t *testing.T) {
	store, _ := NewStore(&stubSnapshot{}, &stubBackup{}, quietLogger())
	result, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Source != SourceEmpty || len(store.Rows()) != 0 {
		t.Fatalf("result = %+v rows=%d, want empty ledger", result, len(store.Rows()))
	}
}

func TestSaveRetriesOnceThenPropagates(t *testing.T) {
	snap := &stubSnapshot{saveErrs: []error{errors.New("disk full"), errors.New("disk full")}}
	back := &stubBackup{}
	store, _ := NewStore(snap, back, quietLogger())
	store.Replace(ledger.Table{row("A1", "01/2025", 10)})

	err := store.Save(context.Background())
	if err == nil {
		t.Fatal("expected save failure to propagate after retry")
	}
	if snap.saves != 2 {
		t.Fatalf("saves = %d, want exactly one retry", snap.saves)
	}
	if snap.removed != 1 {
		t.Fatalf("stale snapshot should be deleted before the retry")
	}
	if len(store.Rows()) != 1 {
		t.Fatal("in-memory table must stay valid after a failed save")
	}
}

func TestSaveRecoverOnRetry(t *testing.T) {
	snap := &stubSnapshot{saveErrs: []error{errors.New("transient")}}
	back := &stubBackup{}
	store, _ := NewStore(snap, back, quietLogger())
	store.Replace(ledger.Table{row("A1", "01/2025", 10)})

	if err := store.Save(context.Background()); err != nil {
		t.Fatalf("Save should succeed on retry: %v", err)
	}
	if len(snap.table) != 1 {
		t.Fatal("snapshot not written on retry")
	}
}

func TestSaveBackupFailureIsNonFatal(t *testing.T) {
	snap := &stubSnapshot{}
	back := &stubBackup{writeErr: errors.New("sheet locked")}
	store, _ := NewStore(snap, back, quietLogger())
	store.Replace(ledger.Table{row("A1", "01/2025", 10)})

	if err := store.Save(context.Background()); err != nil {
		t.Fatalf("backup mirror failure must not surface: %v", err)
	}
	if back.writes != 1 {
		t.Fatal("backup write should have been attempted")
	}
}

func TestAddRowManualEntry(t *testing.T) {
	store, _ := NewStore(&stubSnapshot{}, &stubBackup{}, quietLogger())

	added, err := store.AddRow(context.Background(), ledger.RowParams{
		Identifier: "A1", AgencyCode: "AG1", Tension: ledger.TensionLow,
	})
	if err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	if added.Status != ledger.StatusActive {
		t.Errorf("manual row should default to active, got %q", added.Status)
	}
	if len(store.Rows()) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(store.Rows()))
	}
}

func TestDeleteRows(t *testing.T) {
	store, _ := NewStore(&stubSnapshot{}, &stubBackup{}, quietLogger())
	store.Replace(ledger.Table{row("A1", "01/2025", 1), row("B2", "01/2025", 2), row("C3", "01/2025", 3)})

	deleted, err := store.DeleteRows(context.Background(), []int{1, 99})
	if err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1 (out-of-range ignored)", deleted)
	}
	rows := store.Rows()
	if len(rows) != 2 || rows[0].Identifier != "A1" || rows[1].Identifier != "C3" {
		t.Fatalf("unexpected remaining rows: %+v", rows)
	}
}
