package invoices

import (
	"log"
	"os"
	"testing"

	ledger "cie-ledger/internal/ledger/domain"
)

func testMerger(t *testing.T) *Merger {
	t.Helper()
	m, err := NewMerger(log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	return m
}

func siteRow(identifier, period string) ledger.Row {
	return ledger.Row{
		UnitCode:       "DRAN",
		AgencyCode:     "920",
		SiteName:       "ECOLE PRIMAIRE",
		Identifier:     identifier,
		Tension:        ledger.TensionLow,
		Period:         period,
		Status:         ledger.StatusActive,
		ExpenseAccount: ledger.DefaultExpenseAccount,
	}
}

func TestMergeCumulatesNormalRows(t *testing.T) {
	table := ledger.Table{siteRow("A100", "01/2025")}
	batch := &Batch{
		Source: SourceBT, Tension: ledger.TensionLow, Period: "03/2025",
		Rows: []BatchRow{
			{Identifier: "A100", Amount: 1000, Consumption: 10, Period: "03/2025"},
			{Identifier: "A100", Amount: 2000, Consumption: 20, Period: "03/2025"},
			{Identifier: "A100", Amount: 500, Consumption: 5, Period: "03/2025"},
		},
	}

	next, result, err := testMerger(t).Merge(table, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.RowsAdded != 1 {
		t.Fatalf("rows added = %d, want 1", result.RowsAdded)
	}
	if result.Stats.NormalRaw != 3 || result.Stats.NormalCumulated != 1 {
		t.Fatalf("stats = %+v, want 3 raw / 1 cumulated", result.Stats)
	}
	idx := next.FindIndex("A100", "03/2025", "E0")
	if idx < 0 {
		t.Fatal("merged row not found")
	}
	if next[idx].Amount != 3500 {
		t.Fatalf("amount = %v, want 3500", next[idx].Amount)
	}
	if next[idx].Consumption != 35 {
		t.Fatalf("consumption = %v, want 35", next[idx].Consumption)
	}
	if next[idx].SiteName != "ECOLE PRIMAIRE" {
		t.Fatalf("descriptive fields not copied: %+v", next[idx])
	}
}

func TestMergeSubtypesCoexist(t *testing.T) {
	table := ledger.Table{siteRow("H200", "01/2025")}
	batch := &Batch{
		Source: SourceHT, Tension: ledger.TensionHigh, Period: "03/2025",
		HasTypeColumn:          true,
		HasSupplementaryColumn: true,
		Rows: []BatchRow{
			{Identifier: "H200", Amount: 9000, TypeCode: "E0", Period: "03/2025"},
			{Identifier: "H200", Amount: 1200, TypeCode: "E1", Period: "03/2025", SupplementaryPeriod: "01/2025"},
			{Identifier: "H200", Amount: 700, TypeCode: "E5", Period: "03/2025"},
		},
	}

	next, result, err := testMerger(t).Merge(table, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.RowsAdded != 3 {
		t.Fatalf("rows added = %d, want 3", result.RowsAdded)
	}
	if next.FindIndex("H200", "03/2025", "E0") < 0 {
		t.Fatal("normal row missing")
	}
	suppl := next.FindIndex("H200", "03/2025", "E1_01/2025")
	if suppl < 0 {
		t.Fatal("supplementary row missing")
	}
	if next[suppl].Tension != ledger.TensionHigh {
		t.Fatalf("tension = %q, want %q", next[suppl].Tension, ledger.TensionHigh)
	}
	credit := next.FindIndex("H200", "03/2025", "E5")
	if credit < 0 {
		t.Fatal("credit note row missing")
	}
	if next[credit].Amount != -700 {
		t.Fatalf("credit amount = %v, want -700", next[credit].Amount)
	}
}

func TestMergeCreditNoteCorrectionLeavesNormalRow(t *testing.T) {
	table := ledger.Table{siteRow("H200", "01/2025")}
	m := testMerger(t)
	batch := &Batch{
		Source: SourceHT, Tension: ledger.TensionHigh, Period: "03/2025",
		HasTypeColumn: true,
		Rows: []BatchRow{
			{Identifier: "H200", Amount: 1000, TypeCode: "E0", Period: "03/2025"},
			{Identifier: "H200", Amount: -200, TypeCode: "E5", Period: "03/2025"},
		},
	}
	table, _, err := m.Merge(table, batch)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}

	correction := &Batch{
		Source: SourceHT, Tension: ledger.TensionHigh, Period: "03/2025",
		HasTypeColumn: true,
		Rows: []BatchRow{
			{Identifier: "H200", Amount: -250, TypeCode: "E5", Period: "03/2025"},
		},
	}
	table, result, err := m.Merge(table, correction)
	if err != nil {
		t.Fatalf("correction merge: %v", err)
	}
	if result.RowsAdded != 0 || result.RowsUpdated != 1 {
		t.Fatalf("correction added %d updated %d, want 0/1", result.RowsAdded, result.RowsUpdated)
	}
	credit := table.FindIndex("H200", "03/2025", "E5")
	if credit < 0 || table[credit].Amount != -250 {
		t.Fatalf("credit row not corrected: %+v", table)
	}
	normal := table.FindIndex("H200", "03/2025", "E0")
	if normal < 0 || table[normal].Amount != 1000 {
		t.Fatalf("normal row touched by correction: %+v", table)
	}
}

func TestMergeNegativeAmountInTypelessBatch(t *testing.T) {
	normal := siteRow("A100", "03/2025")
	normal.Amount = 1000
	credit := siteRow("A100", "03/2025")
	credit.Amount = -200
	table := ledger.Table{normal, credit}

	batch := &Batch{
		Source: SourceBT, Tension: ledger.TensionLow, Period: "03/2025",
		Rows: []BatchRow{
			{Identifier: "A100", Amount: -300, Period: "03/2025"},
		},
	}

	next, result, err := testMerger(t).Merge(table, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.RowsAdded != 0 || result.RowsUpdated != 1 || result.DuplicatesCollapsed != 0 {
		t.Fatalf("added %d updated %d collapsed %d, want 0/1/0",
			result.RowsAdded, result.RowsUpdated, result.DuplicatesCollapsed)
	}
	if len(next) != 2 {
		t.Fatalf("table has %d rows, want 2 (no row may vanish)", len(next))
	}
	creditIdx := next.FindIndex("A100", "03/2025", "E5")
	if creditIdx < 0 || next[creditIdx].Amount != -300 {
		t.Fatalf("credit row not updated: %+v", next)
	}
	normalIdx := next.FindIndex("A100", "03/2025", "E0")
	if normalIdx < 0 || next[normalIdx].Amount != 1000 {
		t.Fatalf("normal row touched: %+v", next)
	}
}

func TestMergeSupplementaryPendingWithoutDateColumn(t *testing.T) {
	table := ledger.Table{siteRow("H200", "01/2025")}
	batch := &Batch{
		Source: SourceHT, Tension: ledger.TensionHigh, Period: "03/2025",
		HasTypeColumn: true,
		Rows: []BatchRow{
			{Identifier: "H200", Amount: 1200, TypeCode: "E1", Period: "03/2025"},
		},
	}

	next, result, err := testMerger(t).Merge(table, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.RowsAdded != 0 {
		t.Fatalf("rows added = %d, want 0", result.RowsAdded)
	}
	if len(result.PendingManual) != 1 {
		t.Fatalf("pending = %d, want 1", len(result.PendingManual))
	}
	if len(next) != len(table) {
		t.Fatalf("table grew to %d rows", len(next))
	}
}

func TestMergeUnmatchedIdentifierExcluded(t *testing.T) {
	table := ledger.Table{siteRow("A100", "01/2025")}
	batch := &Batch{
		Source: SourceBT, Tension: ledger.TensionLow, Period: "03/2025",
		Rows: []BatchRow{
			{Identifier: "A100", Amount: 1000, Period: "03/2025"},
			{Identifier: "ZZZ9", Amount: 5000, Period: "03/2025"},
		},
	}

	next, result, err := testMerger(t).Merge(table, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(result.Unmatched) != 1 || result.Unmatched[0].Identifier != "ZZZ9" {
		t.Fatalf("unmatched = %+v", result.Unmatched)
	}
	if next.FindIndex("ZZZ9", "03/2025", "E0") >= 0 {
		t.Fatal("unknown identifier must not enter the ledger")
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	table := ledger.Table{siteRow("A100", "01/2025")}
	batch := &Batch{
		Source: SourceBT, Tension: ledger.TensionLow, Period: "03/2025",
		Rows: []BatchRow{
			{Identifier: "A100", Amount: 1000, Consumption: 10, Period: "03/2025"},
		},
	}
	m := testMerger(t)

	first, result, err := m.Merge(table, batch)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if result.RowsAdded != 1 {
		t.Fatalf("first rows added = %d, want 1", result.RowsAdded)
	}
	second, result, err := m.Merge(first, batch)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if result.RowsAdded != 0 || result.RowsUpdated != 1 {
		t.Fatalf("second merge added %d updated %d, want 0/1", result.RowsAdded, result.RowsUpdated)
	}
	if len(second) != len(first) {
		t.Fatalf("table grew from %d to %d rows", len(first), len(second))
	}
}

func TestMergeUpdatePreservesDescriptiveFields(t *testing.T) {
	existing := siteRow("A100", "03/2025")
	existing.Amount = 1000
	table := ledger.Table{existing}
	batch := &Batch{
		Source: SourceBT, Tension: ledger.TensionLow, Period: "03/2025",
		Rows: []BatchRow{
			{Identifier: "A100", Amount: 4200, Consumption: 42, Period: "03/2025"},
		},
	}

	next, _, err := testMerger(t).Merge(table, batch)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	idx := next.FindIndex("A100", "03/2025", "E0")
	if next[idx].Amount != 4200 || next[idx].Consumption != 42 {
		t.Fatalf("measured fields not refreshed: %+v", next[idx])
	}
	if next[idx].SiteName != "ECOLE PRIMAIRE" || next[idx].AgencyCode != "920" {
		t.Fatalf("descriptive fields overwritten: %+v", next[idx])
	}
}

func TestMergeSupplementaryManual(t *testing.T) {
	table := ledger.Table{siteRow("H200", "01/2025")}
	row := BatchRow{Identifier: "H200", Amount: 1200, Period: "03/2025"}

	next, ok := testMerger(t).MergeSupplementary(table, row, "12/2024", ledger.TensionHigh)
	if !ok {
		t.Fatal("manual merge refused for known identifier")
	}
	idx := next.FindIndex("H200", "03/2025", "E1_12/2024")
	if idx < 0 {
		t.Fatal("supplementary row missing")
	}
	if next[idx].SupplementaryPeriod != "12/2024" {
		t.Fatalf("supplementary period = %q", next[idx].SupplementaryPeriod)
	}

	_, ok = testMerger(t).MergeSupplementary(table, BatchRow{Identifier: "NOPE", Period: "03/2025"}, "12/2024", ledger.TensionHigh)
	if ok {
		t.Fatal("manual merge accepted unknown identifier")
	}
}
