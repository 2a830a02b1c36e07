package invoices

import (
	"errors"
	"log"
	"math"
	"strings"
	"time"

	ledger "cie-ledger/internal/ledger/domain"
	"cie-ledger/internal/observability/metrics"
)

// TypeStats counts batch rows by subtype, before and after cumulation.
type TypeStats struct {
	NormalRaw       int // normal rows as read from the file
	NormalCumulated int // normal rows after per-identifier cumulation
	Supplementary   int
	CreditNotes     int
	OtherCodes      int // rows whose code is neither E0, E1 nor E5
}

// MergeResult summarizes one batch merge into the ledger.
type MergeResult struct {
	Period              string
	RowsAdded           int
	RowsUpdated         int
	DuplicatesCollapsed int
	Unmatched           []BatchRow // identifiers absent from the ledger
	PendingManual       []BatchRow // supplementary rows left for manual validation
	Stats               TypeStats
}

// Merger folds invoice batches into the ledger table.
type Merger struct {
	logger *log.Logger
}

func NewMerger(logger *log.Logger) (*Merger, error) {
	if logger == nil {
		return nil, errors.New("invoices: logger is required")
	}
	return &Merger{logger: logger}, nil
}

// Merge applies a batch to the table and returns the updated table. The input
// table is not mutated. Supplementary rows are returned in PendingManual
// unless the batch carries the explicit supplementary-period column, in which
// case they are merged directly.
func (m *Merger) Merge(table ledger.Table, batch *Batch) (ledger.Table, MergeResult, error) {
	if batch == nil {
		return nil, MergeResult{}, errors.New("invoices: batch is required")
	}
	start := time.Now()
	result := MergeResult{Period: batch.Period}

	var normals, credits, merged []BatchRow
	for _, row := range batch.Rows {
		switch row.Type() {
		case ledger.TypeCreditNote:
			result.Stats.CreditNotes++
			row.Amount = -math.Abs(row.Amount)
			credits = append(credits, row)
		case ledger.TypeSupplementary:
			result.Stats.Supplementary++
			if batch.HasSupplementaryColumn && row.SupplementaryPeriod != "" {
				merged = append(merged, row)
			} else {
				result.PendingManual = append(result.PendingManual, row)
			}
		default:
			if code := strings.ToUpper(strings.TrimSpace(row.TypeCode)); code != "" && code != "E0" {
				result.Stats.OtherCodes++
			}
			normals = append(normals, row)
		}
	}
	result.Stats.NormalRaw = len(normals)
	normals = cumulate(normals)
	result.Stats.NormalCumulated = len(normals)

	merged = append(merged, normals...)
	merged = append(merged, credits...)

	next := make(ledger.Table, len(table))
	copy(next, table)

	var appended ledger.Table
	for _, row := range merged {
		period := row.Period
		if period == "" {
			period = batch.Period
		}
		discriminant := discriminantFor(row)
		if idx := next.FindIndex(row.Identifier, period, discriminant); idx >= 0 {
			applyUpdate(&next[idx], row, batch)
			result.RowsUpdated++
			continue
		}
		src, ok := next.FirstByIdentifier(row.Identifier)
		if !ok {
			result.Unmatched = append(result.Unmatched, row)
			continue
		}
		appended = append(appended, synthesize(src, row, period, batch.Tension))
	}

	next = append(next, appended...)
	next, collapsed := next.Dedupe()
	result.DuplicatesCollapsed = collapsed
	result.RowsAdded = len(appended) - collapsed

	m.logger.Printf("merge %s %s: %d added, %d updated, %d duplicates, %d unmatched, %d pending",
		batch.Source, batch.Period, result.RowsAdded, result.RowsUpdated,
		result.DuplicatesCollapsed, len(result.Unmatched), len(result.PendingManual))
	metrics.ObserveMerge(batch.Source, metrics.ResultSuccess,
		result.RowsAdded, result.DuplicatesCollapsed, len(result.Unmatched), time.Since(start))
	return next, result, nil
}

// MergeSupplementary applies a manually validated supplementary row, using
// the operator-supplied canonical period.
func (m *Merger) MergeSupplementary(table ledger.Table, row BatchRow, supplementaryPeriod, tension string) (ledger.Table, bool) {
	row.SupplementaryPeriod = supplementaryPeriod
	row.TypeCode = "E1"
	batch := &Batch{Tension: tension, HasPowerColumns: true}

	next := make(ledger.Table, len(table))
	copy(next, table)

	period := row.Period
	discriminant := discriminantFor(row)
	if idx := next.FindIndex(row.Identifier, period, discriminant); idx >= 0 {
		applyUpdate(&next[idx], row, batch)
		return next, true
	}
	src, ok := next.FirstByIdentifier(row.Identifier)
	if !ok {
		return table, false
	}
	next = append(next, synthesize(src, row, period, tension))
	return next, true
}

// cumulate collapses normal rows onto one row per identifier: amounts,
// consumption and reached power are summed, subscribed power keeps its
// maximum, the period keeps its first non-empty value.
func cumulate(rows []BatchRow) []BatchRow {
	if len(rows) == 0 {
		return rows
	}
	index := make(map[string]int, len(rows))
	out := make([]BatchRow, 0, len(rows))
	for _, row := range rows {
		i, seen := index[row.Identifier]
		if !seen {
			index[row.Identifier] = len(out)
			out = append(out, row)
			continue
		}
		out[i].Amount += row.Amount
		out[i].Consumption += row.Consumption
		out[i].ReachedPower += row.ReachedPower
		if row.SubscribedPower > out[i].SubscribedPower {
			out[i].SubscribedPower = row.SubscribedPower
		}
		if out[i].Period == "" {
			out[i].Period = row.Period
		}
	}
	return out
}

func discriminantFor(row BatchRow) string {
	switch row.Type() {
	case ledger.TypeCreditNote:
		return "E5"
	case ledger.TypeSupplementary:
		return "E1_" + row.SupplementaryPeriod
	default:
		return "E0"
	}
}

// applyUpdate refreshes the measured fields of an existing ledger row and
// leaves its descriptive fields untouched.
func applyUpdate(dst *ledger.Row, row BatchRow, batch *Batch) {
	dst.Consumption = row.Consumption
	dst.Amount = row.Amount
	if batch.HasPowerColumns {
		dst.SubscribedPower = row.SubscribedPower
		dst.ReachedPower = row.ReachedPower
	}
	dst.SupplementaryPeriod = row.SupplementaryPeriod
}

// synthesize builds a new ledger row for a known site, copying the
// descriptive fields from an existing row of the same identifier.
func synthesize(src ledger.Row, row BatchRow, period, tension string) ledger.Row {
	out := src
	out.Period = period
	out.Consumption = row.Consumption
	out.Amount = row.Amount
	out.SupplementaryPeriod = row.SupplementaryPeriod
	out.SubscribedPower = row.SubscribedPower
	out.ReachedPower = row.ReachedPower
	if tension != "" {
		out.Tension = tension
	}
	return out
}
