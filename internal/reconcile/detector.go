// Package reconcile checks an invoice batch against the site ledger before
// any merge: which rows belong to registered sites, which do not, and whether
// the amounts add up.
package reconcile

import (
	"errors"
	"math"

	"cie-ledger/internal/invoices"
	ledger "cie-ledger/internal/ledger/domain"
)

// Amounts within this tolerance (inclusive) are considered equal. Invoice
// files carry rounded CFA amounts, so a gap of up to one franc is noise.
const amountTolerance = 1.0

// Report is the outcome of checking one batch against the ledger.
type Report struct {
	Period  string
	Tension string

	Matched       []invoices.BatchRow
	Unmatched     []invoices.BatchRow
	PendingManual []invoices.BatchRow

	BatchTotal     float64
	MatchedTotal   float64
	UnmatchedTotal float64
	PendingTotal   float64
	LedgerTotal    float64

	// Difference is |BatchTotal - (MatchedTotal+UnmatchedTotal+PendingTotal)|.
	// Anything beyond the tolerance means rows were lost or counted twice.
	Difference  float64
	CoherenceOK bool

	// LedgerGap compares MatchedTotal against what the ledger already holds
	// for the period and tension. A gap is expected before the merge and is
	// reported as a warning, never as an error.
	LedgerGap     float64
	LedgerWarning bool
}

// Detect partitions the batch rows against the ledger. A row is matched when
// its identifier exists in the ledger; a supplementary row additionally
// requires its canonical period among the identifier's recorded supplementary
// periods. Supplementary rows awaiting manual validation are set aside in
// PendingManual and excluded from the matched/unmatched split.
func Detect(batch *invoices.Batch, table ledger.Table) (Report, error) {
	if batch == nil {
		return Report{}, errors.New("reconcile: batch is required")
	}
	report := Report{Period: batch.Period, Tension: batch.Tension}
	known := table.Identifiers()

	for _, row := range batch.Rows {
		report.BatchTotal += row.Amount

		if batch.HasTypeColumn && row.Type() == ledger.TypeSupplementary {
			if !batch.HasSupplementaryColumn || row.SupplementaryPeriod == "" {
				report.PendingManual = append(report.PendingManual, row)
				report.PendingTotal += row.Amount
				continue
			}
			_, registered := known[row.Identifier]
			if registered {
				_, registered = table.SupplementaryPeriods(row.Identifier)[row.SupplementaryPeriod]
			}
			if registered {
				report.Matched = append(report.Matched, row)
				report.MatchedTotal += row.Amount
			} else {
				report.Unmatched = append(report.Unmatched, row)
				report.UnmatchedTotal += row.Amount
			}
			continue
		}

		if _, ok := known[row.Identifier]; ok {
			report.Matched = append(report.Matched, row)
			report.MatchedTotal += row.Amount
		} else {
			report.Unmatched = append(report.Unmatched, row)
			report.UnmatchedTotal += row.Amount
		}
	}

	report.Difference = math.Abs(report.BatchTotal -
		(report.MatchedTotal + report.UnmatchedTotal + report.PendingTotal))
	report.CoherenceOK = report.Difference <= amountTolerance

	report.LedgerTotal = table.TotalAmount(batch.Period, batch.Tension)
	report.LedgerGap = math.Abs(report.MatchedTotal - report.LedgerTotal)
	report.LedgerWarning = report.LedgerGap > amountTolerance

	return report, nil
}
