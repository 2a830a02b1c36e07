package ledger

import "sort"

// Table is the central ledger held in memory for the session. There is one
// writer per session; persistence rewrites the table wholesale.
type Table []Row

// FindIndex returns the index of the row matching the identifier, period and
// subtype discriminant, or -1.
func (t Table) FindIndex(identifier, period, discriminant string) int {
	for i, row := range t {
		if row.Identifier == identifier && row.Period == period && row.Discriminant() == discriminant {
			return i
		}
	}
	return -1
}

// FirstByIdentifier returns the first row carrying the identifier, any
// period. Used to source descriptive fields for a synthesized row.
func (t Table) FirstByIdentifier(identifier string) (Row, bool) {
	for _, row := range t {
		if row.Identifier == identifier {
			return row, true
		}
	}
	return Row{}, false
}

// Identifiers returns the set of known site identifiers.
func (t Table) Identifiers() map[string]struct{} {
	set := make(map[string]struct{}, len(t))
	for _, row := range t {
		set[row.Identifier] = struct{}{}
	}
	return set
}

// SupplementaryPeriods returns the supplementary periods recorded for a site.
func (t Table) SupplementaryPeriods(identifier string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, row := range t {
		if row.Identifier == identifier && row.SupplementaryPeriod != "" {
			set[row.SupplementaryPeriod] = struct{}{}
		}
	}
	return set
}

// TotalAmount sums amounts over rows matching the period and, when tension is
// non-empty, the tension class.
func (t Table) TotalAmount(period, tension string) float64 {
	var total float64
	for _, row := range t {
		if row.Period != period {
			continue
		}
		if tension != "" && row.Tension != tension {
			continue
		}
		total += row.Amount
	}
	return total
}

// Periods returns the distinct periods present in the table, newest first by
// string order of "MM/YYYY" reversed to year-month.
func (t Table) Periods() []string {
	set := map[string]struct{}{}
	for _, row := range t {
		if row.Period != "" {
			set[row.Period] = struct{}{}
		}
	}
	periods := make([]string, 0, len(set))
	for p := range set {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		return periodSortKey(periods[i]) > periodSortKey(periods[j])
	})
	return periods
}

func periodSortKey(p string) string {
	// "MM/YYYY" -> "YYYYMM"; malformed keys sort as-is.
	if len(p) == 7 && p[2] == '/' {
		return p[3:] + p[:2]
	}
	return p
}

// Dedupe removes true duplicates on (identifier, period, discriminant),
// keeping the last-written row, and reports how many rows were collapsed.
// Distinct discriminants are never merged.
func (t Table) Dedupe() (Table, int) {
	last := make(map[string]int, len(t))
	for i, row := range t {
		last[row.Key()] = i
	}
	out := make(Table, 0, len(last))
	for i, row := range t {
		if last[row.Key()] == i {
			out = append(out, row)
		}
	}
	return out, len(t) - len(out)
}
