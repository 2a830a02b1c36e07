package ledger

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeIdentifier converts a raw spreadsheet cell into the canonical site
// identifier: integral numbers lose the ".0" float artifact, everything else
// is trimmed and uppercased. Idempotent.
func NormalizeIdentifier(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return strings.ToUpper(s)
}

// NormalizePeriod converts a raw six-digit period (YYYYMM, possibly carrying
// a ".0" float suffix) into the canonical "MM/YYYY" form. Input that is not
// exactly six digits after cleanup yields a zero-padded best-effort string
// together with ErrUnparseablePeriod; callers surface the error instead of
// silently using the fallback as a grouping key.
func NormalizePeriod(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	s = strings.TrimSuffix(s, ".0")
	if len(s) != 6 || !isDigits(s) {
		padded := s
		for len(padded) < 6 {
			padded = "0" + padded
		}
		return padded, ErrUnparseablePeriod
	}
	year, month := s[:4], s[4:6]
	return month + "/" + year, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
