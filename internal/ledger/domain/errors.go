package ledger

import "errors"

var (
	// ErrEmptyIdentifier rejects rows whose site identifier normalizes to "".
	ErrEmptyIdentifier = errors.New("ledger: empty identifier")

	// ErrInvalidTension rejects tension values other than BASSE or HAUTE.
	ErrInvalidTension = errors.New("ledger: invalid tension class")

	// ErrUnparseablePeriod reports a period value that is not six digits after
	// cleanup. NormalizePeriod still returns the best-effort padded string so
	// historical ledgers carrying such keys keep loading.
	ErrUnparseablePeriod = errors.New("ledger: unparseable period")
)
