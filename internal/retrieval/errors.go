package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery indicates a malformed query, rejected before any
	// strategy runs.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrSearchUnavailable indicates every strategy failed. Partial failure
	// is absorbed; only total retrieval failure surfaces to the caller.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrNoBackends indicates the engine was constructed without any
	// strategy backend.
	ErrNoBackends = errors.New("no strategy backends configured")

	// ErrInvalidWeights indicates a weight vector with negative entries or
	// a sum too far from 1.0.
	ErrInvalidWeights = errors.New("invalid weight vector")
)

func errInvalid(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, detail)
}
