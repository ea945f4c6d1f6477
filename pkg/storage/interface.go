package storage

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateCode is returned by Create when the backend's uniqueness
// constraint on the short code fires. The unique index is the second line of
// defense behind the generator's own existence check, so callers treat this
// as a lost race, not a bug.
var ErrDuplicateCode = errors.New("short code already exists")

// ShortURLStorage is the port every backend adapter implements. All
// implementations must behave identically:
//
//   - CodeExists reports whether any record, expired or not, holds the code.
//     Absence is a normal false, never an error.
//   - Create inserts a brand-new record and returns ErrDuplicateCode on a
//     storage-level uniqueness violation.
//   - GetByCode returns (nil, nil) when the code is unknown.
//   - RecordResolution is an atomic insert-or-increment: the first call for
//     a code creates its analytics row with a count of 1, later calls
//     increment it. Concurrent calls must all be counted.
//   - GetAnalytics returns a zero-valued record for codes with no analytics
//     row, never nil and never an error for absence.
type ShortURLStorage interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, shortURL *ShortURL) error
	GetByCode(ctx context.Context, code string) (*ShortURL, error)
	RecordResolution(ctx context.Context, code string, resolvedAt time.Time) error
	GetAnalytics(ctx context.Context, code string) (ShortURLAnalytics, error)
}
