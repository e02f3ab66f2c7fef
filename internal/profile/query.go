package profile

import "fmt"

// Profile pagination bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Query selects timer rows for one (thread, metric) pair.
type Query struct {
	ThreadID int64
	MetricID int64
	Type     ValueType // ordering column; empty means exclusive
	Offset   int
	Limit    int // 0 means DefaultLimit
}

// Normalize fills defaults and validates bounds.
func (q Query) Normalize() (Query, error) {
	if q.Type == "" {
		q.Type = Exclusive
	}
	if q.Type != Inclusive && q.Type != Exclusive {
		return q, fmt.Errorf("invalid value type %q", q.Type)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 0 || q.Limit > MaxLimit {
		return q, fmt.Errorf("limit %d out of range 1..%d", q.Limit, MaxLimit)
	}
	if q.Offset < 0 {
		return q, fmt.Errorf("offset %d must not be negative", q.Offset)
	}
	return q, nil
}
