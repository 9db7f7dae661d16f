package recurrence

import (
	"errors"
	"fmt"
	"slices"

	"teukbyeolsil/internal/conflict"
	"teukbyeolsil/internal/kst"
)

// DefaultWeeks are the repeat counts offered for weekly series.
var DefaultWeeks = []int{2, 4, 6, 8, 12}

// ErrInvalidWeeks indicates a repeat count outside the allowed set.
var ErrInvalidWeeks = errors.New("recurrence: unsupported number of weeks")

// ErrInvalidInterval indicates the first occurrence does not end after it starts.
var ErrInvalidInterval = errors.New("recurrence: first occurrence must end after it starts")

// Expander turns a first occurrence into a weekly series.
type Expander struct {
	allowed []int
}

// NewExpander builds an Expander accepting the given week counts. An empty
// list falls back to DefaultWeeks.
func NewExpander(allowed []int) *Expander {
	if len(allowed) == 0 {
		allowed = DefaultWeeks
	}
	return &Expander{allowed: slices.Clone(allowed)}
}

// Allowed returns the accepted week counts.
func (e *Expander) Allowed() []int { return slices.Clone(e.allowed) }

// Expand returns the series for first. Without recurrence, or with a single
// week, the result is exactly [first]. Otherwise occurrence k is first
// shifted by k*7 civil days, for k in [0, weeks).
func (e *Expander) Expand(first conflict.Interval, weeks int, recurring bool) ([]conflict.Interval, error) {
	if !first.End.After(first.Start) {
		return nil, ErrInvalidInterval
	}
	if !recurring || weeks == 1 {
		return []conflict.Interval{first}, nil
	}
	if !slices.Contains(e.allowed, weeks) {
		return nil, fmt.Errorf("%w: %d (allowed %v)", ErrInvalidWeeks, weeks, e.allowed)
	}

	start, end := kst.In(first.Start), kst.In(first.End)
	out := make([]conflict.Interval, 0, weeks)
	for k := 0; k < weeks; k++ {
		out = append(out, conflict.Interval{
			Start: start.AddDate(0, 0, 7*k),
			End:   end.AddDate(0, 0, 7*k),
		})
	}
	return out, nil
}
