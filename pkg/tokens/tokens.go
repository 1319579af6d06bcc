// Package tokens measures text against the compiled artifact's token
// budget. An external tokenizer is preferred when configured; when it is
// absent or failing, a character heuristic keeps the pipeline moving rather
// than blocking on a measurement.
package tokens

import "context"

// CountFunc is an external tokenizer call. Only the token count is used;
// the tokenizer's vocabulary does not matter for budget checks.
type CountFunc func(ctx context.Context, text string) (int, error)

// Estimator counts tokens, falling back to a deterministic heuristic when
// the external tokenizer fails or none is configured.
type Estimator struct {
	count CountFunc
}

// NewEstimator creates an Estimator. count may be nil, in which case the
// heuristic is always used.
func NewEstimator(count CountFunc) *Estimator {
	return &Estimator{count: count}
}

// Count returns a non-negative token count for text: 0 for empty text,
// otherwise the external tokenizer's answer or the heuristic. It never
// returns an error.
func (e *Estimator) Count(ctx context.Context, text string) int {
	if text == "" {
		return 0
	}

	if e.count != nil {
		if n, err := e.count(ctx, text); err == nil && n >= 0 {
			return n
		}
	}

	return Estimate(text)
}

// Estimate is the ~4 chars/token heuristic, rounded up. Good enough for
// threshold comparison, not billing-accurate.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}

	return (len(text) + 3) / 4
}
