package billing

import "slices"

// Interval is the subscription cadence implied by a completed order.
// The set is closed; values outside it never cross into business logic.
type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalAnnual  Interval = "annual"
)

var AvailableIntervals = []Interval{IntervalMonthly, IntervalAnnual}

// NewInterval validates a raw interval value against the closed set.
func NewInterval(raw string) (Interval, error) {
	if slices.Contains(AvailableIntervals, Interval(raw)) {
		return Interval(raw), nil
	}
	return "", ErrInvalidInterval
}

// customInfo keys carrying the requested interval, in priority order.
const (
	intervalPrimaryKey  = "subscription_interval"
	intervalFallbackKey = "interval"
)

// ResolveInterval extracts the billing interval from gateway passthrough
// metadata. Returns ok=false when no key holds a member of the closed set;
// callers must treat that as "interval unknown", never as a default plan.
func ResolveInterval(customInfo map[string]any) (Interval, bool) {
	for _, key := range []string{intervalPrimaryKey, intervalFallbackKey} {
		raw, found := customInfo[key]
		if !found {
			continue
		}
		s, isString := raw.(string)
		if !isString {
			continue
		}
		if interval, err := NewInterval(s); err == nil {
			return interval, true
		}
	}
	return "", false
}
