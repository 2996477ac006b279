package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveInterval(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		customInfo map[string]any
		expected   Interval
		ok         bool
	}{
		{
			name:       "subscription_interval monthly",
			customInfo: map[string]any{"subscription_interval": "monthly"},
			expected:   IntervalMonthly,
			ok:         true,
		},
		{
			name:       "fallback interval key annual",
			customInfo: map[string]any{"interval": "annual"},
			expected:   IntervalAnnual,
			ok:         true,
		},
		{
			name:       "primary key wins over fallback",
			customInfo: map[string]any{"subscription_interval": "annual", "interval": "monthly"},
			expected:   IntervalAnnual,
			ok:         true,
		},
		{
			name:       "invalid primary falls through to valid fallback",
			customInfo: map[string]any{"subscription_interval": "weekly", "interval": "monthly"},
			expected:   IntervalMonthly,
			ok:         true,
		},
		{
			name:       "value outside the closed set is absent",
			customInfo: map[string]any{"subscription_interval": "weekly"},
			ok:         false,
		},
		{
			name:       "non-string value is absent",
			customInfo: map[string]any{"subscription_interval": 12},
			ok:         false,
		},
		{
			name:       "no interval keys",
			customInfo: map[string]any{"plan_name": "pro"},
			ok:         false,
		},
		{
			name: "nil custom info",
			ok:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			interval, ok := ResolveInterval(tc.customInfo)

			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, interval)
		})
	}
}

func TestNewInterval(t *testing.T) {
	t.Parallel()

	i, err := NewInterval("monthly")
	assert.NoError(t, err)
	assert.Equal(t, IntervalMonthly, i)

	_, err = NewInterval("weekly")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
