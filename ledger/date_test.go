package ledger_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunogmenezes/financeiro/ledger"
)

func TestDate_ParseAndFormat(t *testing.T) {
	d, err := ledger.ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", d.String())
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.January, d.Month())
	assert.Equal(t, 15, d.Day())
	assert.Equal(t, "2024-01", d.YearMonth())
}

func TestDate_ParseRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "15/01/2024", "2024-13-01", "2024-01-15T10:00:00Z"} {
		_, err := ledger.ParseDate(s)
		assert.ErrorIs(t, err, ledger.ErrValidation, "input %q", s)
	}
}

func TestDate_AddMonths(t *testing.T) {
	tests := []struct {
		base   string
		months int
		want   string
	}{
		{"2024-01-15", 1, "2024-02-15"},
		{"2024-01-15", 2, "2024-03-15"},
		{"2024-11-15", 2, "2025-01-15"}, // year boundary

		// Short-month normalization: the day overflows into the next
		// month rather than clamping.
		{"2024-01-31", 1, "2024-03-02"}, // leap year
		{"2025-01-31", 1, "2025-03-03"},
		{"2024-03-31", 1, "2024-05-01"},
	}

	for _, tt := range tests {
		base, err := ledger.ParseDate(tt.base)
		require.NoError(t, err)
		got := base.AddMonths(tt.months)
		assert.Equal(t, tt.want, got.String(), "%s + %d months", tt.base, tt.months)
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := ledger.NewDate(2024, time.June, 5)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-05"`, string(b))

	var back ledger.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, d.Equal(back))
}

func TestDate_Comparison(t *testing.T) {
	a := ledger.NewDate(2024, time.June, 5)
	b := ledger.NewDate(2024, time.June, 6)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a.AddDays(0)))
	assert.True(t, b.Equal(a.AddDays(1)))
}
