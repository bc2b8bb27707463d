package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForCutoff(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want Period
	}{
		{"first day", time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC), Period{2025, time.February}},
		{"cutoff day", time.Date(2025, time.March, 24, 23, 59, 0, 0, time.UTC), Period{2025, time.February}},
		{"after cutoff", time.Date(2025, time.March, 25, 0, 0, 0, 0, time.UTC), Period{2025, time.March}},
		{"january wraps", time.Date(2025, time.January, 3, 12, 0, 0, 0, time.UTC), Period{2024, time.December}},
		{"december late", time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC), Period{2024, time.December}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, For(tc.now, time.UTC))
		})
	}
}

func TestForUsesLocation(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2025-03-25 03:00 UTC is still March 24 in Los Angeles.
	now := time.Date(2025, time.March, 25, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, Period{2025, time.February}, For(now, la))
	assert.Equal(t, Period{2025, time.March}, For(now, time.UTC))
}

func TestCalculatorCustomCutoff(t *testing.T) {
	c := NewCalculator(nil, 10)
	assert.Equal(t, Period{2025, time.May}, c.For(time.Date(2025, time.May, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Period{2025, time.April}, c.For(time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC)))
}

func TestString(t *testing.T) {
	assert.Equal(t, "Март 2025", Period{2025, time.March}.String())
	assert.Equal(t, "Декабрь 2024", Period{2025, time.January}.Previous().String())
}
