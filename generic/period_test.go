package generic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthPeriod(t *testing.T) {
	p := MonthPeriod(2024, time.February)
	assert.Equal(t, NewDate(2024, time.February, 1), p.Start)
	assert.Equal(t, NewDate(2024, time.February, 29), p.End)
	assert.Len(t, p.Days(), 29)
	assert.Equal(t, "[2024-02-01, 2024-02-29]", p.String())

	assert.True(t, p.Contains(NewDate(2024, time.February, 29)))
	assert.False(t, p.Contains(NewDate(2024, time.March, 1)))
	assert.False(t, p.Contains(NewDate(2024, time.January, 31)))
}

func TestPeriodFor(t *testing.T) {
	hire := NewDate(2020, time.January, 6)

	tests := []struct {
		name string
		cfg  PeriodConfig
		date Date
		want Period
	}{
		{
			name: "calendar month",
			cfg:  PeriodConfig{Type: PeriodCalendarMonth},
			date: NewDate(2025, time.March, 12),
			want: MonthPeriod(2025, time.March),
		},
		{
			name: "calendar year",
			cfg:  PeriodConfig{Type: PeriodCalendarYear},
			date: NewDate(2025, time.March, 12),
			want: YearPeriod(2025),
		},
		{
			name: "anniversary after this year's anniversary",
			cfg:  PeriodConfig{Type: PeriodAnniversary, AnchorDate: &hire},
			date: NewDate(2025, time.March, 12),
			want: Period{Start: NewDate(2025, time.January, 6), End: NewDate(2026, time.January, 5)},
		},
		{
			name: "anniversary before this year's anniversary",
			cfg:  PeriodConfig{Type: PeriodAnniversary, AnchorDate: &hire},
			date: NewDate(2025, time.January, 5),
			want: Period{Start: NewDate(2024, time.January, 6), End: NewDate(2025, time.January, 5)},
		},
		{
			name: "anniversary on the anniversary",
			cfg:  PeriodConfig{Type: PeriodAnniversary, AnchorDate: &hire},
			date: NewDate(2025, time.January, 6),
			want: Period{Start: NewDate(2025, time.January, 6), End: NewDate(2026, time.January, 5)},
		},
		{
			name: "anniversary without anchor falls back to calendar year",
			cfg:  PeriodConfig{Type: PeriodAnniversary},
			date: NewDate(2025, time.March, 12),
			want: YearPeriod(2025),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.PeriodFor(tt.date))
		})
	}
}
