package storehours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return ts
}

func defaultHours() domain.StoreHours {
	return domain.StoreHours{
		OpenAt:  domain.ClockTime{Hour: 9, Minute: 0},
		CloseAt: domain.ClockTime{Hour: 18, Minute: 0},
	}
}

func TestDefaultWindow(t *testing.T) {
	h := defaultHours()

	cases := []struct {
		name string
		now  string
		want bool
	}{
		{"mid morning", "2026-08-26 10:30", true},
		{"after close", "2026-08-26 19:00", false},
		{"before open", "2026-08-26 08:59", false},
		{"at open minute", "2026-08-26 09:00", true},
		{"close hour before close minute", "2026-08-26 17:59", true},
		{"at close minute", "2026-08-26 18:00", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsOpen(h, at(t, tc.now)))
		})
	}
}

func TestSameOpenAndCloseHour(t *testing.T) {
	h := domain.StoreHours{
		OpenAt:  domain.ClockTime{Hour: 12, Minute: 15},
		CloseAt: domain.ClockTime{Hour: 12, Minute: 45},
	}
	require.False(t, IsOpen(h, at(t, "2026-08-26 12:14")))
	require.True(t, IsOpen(h, at(t, "2026-08-26 12:15")))
	require.True(t, IsOpen(h, at(t, "2026-08-26 12:45"))) // inclusive upper bound
	require.False(t, IsOpen(h, at(t, "2026-08-26 12:46")))
}

func TestClosingDayBeatsDefaultWindow(t *testing.T) {
	h := defaultHours()
	h.ClosingDays = []time.Weekday{time.Monday}

	// 2026-08-24 is a Monday.
	require.False(t, IsOpen(h, at(t, "2026-08-24 10:30")))
	require.True(t, IsOpen(h, at(t, "2026-08-25 10:30")))
}

func TestWeekdayVariation(t *testing.T) {
	h := defaultHours()
	h.Variations = []domain.OpeningVariation{{
		Day:     time.Saturday,
		OpenAt:  domain.ClockTime{Hour: 11, Minute: 0},
		CloseAt: domain.ClockTime{Hour: 15, Minute: 0},
	}}

	// 2026-08-29 is a Saturday: the variation window applies.
	require.False(t, IsOpen(h, at(t, "2026-08-29 10:30")))
	require.True(t, IsOpen(h, at(t, "2026-08-29 12:00")))
	// Other days keep the default window.
	require.True(t, IsOpen(h, at(t, "2026-08-28 10:30")))
}

func TestExplicitDateOverridesWinOverEverything(t *testing.T) {
	h := defaultHours()
	h.ClosingDays = []time.Weekday{time.Monday}
	h.OpenedDate = "2026-08-24" // a Monday that would otherwise be closed
	require.True(t, IsOpen(h, at(t, "2026-08-24 10:30")))

	h.ClosedDate = "2026-08-26"
	require.False(t, IsOpen(h, at(t, "2026-08-26 10:30")))
}

func TestClosedDateBeatsOpenedDate(t *testing.T) {
	h := defaultHours()
	h.OpenedDate = "2026-08-26"
	h.ClosedDate = "2026-08-26"
	require.False(t, IsOpen(h, at(t, "2026-08-26 10:30")))
}

func TestEvaluatorIsTotal(t *testing.T) {
	// Degenerate configs must still produce an answer, never panic.
	for hour := 0; hour < 24; hour++ {
		for _, h := range []domain.StoreHours{
			{},
			{OpenAt: domain.ClockTime{Hour: 23, Minute: 59}, CloseAt: domain.ClockTime{Hour: 23, Minute: 59}},
			defaultHours(),
		} {
			now := at(t, "2026-08-26 00:00").Add(time.Duration(hour) * time.Hour)
			_ = IsOpen(h, now)
		}
	}
}
