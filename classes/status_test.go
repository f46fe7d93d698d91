package cls

import (
	"testing"
	"time"
)

var classifyNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestClassifyExpired(t *testing.T) {
	dates := []time.Time{
		classifyNow.Add(-1 * time.Nanosecond),
		classifyNow.Add(-2 * time.Hour),
		classifyNow.AddDate(0, 0, -1),
		classifyNow.AddDate(-2, 0, 0),
	}

	for _, d := range dates {
		if got := Classify(d, classifyNow); got != StatusExpired {
			t.Errorf("Classify(%s) = %s, want expired", d, got)
		}
	}
}

func TestClassifyPending(t *testing.T) {
	dates := []time.Time{
		classifyNow, // renewal at this exact instant is not yet expired
		classifyNow.Add(1 * time.Hour),
		classifyNow.AddDate(0, 0, 10),
		classifyNow.AddDate(0, 1, 0), // exactly one calendar month out
	}

	for _, d := range dates {
		if got := Classify(d, classifyNow); got != StatusPending {
			t.Errorf("Classify(%s) = %s, want pending", d, got)
		}
	}
}

func TestClassifyActive(t *testing.T) {
	dates := []time.Time{
		classifyNow.AddDate(0, 1, 0).Add(1 * time.Nanosecond),
		classifyNow.AddDate(0, 2, 0),
		classifyNow.AddDate(1, 0, 0),
	}

	for _, d := range dates {
		if got := Classify(d, classifyNow); got != StatusActive {
			t.Errorf("Classify(%s) = %s, want active", d, got)
		}
	}
}

// the pending boundary must use calendar month arithmetic, not a flat
// 30 days - in March the two disagree by a day
func TestClassifyCalendarMonthBoundary(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	thirtyDaysOut := now.AddDate(0, 0, 30) // Mar 31, within Apr 1 month boundary
	if got := Classify(thirtyDaysOut, now); got != StatusPending {
		t.Errorf("Classify(now+30d) = %s, want pending", got)
	}

	monthAndADayOut := now.AddDate(0, 1, 1) // Apr 2
	if got := Classify(monthAndADayOut, now); got != StatusActive {
		t.Errorf("Classify(now+1month+1d) = %s, want active", got)
	}
}

func TestRenewsWithinDays(t *testing.T) {
	cases := []struct {
		renewal time.Time
		days    int
		want    bool
	}{
		{classifyNow.AddDate(0, 0, 10), 30, true},
		{classifyNow.AddDate(0, 0, 30), 30, true},
		{classifyNow.AddDate(0, 0, 31), 30, false},
		{classifyNow.AddDate(0, 0, -1), 30, false}, // already expired
	}

	for _, c := range cases {
		got := RenewsWithinDays(c.renewal, classifyNow, c.days)
		if got != c.want {
			t.Errorf("RenewsWithinDays(%s, %d) = %t, want %t", c.renewal, c.days, got, c.want)
		}
	}
}
