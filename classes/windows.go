package cls

import "time"

// a reminder lead time
type Tier string

const (
	TierOneDay     Tier = "oneDay"
	TierSevenDays  Tier = "sevenDays"
	TierThirtyDays Tier = "thirtyDays"
)

// a single-day window positioned at a tier boundary. Offsets are in
// days from "today". Windows are boundaries, not cumulative ranges - a
// license renewing in 15 days matches none of them, so each license
// gets one reminder per tier rather than one every day.
type TierWindow struct {
	Tier        Tier
	startOffset int
	endOffset   int
}

var TierWindows = []TierWindow{
	{Tier: TierOneDay, startOffset: 0, endOffset: 1},
	{Tier: TierSevenDays, startOffset: 6, endOffset: 7},
	{Tier: TierThirtyDays, startOffset: 29, endOffset: 30},
}

// the inclusive date range of the window, anchored on today
func (tw TierWindow) Range(today time.Time) (time.Time, time.Time) {
	return today.AddDate(0, 0, tw.startOffset), today.AddDate(0, 0, tw.endOffset)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// licenses whose renewal date falls between start and end, inclusive at
// both ends. Comparison is day granular - the time of day on the bounds
// and on the renewal dates is ignored.
func FindInRange(licenses []License, start time.Time, end time.Time) []License {
	lo := startOfDay(start)
	hi := endOfDay(end)

	matched := []License{}
	for _, lic := range licenses {
		if lic.RenewalDate.Before(lo) || lic.RenewalDate.After(hi) {
			continue
		}
		matched = append(matched, lic)
	}

	return matched
}

// filter out licenses with no usable recipient. Skipped silently - a
// license with no service owner email is not an error.
func WithRecipients(licenses []License) []License {
	notifiable := []License{}
	for _, lic := range licenses {
		if lic.ServiceOwnerEmail == "" {
			continue
		}
		notifiable = append(notifiable, lic)
	}

	return notifiable
}
