package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	cls "github.com/renewhub/app/classes"
	"github.com/renewhub/app/common"
)

// date-only layout for the persisted watermark
const watermarkLayout = "2006-01-02"

// returned by TriggerManualCheck when a cycle is already in flight
var ErrCycleInFlight = errors.New("a check cycle is already running")

// supplies the current full license set. No pagination - a register is
// a few hundred rows at most.
type LicenseSource func(ctx context.Context) ([]cls.License, error)

// sends one rendered reminder. Implementations own their own timeout
// and retry policy, the scheduler imposes none.
type DispatchFunc func(lic cls.License, message string, tier cls.Tier) error

// durable storage for the last date the scheduled check ran, so a
// process restart cannot cause duplicate same-day sends
type WatermarkStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, date string) error
}

// outcome counts for one check cycle, per tier
type CycleReport struct {
	Matched map[cls.Tier]int `json:"matched"`
	Sent    map[cls.Tier]int `json:"sent"`
	Failed  map[cls.Tier]int `json:"failed"`
}

func newCycleReport() CycleReport {
	return CycleReport{
		Matched: map[cls.Tier]int{},
		Sent:    map[cls.Tier]int{},
		Failed:  map[cls.Tier]int{},
	}
}

func (r CycleReport) TotalSent() int {
	total := 0
	for _, n := range r.Sent {
		total += n
	}
	return total
}

func (r CycleReport) TotalFailed() int {
	total := 0
	for _, n := range r.Failed {
		total += n
	}
	return total
}

// Runs the recurring renewal-reminder check. Construct exactly one per
// process with newScheduler; the dependencies are injected so tests can
// run it against fakes.
//
// The scheduler is a two state machine: stopped or running. Start is
// re-entrant (tears down the previous timer and reinstalls, keeping the
// persisted watermark), Stop cancels the timer only. Dispatch failures
// never stop the timer - there is no error state.
type Scheduler struct {
	licenses   LicenseSource
	dispatch   DispatchFunc
	watermarks WatermarkStore

	now          func() time.Time
	tickInterval time.Duration

	mu            sync.Mutex
	running       bool
	done          chan struct{}
	cycleBusy     bool
	notifSettings cls.NotificationSettings
	emailSettings cls.EmailSettings
}

func newScheduler(licenses LicenseSource, dispatch DispatchFunc, watermarks WatermarkStore) *Scheduler {
	return &Scheduler{
		licenses:     licenses,
		dispatch:     dispatch,
		watermarks:   watermarks,
		now:          time.Now,
		tickInterval: 1 * time.Hour,
	}
}

// Start the recurring check with a snapshot of the given settings. If
// the persisted watermark is not today, one catch-up cycle runs
// immediately. Settings changes require calling Start again - the
// scheduler deliberately does not watch for live updates.
func (s *Scheduler) Start(notifSettings cls.NotificationSettings, emailSettings cls.EmailSettings) {
	s.mu.Lock()
	if s.running {
		// re-entrant start: kill the old timer before installing a new
		// one, so there is never more than one
		close(s.done)
	}
	s.notifSettings = notifSettings
	s.emailSettings = emailSettings
	s.running = true
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	log.Printf("scheduler : started (tick interval %s)", s.tickInterval)
	go s.loop(done)
}

// Stop cancels the timer. The watermark persists, and any dispatches
// already in flight are left to settle on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.done)
	s.running = false

	log.Printf("scheduler : stopped")
}

func (s *Scheduler) loop(done chan struct{}) {
	// catch-up run for today before the first tick
	s.runScheduledCycle(context.Background())

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runScheduledCycle(context.Background())
		case <-done:
			return
		}
	}
}

// one watermark-guarded pass: skip if today's run already happened,
// otherwise run a check cycle and advance the watermark
func (s *Scheduler) runScheduledCycle(ctx context.Context) {
	today := s.now().Format(watermarkLayout)

	lastRun, err := s.watermarks.Get(ctx)
	if err != nil {
		// without the watermark we can't guarantee at-most-once-per-day,
		// so skip this tick rather than risk duplicate sends
		log.Printf("scheduler : failed to read watermark, skipping tick, %v", err)
		return
	}
	if lastRun == today {
		return
	}

	s.mu.Lock()
	notifSettings, emailSettings := s.notifSettings, s.emailSettings
	s.mu.Unlock()

	_, err = s.runCheckCycle(ctx, notifSettings, emailSettings)
	if errors.Is(err, ErrCycleInFlight) {
		// another cycle owns this tick; leave the watermark so the next
		// tick retries
		log.Printf("scheduler : previous cycle still in flight, skipping tick")
		return
	}

	if err := s.watermarks.Set(ctx, today); err != nil {
		log.Printf("scheduler : failed to advance watermark to %s, %v", today, err)
		common.LogAndSendAlertF("scheduler failed to advance watermark, %v", err)
	}
}

// Run one check cycle right now, ignoring the watermark and leaving it
// untouched so the next automatic run still happens. Returns once every
// dispatch attempt has settled.
func (s *Scheduler) TriggerManualCheck(
	ctx context.Context,
	notifSettings cls.NotificationSettings,
	emailSettings cls.EmailSettings,
) (CycleReport, error) {
	log.Printf("scheduler : manual check triggered")
	return s.runCheckCycle(ctx, notifSettings, emailSettings)
}

// The check cycle. Gates on the master switch and provider config, then
// matches each tier's window and dispatches reminders concurrently,
// waiting for all of them to settle. A failed send is counted, alerted
// on, and contained - it cannot cancel its siblings or the cycle. Only
// one cycle runs at a time; overlapping callers get ErrCycleInFlight.
func (s *Scheduler) runCheckCycle(
	ctx context.Context,
	notifSettings cls.NotificationSettings,
	emailSettings cls.EmailSettings,
) (CycleReport, error) {
	report := newCycleReport()

	s.mu.Lock()
	if s.cycleBusy {
		s.mu.Unlock()
		return report, ErrCycleInFlight
	}
	s.cycleBusy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cycleBusy = false
		s.mu.Unlock()
	}()

	if !notifSettings.Enabled {
		log.Printf("scheduler : notifications disabled, nothing to do")
		return report, nil
	}
	if !emailSettings.Configured() {
		// normal "not yet configured" state, not an error
		log.Printf("scheduler : email settings incomplete, skipping check cycle")
		return report, nil
	}

	licenses, err := s.licenses(ctx)
	if err != nil {
		log.Printf("scheduler : failed to load licenses, %v", err)
		common.LogAndSendAlertF("scheduler failed to load licenses, %v", err)
		return report, nil
	}

	today := s.now()

	var wg sync.WaitGroup
	var reportMtx sync.Mutex

	for _, tw := range cls.TierWindows {
		start, end := tw.Range(today)
		matched := cls.WithRecipients(cls.FindInRange(licenses, start, end))
		report.Matched[tw.Tier] = len(matched)

		for _, lic := range matched {
			wg.Add(1)
			go func(lic cls.License, tier cls.Tier) {
				defer wg.Done()

				message := cls.RenderTemplate(notifSettings.Templates[tier], lic)

				err := s.dispatch(lic, message, tier)

				reportMtx.Lock()
				if err != nil {
					report.Failed[tier]++
				} else {
					report.Sent[tier]++
				}
				reportMtx.Unlock()

				if err != nil {
					log.Printf("%s : failed to send %s reminder, %v", lic.ID, tier, err)
					go common.SendDispatchFailureAlert(lic, tier, err)
				} else {
					log.Printf("%s : sent %s reminder to %s", lic.ID, tier, lic.ServiceOwnerEmail)
				}
			}(lic, tw.Tier)
		}
	}

	wg.Wait()

	for _, tw := range cls.TierWindows {
		log.Printf(
			"scheduler : %s tier: %d matched, %d sent, %d failed",
			tw.Tier, report.Matched[tw.Tier], report.Sent[tw.Tier], report.Failed[tw.Tier],
		)
	}

	return report, nil
}
