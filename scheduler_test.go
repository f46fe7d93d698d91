package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	cls "github.com/renewhub/app/classes"
)

var schedNow = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

var testNotifSettings = cls.NotificationSettings{
	Enabled: true,
	Templates: map[cls.Tier]string{
		cls.TierOneDay:     "{LICENSE_NAME} renews tomorrow ({EXPIRY_DATE})",
		cls.TierSevenDays:  "{LICENSE_NAME} renews in a week",
		cls.TierThirtyDays: "{LICENSE_NAME} renews in a month, card {CARD_LAST_4}",
	},
}

var testEmailSettings = cls.EmailSettings{
	ServiceID:   "service_test",
	TemplateID:  "template_test",
	PublicKey:   "pk_test",
	SenderEmail: "renewals@corp.com",
}

type fakeWatermarks struct {
	mu     sync.Mutex
	value  string
	getErr error
	sets   int
}

func (f *fakeWatermarks) Get(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.getErr
}

func (f *fakeWatermarks) Set(ctx context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = date
	f.sets++
	return nil
}

type dispatchCall struct {
	LicenseID string
	Message   string
	Tier      cls.Tier
}

type dispatchRecorder struct {
	mu      sync.Mutex
	calls   []dispatchCall
	failFor map[string]error // licenseID -> err to return
	block   chan struct{}    // if set, Send blocks until closed
}

func (d *dispatchRecorder) Send(lic cls.License, message string, tier cls.Tier) error {
	if d.block != nil {
		<-d.block
	}

	d.mu.Lock()
	d.calls = append(d.calls, dispatchCall{LicenseID: lic.ID, Message: message, Tier: tier})
	d.mu.Unlock()

	if err, ok := d.failFor[lic.ID]; ok {
		return err
	}
	return nil
}

func (d *dispatchRecorder) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func newTestScheduler(licenses []cls.License, rec *dispatchRecorder, wm *fakeWatermarks) *Scheduler {
	src := func(ctx context.Context) ([]cls.License, error) {
		return licenses, nil
	}
	s := newScheduler(src, rec.Send, wm)
	s.now = func() time.Time { return schedNow }
	return s
}

func schedLicense(id string, renewal time.Time, email string) cls.License {
	return cls.License{
		ID:                id,
		Name:              "License " + id,
		Type:              "SaaS",
		RenewalDate:       renewal,
		ServiceOwnerEmail: email,
		CardDigits:        "4242",
	}
}

func TestManualCheckMatchesOnlyBoundaryTiers(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
		schedLicense("mid-range", schedNow.AddDate(0, 0, 15), "b@x.com"),
	}
	rec := &dispatchRecorder{}
	s := newTestScheduler(licenses, rec, &fakeWatermarks{})

	report, err := s.TriggerManualCheck(context.Background(), testNotifSettings, testEmailSettings)
	if err != nil {
		t.Fatalf("manual check failed, %v", err)
	}

	if rec.callCount() != 1 {
		t.Fatalf("got %d dispatch calls, want 1: %v", rec.callCount(), rec.calls)
	}
	call := rec.calls[0]
	if call.LicenseID != "tomorrow" || call.Tier != cls.TierOneDay {
		t.Errorf("dispatched %s for tier %s, want tomorrow/oneDay", call.LicenseID, call.Tier)
	}
	if report.Sent[cls.TierOneDay] != 1 || report.TotalSent() != 1 {
		t.Errorf("report sent counts wrong: %+v", report)
	}
}

func TestManualCheckRendersTemplate(t *testing.T) {
	licenses := []cls.License{
		schedLicense("figma", schedNow.AddDate(0, 0, 30), "a@x.com"),
	}
	rec := &dispatchRecorder{}
	s := newTestScheduler(licenses, rec, &fakeWatermarks{})

	_, err := s.TriggerManualCheck(context.Background(), testNotifSettings, testEmailSettings)
	if err != nil {
		t.Fatalf("manual check failed, %v", err)
	}

	if rec.callCount() != 1 {
		t.Fatalf("got %d dispatch calls, want 1", rec.callCount())
	}
	msg := rec.calls[0].Message
	if !strings.Contains(msg, "License figma") || !strings.Contains(msg, "4242") {
		t.Errorf("template not rendered into message: %q", msg)
	}
}

func TestCheckCycleDisabled(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
	}
	rec := &dispatchRecorder{}
	s := newTestScheduler(licenses, rec, &fakeWatermarks{})

	disabled := testNotifSettings
	disabled.Enabled = false

	_, err := s.TriggerManualCheck(context.Background(), disabled, testEmailSettings)
	if err != nil {
		t.Fatalf("manual check failed, %v", err)
	}
	if rec.callCount() != 0 {
		t.Fatalf("got %d dispatch calls with notifications disabled, want 0", rec.callCount())
	}
}

func TestCheckCycleIncompleteEmailSettings(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
	}

	missing := []cls.EmailSettings{
		{TemplateID: "t", PublicKey: "p", SenderEmail: "s@x.com"}, // no service id
		{ServiceID: "s", PublicKey: "p", SenderEmail: "s@x.com"}, // no template id
		{ServiceID: "s", TemplateID: "t", SenderEmail: "s@x.com"}, // no public key
		{ServiceID: "s", TemplateID: "t", PublicKey: "p"},         // no sender
	}

	for i, es := range missing {
		rec := &dispatchRecorder{}
		s := newTestScheduler(licenses, rec, &fakeWatermarks{})

		_, err := s.TriggerManualCheck(context.Background(), testNotifSettings, es)
		if err != nil {
			t.Fatalf("case %d: manual check failed, %v", i, err)
		}
		if rec.callCount() != 0 {
			t.Errorf("case %d: got %d dispatch calls with incomplete email settings, want 0", i, rec.callCount())
		}
	}
}

func TestCheckCycleSkipsEmptyRecipients(t *testing.T) {
	licenses := []cls.License{
		schedLicense("no-owner", schedNow.AddDate(0, 0, 1), ""),
	}
	rec := &dispatchRecorder{}
	s := newTestScheduler(licenses, rec, &fakeWatermarks{})

	report, err := s.TriggerManualCheck(context.Background(), testNotifSettings, testEmailSettings)
	if err != nil {
		t.Fatalf("manual check failed, %v", err)
	}
	if rec.callCount() != 0 {
		t.Fatalf("got %d dispatch calls for a license with no owner email, want 0", rec.callCount())
	}
	if report.Matched[cls.TierOneDay] != 0 {
		t.Errorf("recipientless license counted as matched: %+v", report)
	}
}

func TestCheckCycleFailureIsolation(t *testing.T) {
	licenses := []cls.License{
		schedLicense("will-fail", schedNow.AddDate(0, 0, 1), "a@x.com"),
		schedLicense("will-send", schedNow.AddDate(0, 0, 1), "b@x.com"),
	}
	rec := &dispatchRecorder{
		failFor: map[string]error{"will-fail": fmt.Errorf("provider rejected")},
	}
	s := newTestScheduler(licenses, rec, &fakeWatermarks{})

	report, err := s.TriggerManualCheck(context.Background(), testNotifSettings, testEmailSettings)
	if err != nil {
		t.Fatalf("manual check failed, %v", err)
	}

	if rec.callCount() != 2 {
		t.Fatalf("got %d dispatch calls, want 2", rec.callCount())
	}
	if report.Sent[cls.TierOneDay] != 1 || report.Failed[cls.TierOneDay] != 1 {
		t.Errorf("got sent=%d failed=%d, want 1 and 1", report.Sent[cls.TierOneDay], report.Failed[cls.TierOneDay])
	}
}

func TestScheduledCycleRunsAtMostOncePerDay(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
	}
	rec := &dispatchRecorder{}
	wm := &fakeWatermarks{}
	s := newTestScheduler(licenses, rec, wm)
	s.mu.Lock()
	s.notifSettings, s.emailSettings = testNotifSettings, testEmailSettings
	s.mu.Unlock()

	s.runScheduledCycle(context.Background())
	s.runScheduledCycle(context.Background())

	if rec.callCount() != 1 {
		t.Fatalf("got %d dispatch calls across repeated same-day runs, want 1", rec.callCount())
	}
	if wm.value != schedNow.Format(watermarkLayout) {
		t.Errorf("watermark = %q, want today", wm.value)
	}
}

func TestRestartSameDayDoesNotDuplicateSends(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
	}
	rec := &dispatchRecorder{}
	// watermark already says today's run happened
	wm := &fakeWatermarks{value: schedNow.Format(watermarkLayout)}
	s := newTestScheduler(licenses, rec, wm)

	s.Start(testNotifSettings, testEmailSettings)
	s.Start(testNotifSettings, testEmailSettings) // re-entrant start
	defer s.Stop()

	time.Sleep(200 * time.Millisecond)

	if rec.callCount() != 0 {
		t.Fatalf("got %d dispatch calls after same-day restarts, want 0", rec.callCount())
	}
}

func TestManualCheckLeavesWatermarkAlone(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
	}
	rec := &dispatchRecorder{}
	wm := &fakeWatermarks{}
	s := newTestScheduler(licenses, rec, wm)

	// two manual checks on the same day are allowed
	for i := 0; i < 2; i++ {
		if _, err := s.TriggerManualCheck(context.Background(), testNotifSettings, testEmailSettings); err != nil {
			t.Fatalf("manual check %d failed, %v", i, err)
		}
	}
	if wm.sets != 0 {
		t.Fatalf("manual checks advanced the watermark %d times, want 0", wm.sets)
	}
	if rec.callCount() != 2 {
		t.Fatalf("got %d dispatch calls, want 2", rec.callCount())
	}

	// the scheduled run for today must still go ahead
	s.mu.Lock()
	s.notifSettings, s.emailSettings = testNotifSettings, testEmailSettings
	s.mu.Unlock()
	s.runScheduledCycle(context.Background())

	if rec.callCount() != 3 {
		t.Fatalf("scheduled run was suppressed by manual checks, got %d calls, want 3", rec.callCount())
	}
	if wm.sets != 1 {
		t.Errorf("watermark sets = %d, want 1", wm.sets)
	}
}

func TestOnlyOneCycleInFlight(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
	}
	block := make(chan struct{})
	rec := &dispatchRecorder{block: block}
	s := newTestScheduler(licenses, rec, &fakeWatermarks{})

	firstDone := make(chan struct{})
	go func() {
		s.TriggerManualCheck(context.Background(), testNotifSettings, testEmailSettings)
		close(firstDone)
	}()

	// wait for the first cycle to take the busy flag
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		busy := s.cycleBusy
		s.mu.Unlock()
		if busy {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := s.TriggerManualCheck(context.Background(), testNotifSettings, testEmailSettings)
	if !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("overlapping cycle got err %v, want ErrCycleInFlight", err)
	}

	close(block)
	<-firstDone

	if rec.callCount() != 1 {
		t.Fatalf("got %d dispatch calls, want 1", rec.callCount())
	}
}

func TestWatermarkReadFailureSkipsTick(t *testing.T) {
	licenses := []cls.License{
		schedLicense("tomorrow", schedNow.AddDate(0, 0, 1), "a@x.com"),
	}
	rec := &dispatchRecorder{}
	wm := &fakeWatermarks{getErr: fmt.Errorf("db down")}
	s := newTestScheduler(licenses, rec, wm)
	s.mu.Lock()
	s.notifSettings, s.emailSettings = testNotifSettings, testEmailSettings
	s.mu.Unlock()

	s.runScheduledCycle(context.Background())

	if rec.callCount() != 0 {
		t.Fatalf("got %d dispatch calls with an unreadable watermark, want 0", rec.callCount())
	}
	if wm.sets != 0 {
		t.Errorf("watermark was written despite read failure")
	}
}
