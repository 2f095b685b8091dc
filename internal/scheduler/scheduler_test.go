package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"wa_farm_advisor_bot/internal/directory"
	"wa_farm_advisor_bot/internal/weather"
)

type fakeLookup struct {
	snapshots map[string]weather.Snapshot
	errs      map[string]error
	calls     []string
}

func (f *fakeLookup) Current(_ context.Context, city string) (weather.Snapshot, error) {
	f.calls = append(f.calls, city)
	if err := f.errs[city]; err != nil {
		return weather.Snapshot{}, err
	}
	return f.snapshots[city], nil
}

type fakeAdvisor struct {
	advice       string
	adviseErr    error
	translated   string
	translateErr error
}

func (f *fakeAdvisor) Advise(_ context.Context, _ weather.Snapshot, _ directory.Language) (string, error) {
	if f.adviseErr != nil {
		return "", f.adviseErr
	}
	return f.advice, nil
}

func (f *fakeAdvisor) Translate(_ context.Context, text string, _ directory.Language) (string, error) {
	if f.translateErr != nil {
		return "", f.translateErr
	}
	if f.translated == "" {
		return text, nil
	}
	return f.translated, nil
}

type fakeNotifier struct {
	sent    map[string]string
	sendErr map[string]error
	order   []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: map[string]string{}, sendErr: map[string]error{}}
}

func (f *fakeNotifier) Send(_ context.Context, to, body string) error {
	if err := f.sendErr[to]; err != nil {
		return err
	}
	f.sent[to] = body
	f.order = append(f.order, to)
	return nil
}

func alertSnapshot(city string) weather.Snapshot {
	return weather.Snapshot{
		City:      city,
		TempC:     41,
		Condition: "Clear",
		WindSpeed: 2,
		Alerts:    weather.DeriveAlerts(41, 2, "Clear"),
	}
}

func calmSnapshot(city string) weather.Snapshot {
	return weather.Snapshot{City: city, TempC: 24, Condition: "Clear", WindSpeed: 2}
}

func newScheduler(t *testing.T, dir directory.Directory, lookup *fakeLookup, advisor Advisor, notifier Notifier) *Scheduler {
	t.Helper()

	hookLogger, _ := logtest.NewNullLogger()
	s := New(dir, lookup, advisor, notifier, 3*time.Hour, 24*time.Hour, logrus.NewEntry(hookLogger))
	s.sleep = func(time.Duration) {}
	return s
}

func subscribe(t *testing.T, dir directory.Directory, phone, city string) {
	t.Helper()

	ctx := context.Background()
	if _, err := dir.UpsertDefault(ctx, phone); err != nil {
		t.Fatalf("UpsertDefault(%s): %v", phone, err)
	}
	if err := dir.Subscribe(ctx, phone, city); err != nil {
		t.Fatalf("Subscribe(%s, %s): %v", phone, city, err)
	}
}

func TestSweepAlertsNotifiesOnlyCitiesWithAlerts(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Hotville")
	subscribe(t, dir, "+912", "Calmville")

	lookup := &fakeLookup{snapshots: map[string]weather.Snapshot{
		"Hotville":  alertSnapshot("Hotville"),
		"Calmville": calmSnapshot("Calmville"),
	}}
	notifier := newFakeNotifier()
	s := newScheduler(t, dir, lookup, &fakeAdvisor{advice: "Shade the seedlings."}, notifier)

	s.SweepAlerts(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %v", notifier.sent)
	}
	body := notifier.sent["+911"]
	if !strings.Contains(body, "Heat alert") || !strings.Contains(body, "Shade the seedlings.") {
		t.Fatalf("unexpected alert body: %q", body)
	}
}

func TestSweepAlertsIsolatesPerUserFailures(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Brokenville")
	subscribe(t, dir, "+912", "Hotville")

	lookup := &fakeLookup{
		snapshots: map[string]weather.Snapshot{"Hotville": alertSnapshot("Hotville")},
		errs:      map[string]error{"Brokenville": errors.New("provider down")},
	}
	notifier := newFakeNotifier()
	s := newScheduler(t, dir, lookup, &fakeAdvisor{advice: "tips"}, notifier)

	s.SweepAlerts(context.Background())

	if len(lookup.calls) != 2 {
		t.Fatalf("expected lookups for both cities, got %v", lookup.calls)
	}
	if _, ok := notifier.sent["+912"]; !ok {
		t.Fatalf("expected healthy user to still be notified, got %v", notifier.sent)
	}
}

func TestSweepAlertsSendFailureDoesNotStopSweep(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Hotville")
	subscribe(t, dir, "+912", "Hotville")

	lookup := &fakeLookup{snapshots: map[string]weather.Snapshot{"Hotville": alertSnapshot("Hotville")}}
	notifier := newFakeNotifier()
	notifier.sendErr["+911"] = errors.New("twilio down")
	s := newScheduler(t, dir, lookup, &fakeAdvisor{advice: "tips"}, notifier)

	s.SweepAlerts(context.Background())

	if _, ok := notifier.sent["+912"]; !ok {
		t.Fatalf("expected remaining user to be notified, got %v", notifier.sent)
	}
}

func TestSweepAlertsAdvisoryFailureUsesFallbackTips(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Hotville")

	lookup := &fakeLookup{snapshots: map[string]weather.Snapshot{"Hotville": alertSnapshot("Hotville")}}
	notifier := newFakeNotifier()
	s := newScheduler(t, dir, lookup, &fakeAdvisor{adviseErr: errors.New("quota exceeded")}, notifier)

	s.SweepAlerts(context.Background())

	if !strings.Contains(notifier.sent["+911"], alertTipsFallback) {
		t.Fatalf("expected fallback tips, got %q", notifier.sent["+911"])
	}
}

func TestSweepAlertsTranslatesForNonEnglishUsers(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Hotville")
	if err := dir.SetLanguage(context.Background(), "+911", directory.LanguageHindi); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	lookup := &fakeLookup{snapshots: map[string]weather.Snapshot{"Hotville": alertSnapshot("Hotville")}}
	notifier := newFakeNotifier()
	s := newScheduler(t, dir, lookup, &fakeAdvisor{advice: "tips", translated: "अनुवादित चेतावनी"}, notifier)

	s.SweepAlerts(context.Background())

	if notifier.sent["+911"] != "अनुवादित चेतावनी" {
		t.Fatalf("expected translated alert, got %q", notifier.sent["+911"])
	}
}

func TestSweepReminderNotifiesEverySubscriber(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Hotville")
	subscribe(t, dir, "+912", "Calmville")

	notifier := newFakeNotifier()
	s := newScheduler(t, dir, &fakeLookup{}, &fakeAdvisor{}, notifier)

	s.SweepReminder(context.Background())

	if len(notifier.sent) != 2 {
		t.Fatalf("expected both subscribers reminded, got %v", notifier.sent)
	}
	if !strings.Contains(notifier.sent["+912"], "Daily reminder") {
		t.Fatalf("unexpected reminder body: %q", notifier.sent["+912"])
	}
}

func TestSweepReminderTranslationFailureSendsEnglish(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Hotville")
	if err := dir.SetLanguage(context.Background(), "+911", directory.LanguageMarathi); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	notifier := newFakeNotifier()
	s := newScheduler(t, dir, &fakeLookup{}, &fakeAdvisor{translateErr: errors.New("translator down")}, notifier)

	s.SweepReminder(context.Background())

	if !strings.Contains(notifier.sent["+911"], "Daily reminder") {
		t.Fatalf("expected untranslated reminder, got %q", notifier.sent["+911"])
	}
}

func TestSweepPacesSequentialSends(t *testing.T) {
	dir := directory.NewMemory()
	subscribe(t, dir, "+911", "Hotville")
	subscribe(t, dir, "+912", "Hotville")

	lookup := &fakeLookup{snapshots: map[string]weather.Snapshot{"Hotville": alertSnapshot("Hotville")}}
	notifier := newFakeNotifier()

	hookLogger, _ := logtest.NewNullLogger()
	s := New(dir, lookup, &fakeAdvisor{advice: "tips"}, notifier, 3*time.Hour, 24*time.Hour, logrus.NewEntry(hookLogger))

	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	s.SweepAlerts(context.Background())

	if len(slept) != 2 {
		t.Fatalf("expected a delay after each send, got %d", len(slept))
	}
	for _, d := range slept {
		if d != defaultSendDelay {
			t.Fatalf("expected %s delay, got %s", defaultSendDelay, d)
		}
	}
}

func TestStartAndStop(t *testing.T) {
	dir := directory.NewMemory()
	notifier := newFakeNotifier()

	hookLogger, _ := logtest.NewNullLogger()
	s := New(dir, &fakeLookup{}, &fakeAdvisor{}, notifier, 3*time.Hour, 24*time.Hour, logrus.NewEntry(hookLogger))

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	s.Stop()
}
