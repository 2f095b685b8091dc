// Package scheduler runs the recurring alert and reminder sweeps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/directory"
	"wa_farm_advisor_bot/internal/logging"
	"wa_farm_advisor_bot/internal/weather"
)

const (
	// defaultSendDelay paces outbound sends so a full sweep stays under the
	// provider's rate limit.
	defaultSendDelay = time.Second

	reminderMessage = "Daily reminder from Farm Advisor 🌾\n" +
		"Send 'weather' for today's conditions and farming tips, or " +
		"'log <activity>' to note what you did on the farm."

	alertTipsFallback = "Tip: move livestock and stored produce under cover before conditions worsen."
)

// WeatherLookup fetches current conditions for a city.
type WeatherLookup interface {
	Current(ctx context.Context, city string) (weather.Snapshot, error)
}

// Advisor generates alert-time tips and translates outbound text.
type Advisor interface {
	Advise(ctx context.Context, snapshot weather.Snapshot, lang directory.Language) (string, error)
	Translate(ctx context.Context, text string, lang directory.Language) (string, error)
}

// Notifier delivers outbound messages.
type Notifier interface {
	Send(ctx context.Context, to, body string) error
}

// Scheduler owns the two recurring jobs: the alert sweep and the daily
// reminder. Sweeps are serialized per user on purpose.
type Scheduler struct {
	cron     *gocron.Scheduler
	dir      directory.Directory
	weather  WeatherLookup
	advisor  Advisor
	notifier Notifier
	logger   *logrus.Entry

	alertInterval    time.Duration
	reminderInterval time.Duration

	// sleep paces sequential sends. Tests replace it to run sweeps instantly.
	sleep func(time.Duration)
	delay time.Duration
}

// New constructs a Scheduler with jobs not yet registered.
func New(dir directory.Directory, lookup WeatherLookup, advisor Advisor, notifier Notifier, alertInterval, reminderInterval time.Duration, logger *logrus.Entry) *Scheduler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Scheduler{
		cron:             gocron.NewScheduler(time.UTC),
		dir:              dir,
		weather:          lookup,
		advisor:          advisor,
		notifier:         notifier,
		logger:           logger,
		alertInterval:    alertInterval,
		reminderInterval: reminderInterval,
		sleep:            time.Sleep,
		delay:            defaultSendDelay,
	}
}

// Start registers both jobs and runs the scheduler asynchronously.
func (s *Scheduler) Start() error {
	if s == nil || s.cron == nil {
		return errors.New("scheduler is not initialized")
	}

	if _, err := s.cron.Every(s.alertInterval).Do(func() {
		s.SweepAlerts(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule alert sweep: %w", err)
	}

	if _, err := s.cron.Every(s.reminderInterval).Do(func() {
		s.SweepReminder(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}

	s.cron.StartAsync()

	s.logger.WithFields(logging.Fields{
		"event":             "scheduler_started",
		"alert_interval":    s.alertInterval.String(),
		"reminder_interval": s.reminderInterval.String(),
	}).Info("scheduler started")

	return nil
}

// Stop halts the scheduler. Safe to call on a scheduler that never started.
func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}

	s.cron.Stop()
}

// SweepAlerts looks up the weather for every subscriber and notifies those
// whose city currently has at least one alert. A failure for one user never
// interrupts the sweep.
func (s *Scheduler) SweepAlerts(ctx context.Context) {
	subscribers, err := s.dir.Subscribers(ctx)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "alert_sweep_failed",
		}).WithError(err).Error("failed to list subscribers")
		return
	}

	sent := 0
	for phone, city := range subscribers {
		if s.alertUser(ctx, phone, city) {
			sent++
			s.sleep(s.delay)
		}
	}

	s.logger.WithFields(logging.Fields{
		"event":       "alert_sweep_done",
		"subscribers": len(subscribers),
		"sent":        sent,
	}).Info("alert sweep completed")
}

// alertUser runs one user's lookup and send. Reports whether a send happened.
func (s *Scheduler) alertUser(ctx context.Context, phone, city string) bool {
	snapshot, err := s.weather.Current(ctx, city)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "alert_lookup_failed",
			"phone": phone,
			"city":  city,
		}).WithError(err).Warn("skipping user")
		return false
	}

	if !snapshot.HasAlerts() {
		return false
	}

	body := s.composeAlert(ctx, snapshot, phone)
	if err := s.notifier.Send(ctx, phone, body); err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "alert_send_failed",
			"phone": phone,
			"city":  city,
		}).WithError(err).Warn("skipping user")
		return false
	}

	return true
}

// composeAlert builds the alert body: alert lines, generated tips, and a
// translation for non-English users.
func (s *Scheduler) composeAlert(ctx context.Context, snapshot weather.Snapshot, phone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weather alert for %s ⚠️\n", snapshot.City)
	for _, alert := range snapshot.Alerts {
		b.WriteString(alert)
		b.WriteString("\n")
	}

	lang := s.languageFor(ctx, phone)

	tips := alertTipsFallback
	if s.advisor != nil {
		generated, err := s.advisor.Advise(ctx, snapshot, lang)
		if err != nil {
			s.logger.WithFields(logging.Fields{
				"event": "alert_advisory_failed",
				"phone": phone,
			}).WithError(err).Warn("using fallback tips")
		} else {
			tips = generated
		}
	}

	b.WriteString("\nFarming tips:\n")
	b.WriteString(tips)

	return s.translate(ctx, b.String(), phone, lang)
}

// SweepReminder sends the generic reminder to every subscriber.
func (s *Scheduler) SweepReminder(ctx context.Context) {
	subscribers, err := s.dir.Subscribers(ctx)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "reminder_sweep_failed",
		}).WithError(err).Error("failed to list subscribers")
		return
	}

	sent := 0
	for phone := range subscribers {
		body := s.translate(ctx, reminderMessage, phone, s.languageFor(ctx, phone))
		if err := s.notifier.Send(ctx, phone, body); err != nil {
			s.logger.WithFields(logging.Fields{
				"event": "reminder_send_failed",
				"phone": phone,
			}).WithError(err).Warn("skipping user")
			continue
		}

		sent++
		s.sleep(s.delay)
	}

	s.logger.WithFields(logging.Fields{
		"event":       "reminder_sweep_done",
		"subscribers": len(subscribers),
		"sent":        sent,
	}).Info("reminder sweep completed")
}

func (s *Scheduler) languageFor(ctx context.Context, phone string) directory.Language {
	rec, err := s.dir.Get(ctx, phone)
	if err != nil {
		return directory.LanguageEnglish
	}

	return rec.Language
}

// translate converts body to the user's language. Failure falls back to the
// untranslated text.
func (s *Scheduler) translate(ctx context.Context, body, phone string, lang directory.Language) string {
	if lang == directory.LanguageEnglish || s.advisor == nil {
		return body
	}

	translated, err := s.advisor.Translate(ctx, body, lang)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "translate_failed",
			"phone": phone,
		}).WithError(err).Warn("sending untranslated message")
		return body
	}

	return translated
}
