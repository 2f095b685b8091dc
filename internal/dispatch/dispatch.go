// Package dispatch maps one inbound message to exactly one outbound reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/directory"
	"wa_farm_advisor_bot/internal/logging"
	"wa_farm_advisor_bot/internal/voice"
	"wa_farm_advisor_bot/internal/weather"
	"wa_farm_advisor_bot/internal/whatsapp"
)

// WeatherLookup fetches current conditions for a city.
type WeatherLookup interface {
	Current(ctx context.Context, city string) (weather.Snapshot, error)
}

// Advisor generates farming tips and translates replies.
type Advisor interface {
	Advise(ctx context.Context, snapshot weather.Snapshot, lang directory.Language) (string, error)
	Translate(ctx context.Context, text string, lang directory.Language) (string, error)
}

// Notifier delivers outbound messages.
type Notifier interface {
	Send(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to, mediaURL string) error
}

// MediaFetcher downloads provider-hosted inbound media.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaURL string) ([]byte, string, error)
}

// VoiceReplier runs the voice pipeline over one voice note.
type VoiceReplier interface {
	Reply(ctx context.Context, audio []byte, mimeType string, lang directory.Language) (voice.Result, error)
}

// Dispatcher owns the matcher chain: inbound text is evaluated top to bottom,
// first match wins, falling through to the help reply.
type Dispatcher struct {
	dir      directory.Directory
	weather  WeatherLookup
	advisor  Advisor
	notifier Notifier
	fetcher  MediaFetcher
	voice    VoiceReplier
	logger   *logrus.Entry
}

// New constructs a Dispatcher. fetcher and voicePipeline may be nil; voice
// notes then receive the apology reply.
func New(dir directory.Directory, lookup WeatherLookup, advisor Advisor, notifier Notifier, fetcher MediaFetcher, voicePipeline VoiceReplier, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		dir:      dir,
		weather:  lookup,
		advisor:  advisor,
		notifier: notifier,
		fetcher:  fetcher,
		voice:    voicePipeline,
		logger:   logger,
	}
}

// Handle processes one inbound message end to end: prime the directory,
// run the matcher chain (or the voice detour), translate, deliver.
func (d *Dispatcher) Handle(ctx context.Context, msg whatsapp.Message) error {
	if d == nil || d.dir == nil || d.notifier == nil {
		return errors.New("dispatcher is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	phone := strings.TrimSpace(msg.From)
	if phone == "" {
		return errors.New("sender is required")
	}

	created, err := d.dir.UpsertDefault(ctx, phone)
	if err != nil {
		return fmt.Errorf("prime directory: %w", err)
	}

	// First contact is a terminal branch: the welcome menu goes out and the
	// message itself is not interpreted as a command.
	if created {
		d.logger.WithFields(logging.Fields{
			"event": "user_registered",
			"phone": phone,
		}).Info("registered new user")

		d.deliver(ctx, phone, welcomeMessage)
		return nil
	}

	rec, err := d.dir.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	if msg.IsVoiceNote() {
		d.handleVoice(ctx, rec, msg)
		return nil
	}

	reply := d.reply(ctx, rec, msg.Body)

	if rec.Language != directory.LanguageEnglish && d.advisor != nil {
		translated, err := d.advisor.Translate(ctx, reply, rec.Language)
		if err != nil {
			d.logger.WithFields(logging.Fields{
				"event": "translate_failed",
				"phone": phone,
			}).WithError(err).Warn("sending untranslated reply")
		} else {
			reply = translated
		}
	}

	d.deliver(ctx, phone, reply)
	return nil
}

// reply evaluates the matcher chain and returns the (untranslated) reply.
func (d *Dispatcher) reply(ctx context.Context, rec directory.Record, body string) string {
	text := strings.TrimSpace(body)
	normalized := strings.ToLower(text)

	switch normalized {
	case "status", "/status", "my status":
		return d.statusReply(rec)
	case "1":
		return d.setLanguage(ctx, rec.Phone, directory.LanguageHindi)
	case "2":
		return d.setLanguage(ctx, rec.Phone, directory.LanguageMarathi)
	case "3":
		return d.setLanguage(ctx, rec.Phone, directory.LanguageEnglish)
	case "view log":
		return d.viewLogReply(rec)
	case "clear log":
		return d.clearLog(ctx, rec.Phone)
	case "unsubscribe":
		return d.unsubscribe(ctx, rec.Phone)
	}

	if rest, ok := matchPrefix(text, normalized, "log"); ok {
		return d.appendLog(ctx, rec.Phone, rest)
	}
	if rest, ok := matchPrefix(text, normalized, "subscribe"); ok {
		return d.subscribe(ctx, rec.Phone, rest)
	}
	if rest, ok := matchPrefix(text, normalized, "weather"); ok {
		return d.weatherReply(ctx, rec, rest)
	}

	return helpMessage
}

// matchPrefix matches `word` or `word <rest>` case-insensitively, returning
// the trimmed remainder from the original-cased text.
func matchPrefix(text, normalized, word string) (string, bool) {
	if normalized == word {
		return "", true
	}
	if strings.HasPrefix(normalized, word+" ") {
		return strings.TrimSpace(text[len(word)+1:]), true
	}
	return "", false
}

func (d *Dispatcher) statusReply(rec directory.Record) string {
	city := rec.City
	if city == "" {
		city = "not set"
	}

	subscription := "inactive"
	if rec.Subscribed {
		subscription = "active"
	}

	return fmt.Sprintf("Your status:\nCity: %s\nLanguage: %s\nAlerts: %s", city, rec.Language.Name(), subscription)
}

func (d *Dispatcher) setLanguage(ctx context.Context, phone string, lang directory.Language) string {
	if err := d.dir.SetLanguage(ctx, phone, lang); err != nil {
		d.logWarn(phone, "set_language_failed", err)
		return helpMessage
	}

	return fmt.Sprintf(languageConfirmFormat, lang.Name())
}

func (d *Dispatcher) appendLog(ctx context.Context, phone, text string) string {
	if text == "" {
		return logUsageMessage
	}

	if err := d.dir.AppendActivity(ctx, phone, text); err != nil {
		d.logWarn(phone, "append_activity_failed", err)
		return logUsageMessage
	}

	return logConfirmMessage
}

func (d *Dispatcher) viewLogReply(rec directory.Record) string {
	if len(rec.Activities) == 0 {
		return logEmptyMessage
	}

	var b strings.Builder
	b.WriteString("Your farm activities:\n")
	for _, activity := range rec.Activities {
		fmt.Fprintf(&b, "%s: %s\n", activity.At.Format("02 Jan 2006 15:04"), activity.Text)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) clearLog(ctx context.Context, phone string) string {
	if err := d.dir.ClearActivities(ctx, phone); err != nil {
		d.logWarn(phone, "clear_activities_failed", err)
	}

	return logClearedMessage
}

func (d *Dispatcher) subscribe(ctx context.Context, phone, city string) string {
	if city == "" {
		return subscribeUsageMessage
	}

	if err := d.dir.Subscribe(ctx, phone, city); err != nil {
		d.logWarn(phone, "subscribe_failed", err)
		return subscribeUsageMessage
	}

	return fmt.Sprintf(subscribeConfirmFormat, city)
}

func (d *Dispatcher) unsubscribe(ctx context.Context, phone string) string {
	if err := d.dir.Unsubscribe(ctx, phone); err != nil {
		d.logWarn(phone, "unsubscribe_failed", err)
	}

	return unsubscribeMessage
}

func (d *Dispatcher) weatherReply(ctx context.Context, rec directory.Record, city string) string {
	if city == "" {
		city = rec.City
	}
	if city == "" {
		return weatherUsageMessage
	}

	snapshot, err := d.weather.Current(ctx, city)
	if err != nil {
		d.logWarn(rec.Phone, "weather_lookup_failed", err)
		return weatherFailureMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weather in %s: %.1f°C, %s, wind %.1f m/s.\n", snapshot.City, snapshot.TempC, snapshot.Description, snapshot.WindSpeed)
	for _, alert := range snapshot.Alerts {
		fmt.Fprintf(&b, "⚠️ %s\n", alert)
	}

	tips := tipsFallbackMessage
	if d.advisor != nil {
		generated, err := d.advisor.Advise(ctx, snapshot, rec.Language)
		if err != nil {
			d.logWarn(rec.Phone, "advisory_failed", err)
		} else {
			tips = generated
		}
	}

	b.WriteString("\nFarming tips:\n")
	b.WriteString(tips)

	return b.String()
}

// handleVoice runs the voice detour. Any failure yields the fixed apology.
func (d *Dispatcher) handleVoice(ctx context.Context, rec directory.Record, msg whatsapp.Message) {
	if d.fetcher == nil || d.voice == nil {
		d.logWarn(rec.Phone, "voice_unavailable", errors.New("voice pipeline is not configured"))
		d.deliver(ctx, rec.Phone, voiceApologyMessage)
		return
	}

	audio, contentType, err := d.fetcher.FetchMedia(ctx, msg.MediaURL)
	if err != nil {
		d.logWarn(rec.Phone, "voice_fetch_failed", err)
		d.deliver(ctx, rec.Phone, voiceApologyMessage)
		return
	}
	if contentType == "" {
		contentType = msg.MediaContentType
	}

	result, err := d.voice.Reply(ctx, audio, contentType, rec.Language)
	if err != nil {
		d.logWarn(rec.Phone, "voice_pipeline_failed", err)
		d.deliver(ctx, rec.Phone, voiceApologyMessage)
		return
	}

	if result.MediaURL != "" {
		if err := d.notifier.SendMedia(ctx, rec.Phone, result.MediaURL); err != nil {
			d.logWarn(rec.Phone, "voice_send_failed", err)
		}
		return
	}

	d.deliver(ctx, rec.Phone, result.Text)
}

// deliver sends the reply. Delivery failures are logged, never surfaced: the
// webhook acknowledges regardless, and the channel offers no retry path.
func (d *Dispatcher) deliver(ctx context.Context, phone, body string) {
	if err := d.notifier.Send(ctx, phone, body); err != nil {
		d.logger.WithFields(logging.Fields{
			"event": "delivery_failed",
			"phone": phone,
		}).WithError(err).Error("failed to deliver reply")
	}
}

func (d *Dispatcher) logWarn(phone, event string, err error) {
	d.logger.WithFields(logging.Fields{
		"event": event,
		"phone": phone,
	}).WithError(err).Warn("dispatch fallback")
}
