package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Memory is the default Directory implementation: a mutex-guarded map that
// does not survive process restart. Volatility is a stated property of the
// system, not an oversight.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*Record

	// now is overridable for tests.
	now func() time.Time
}

// NewMemory constructs an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Get returns the record for the phone number or ErrNotFound.
func (m *Memory) Get(ctx context.Context, phone string) (Record, error) {
	if err := m.check(ctx, phone); err != nil {
		return Record{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[phone]
	if !ok {
		return Record{}, ErrNotFound
	}

	return cloneRecord(rec), nil
}

// UpsertDefault creates the record if absent and reports whether it did.
func (m *Memory) UpsertDefault(ctx context.Context, phone string) (bool, error) {
	if err := m.check(ctx, phone); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[phone]; ok {
		return false, nil
	}

	now := m.now().UTC()
	m.records[phone] = &Record{
		Phone:      phone,
		Language:   LanguageEnglish,
		Subscribed: false,
		Activities: []Activity{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return true, nil
}

// SetLanguage stores the reply language preference.
func (m *Memory) SetLanguage(ctx context.Context, phone string, lang Language) error {
	if err := m.check(ctx, phone); err != nil {
		return err
	}
	if !lang.Valid() {
		return errors.New("invalid language code")
	}

	return m.mutate(phone, func(rec *Record) {
		rec.Language = lang
	})
}

// Subscribe enables alerts for the given city.
func (m *Memory) Subscribe(ctx context.Context, phone, city string) error {
	if err := m.check(ctx, phone); err != nil {
		return err
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return errors.New("city is required")
	}

	return m.mutate(phone, func(rec *Record) {
		rec.Subscribed = true
		rec.City = city
	})
}

// Unsubscribe clears the subscription flag and city.
func (m *Memory) Unsubscribe(ctx context.Context, phone string) error {
	if err := m.check(ctx, phone); err != nil {
		return err
	}

	return m.mutate(phone, func(rec *Record) {
		rec.Subscribed = false
		rec.City = ""
	})
}

// AppendActivity appends one activity note with the current timestamp.
func (m *Memory) AppendActivity(ctx context.Context, phone, text string) error {
	if err := m.check(ctx, phone); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("activity text is required")
	}

	at := m.now().UTC()
	return m.mutate(phone, func(rec *Record) {
		rec.Activities = append(rec.Activities, Activity{Text: text, At: at})
	})
}

// ClearActivities empties the activity log.
func (m *Memory) ClearActivities(ctx context.Context, phone string) error {
	if err := m.check(ctx, phone); err != nil {
		return err
	}

	return m.mutate(phone, func(rec *Record) {
		rec.Activities = []Activity{}
	})
}

// Subscribers returns a phone→city snapshot of all subscribed users.
func (m *Memory) Subscribers(ctx context.Context) (map[string]string, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string)
	for phone, rec := range m.records {
		if rec.Subscribed && rec.City != "" {
			out[phone] = rec.City
		}
	}

	return out, nil
}

// CountSubscribed returns the number of subscribed users.
func (m *Memory) CountSubscribed(ctx context.Context) (int64, error) {
	subs, err := m.Subscribers(ctx)
	if err != nil {
		return 0, err
	}

	return int64(len(subs)), nil
}

// Ping always succeeds for the in-memory backend.
func (m *Memory) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

func (m *Memory) check(ctx context.Context, phone string) error {
	if m == nil || m.records == nil {
		return errors.New("memory directory is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(phone) == "" {
		return errors.New("phone is required")
	}
	return nil
}

// mutate applies fn under the write lock. Absent records are a no-op.
func (m *Memory) mutate(phone string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[phone]
	if !ok {
		return nil
	}

	fn(rec)
	rec.UpdatedAt = m.now().UTC()
	return nil
}

func cloneRecord(rec *Record) Record {
	out := *rec
	out.Activities = make([]Activity, len(rec.Activities))
	copy(out.Activities, rec.Activities)
	return out
}
