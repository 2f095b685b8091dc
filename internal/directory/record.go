// Package directory holds per-user state: subscription, city, language
// preference and the farm activity log.
package directory

import "time"

// Language is a reply language code.
type Language string

// Supported reply languages.
const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
	LanguageMarathi Language = "mr"
)

// Valid reports whether the code is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageMarathi:
		return true
	default:
		return false
	}
}

// Name returns the human-readable language name used in prompts and menus.
func (l Language) Name() string {
	switch l {
	case LanguageHindi:
		return "Hindi"
	case LanguageMarathi:
		return "Marathi"
	default:
		return "English"
	}
}

// Activity is a single free-text farm activity note.
type Activity struct {
	Text string    `bson:"text" json:"text"`
	At   time.Time `bson:"at" json:"at"`
}

// Record is the per-user directory entry, keyed by WhatsApp phone number.
// Unsubscribing clears Subscribed and City but keeps the language preference
// and the activity log.
type Record struct {
	Phone      string     `bson:"phone" json:"phone"`
	Language   Language   `bson:"language" json:"language"`
	Subscribed bool       `bson:"subscribed" json:"subscribed"`
	City       string     `bson:"city,omitempty" json:"city,omitempty"`
	Activities []Activity `bson:"activities" json:"activities"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}
