// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTwilioAccountSID   = "TWILIO_ACCOUNT_SID"
	KeyTwilioAuthToken    = "TWILIO_AUTH_TOKEN"
	KeyTwilioWhatsAppFrom = "TWILIO_WHATSAPP_FROM"
	KeyOpenWeatherAPIKey  = "OPENWEATHER_API_KEY"
	KeyGeminiAPIKey       = "GEMINI_API_KEY"
	KeyGeminiModel        = "GEMINI_MODEL"
	KeyAppEnv             = "APP_ENV"
	KeyLogLevel           = "LOG_LEVEL"
	KeyHTTPPort           = "HTTP_PORT"
	KeyAlertInterval      = "ALERT_INTERVAL"
	KeyReminderInterval   = "REMINDER_INTERVAL"
	KeyDirectoryBackend   = "DIRECTORY_BACKEND"
	KeyMongoURI           = "MONGO_URI"
	KeyMongoDB            = "MONGO_DB"
	KeyMediaDir           = "MEDIA_DIR"
	KeyPublicBaseURL      = "PUBLIC_BASE_URL"
	KeyTTSURL             = "TTS_URL"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Allowed directory backends.
	BackendMemory = "memory"
	BackendMongo  = "mongo"

	// Defaults for optional settings.
	DefaultAppEnv           = EnvProduction
	DefaultLogLevel         = "info"
	DefaultHTTPPort         = 8080
	DefaultGeminiModel      = "gemini-1.5-flash"
	DefaultAlertInterval    = 3 * time.Hour
	DefaultReminderInterval = 24 * time.Hour
	DefaultDirectoryBackend = BackendMemory
	DefaultMediaDir         = "./media"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTwilioAccountSID,
		Example:     "ACxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
		Required:    true,
		Description: "Twilio account SID used for the WhatsApp channel.",
	},
	{
		Key:         KeyTwilioAuthToken,
		Example:     "secret",
		Required:    true,
		Description: "Twilio auth token paired with the account SID.",
	},
	{
		Key:         KeyTwilioWhatsAppFrom,
		Example:     "whatsapp:+14155238886",
		Required:    true,
		Description: "Approved Twilio WhatsApp sender number.",
	},
	{
		Key:         KeyOpenWeatherAPIKey,
		Example:     "abc123",
		Required:    true,
		Description: "OpenWeather API key for current-conditions lookups.",
	},
	{
		Key:         KeyGeminiAPIKey,
		Example:     "AIza...",
		Required:    true,
		Description: "Gemini API key for advisory text, translation and transcription.",
	},
	{
		Key:         KeyGeminiModel,
		Example:     DefaultGeminiModel,
		Default:     DefaultGeminiModel,
		Description: "Gemini model name.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port for the inbound webhook, media and health endpoints.",
	},
	{
		Key:         KeyAlertInterval,
		Example:     "3h",
		Default:     "3h0m0s",
		Description: "Cadence of the subscriber alert sweep.",
	},
	{
		Key:         KeyReminderInterval,
		Example:     "24h",
		Default:     "24h0m0s",
		Description: "Cadence of the generic subscriber reminder.",
	},
	{
		Key:         KeyDirectoryBackend,
		Example:     BackendMemory + " / " + BackendMongo,
		Default:     DefaultDirectoryBackend,
		Description: "User directory backend.",
		Notes:       KeyMongoURI + " and " + KeyMongoDB + " are required when set to " + BackendMongo + ".",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string (mongo backend only).",
	},
	{
		Key:         KeyMongoDB,
		Example:     "farm_bot",
		Description: "MongoDB database name (mongo backend only).",
	},
	{
		Key:         KeyMediaDir,
		Example:     DefaultMediaDir,
		Default:     DefaultMediaDir,
		Description: "Directory where synthesized voice replies are stored.",
	},
	{
		Key:         KeyPublicBaseURL,
		Example:     "https://bot.example.com",
		Description: "Externally reachable base URL used to build media links for voice replies.",
	},
	{
		Key:         KeyTTSURL,
		Example:     "https://tts.example.com/synthesize",
		Description: "Optional text-to-speech endpoint; voice replies degrade to text when unset.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	OpenWeatherAPIKey  string
	GeminiAPIKey       string
	GeminiModel        string
	AppEnv             string
	LogLevel           string
	HTTPPort           int
	AlertInterval      time.Duration
	ReminderInterval   time.Duration
	DirectoryBackend   string
	MongoURI           string
	MongoDB            string
	MediaDir           string
	PublicBaseURL      string
	TTSURL             string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TwilioAccountSID:   strings.TrimSpace(os.Getenv(KeyTwilioAccountSID)),
		TwilioAuthToken:    strings.TrimSpace(os.Getenv(KeyTwilioAuthToken)),
		TwilioWhatsAppFrom: strings.TrimSpace(os.Getenv(KeyTwilioWhatsAppFrom)),
		OpenWeatherAPIKey:  strings.TrimSpace(os.Getenv(KeyOpenWeatherAPIKey)),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv(KeyGeminiAPIKey)),
		GeminiModel:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyGeminiModel)), DefaultGeminiModel),
		LogLevel:           firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:           DefaultHTTPPort,
		AlertInterval:      DefaultAlertInterval,
		ReminderInterval:   DefaultReminderInterval,
		DirectoryBackend:   firstNonEmpty(normalizeEnv(os.Getenv(KeyDirectoryBackend)), DefaultDirectoryBackend),
		MongoURI:           strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:            strings.TrimSpace(os.Getenv(KeyMongoDB)),
		MediaDir:           firstNonEmpty(strings.TrimSpace(os.Getenv(KeyMediaDir)), DefaultMediaDir),
		PublicBaseURL:      strings.TrimRight(strings.TrimSpace(os.Getenv(KeyPublicBaseURL)), "/"),
		TTSURL:             strings.TrimSpace(os.Getenv(KeyTTSURL)),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TwilioAccountSID == "" {
		missing = append(missing, KeyTwilioAccountSID)
	}
	if cfg.TwilioAuthToken == "" {
		missing = append(missing, KeyTwilioAuthToken)
	}
	if cfg.TwilioWhatsAppFrom == "" {
		missing = append(missing, KeyTwilioWhatsAppFrom)
	}
	if cfg.OpenWeatherAPIKey == "" {
		missing = append(missing, KeyOpenWeatherAPIKey)
	}
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, KeyGeminiAPIKey)
	}

	switch cfg.DirectoryBackend {
	case BackendMemory:
	case BackendMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, KeyMongoURI)
		}
		if cfg.MongoDB == "" {
			missing = append(missing, KeyMongoDB)
		}
	default:
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyDirectoryBackend, BackendMemory, BackendMongo)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	alertInterval, err := parseInterval(KeyAlertInterval, DefaultAlertInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AlertInterval = alertInterval

	reminderInterval, err := parseInterval(KeyReminderInterval, DefaultReminderInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ReminderInterval = reminderInterval

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// UsesMongo reports whether the mongo directory backend is selected.
func (c Config) UsesMongo() bool {
	return c.DirectoryBackend == BackendMongo
}

// FormatRedacted renders the resolved configuration with secret values masked,
// suitable for the --config-only boot check.
func FormatRedacted(cfg Config) string {
	var b strings.Builder

	writeLine := func(key, value string) {
		fmt.Fprintf(&b, "%s=%s\n", key, value)
	}

	writeLine(KeyAppEnv, cfg.AppEnv)
	writeLine(KeyLogLevel, cfg.LogLevel)
	writeLine(KeyHTTPPort, strconv.Itoa(cfg.HTTPPort))
	writeLine(KeyTwilioAccountSID, redact(cfg.TwilioAccountSID))
	writeLine(KeyTwilioAuthToken, redact(cfg.TwilioAuthToken))
	writeLine(KeyTwilioWhatsAppFrom, cfg.TwilioWhatsAppFrom)
	writeLine(KeyOpenWeatherAPIKey, redact(cfg.OpenWeatherAPIKey))
	writeLine(KeyGeminiAPIKey, redact(cfg.GeminiAPIKey))
	writeLine(KeyGeminiModel, cfg.GeminiModel)
	writeLine(KeyAlertInterval, cfg.AlertInterval.String())
	writeLine(KeyReminderInterval, cfg.ReminderInterval.String())
	writeLine(KeyDirectoryBackend, cfg.DirectoryBackend)
	if cfg.UsesMongo() {
		writeLine(KeyMongoURI, redact(cfg.MongoURI))
		writeLine(KeyMongoDB, cfg.MongoDB)
	}
	writeLine(KeyMediaDir, cfg.MediaDir)
	writeLine(KeyPublicBaseURL, cfg.PublicBaseURL)
	if cfg.TTSURL != "" {
		writeLine(KeyTTSURL, cfg.TTSURL)
	}

	return strings.TrimRight(b.String(), "\n")
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

func parseInterval(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	interval, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return interval, nil
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
