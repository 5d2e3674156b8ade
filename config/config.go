package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DialogueStoreMemory = "memory"
	DialogueStoreRedis  = "redis"
)

const (
	defaultReminderAfter   = 24 * time.Hour
	defaultEscalateAfter   = 48 * time.Hour
	defaultSweepPageSize   = 50
	defaultUpdateWorkers   = 4
	defaultUpdateQueueSize = 100
	defaultDialogueTTL     = 30 * time.Minute
)

type Config struct {
	// telegram
	BotToken      string
	WebhookURL    string // empty means long polling
	WebhookSecret string

	// database
	DBDriver    string
	DatabaseDSN string

	// liveness thresholds
	ReminderAfter            time.Duration
	EscalateAfter            time.Duration
	SweepPageSize            int
	IncludeNeverConfirmed    bool   // left join semantics: chats that never confirmed are overdue
	ReminderSchedule         string // cron expression, empty disables in-process reminders
	EscalationSchedule       string // cron expression, empty disables in-process escalation
	PlaceholderEmergencyText string
	FallbackOwnerHandle      string

	// update dispatcher
	UpdateWorkers   int
	UpdateQueueSize int

	// dialogue state
	DialogueStore string
	DialogueTTL   time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// admin http surface
	HTTPAddr           string
	AdminTokenHash     string
	CORSAllowedOrigins []string

	// logging
	LogLevel      string
	LogFormat     string
	LogFilename   string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := cast.ToIntE(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := cast.ToBoolE(valStr)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %t. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// ParseDuration accepts Go durations ("36h", "90m") and whole days ("3d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return cast.ToDurationE(s)
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func requireEnv(key string) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	token, err := requireEnv("BOT_TOKEN")
	if err != nil {
		return Config{}, err
	}
	dsn, err := requireEnv("DATABASE_DSN")
	if err != nil {
		return Config{}, err
	}

	driver := strings.ToLower(getEnvOrDefault("DB_DRIVER", DriverSQLite))
	if driver != DriverSQLite && driver != DriverPostgres {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER '%s' (expected %s or %s)", driver, DriverSQLite, DriverPostgres)
	}

	reminderAfter := getEnvDurationOrDefault("REMINDER_AFTER", defaultReminderAfter)
	escalateAfter := getEnvDurationOrDefault("ESCALATE_AFTER", defaultEscalateAfter)
	if escalateAfter < reminderAfter {
		return Config{}, fmt.Errorf("ESCALATE_AFTER (%s) must not be shorter than REMINDER_AFTER (%s)", escalateAfter, reminderAfter)
	}

	reminderSchedule := strings.TrimSpace(os.Getenv("REMINDER_SCHEDULE"))
	escalationSchedule := strings.TrimSpace(os.Getenv("ESCALATION_SCHEDULE"))
	for name, expr := range map[string]string{"REMINDER_SCHEDULE": reminderSchedule, "ESCALATION_SCHEDULE": escalationSchedule} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return Config{}, fmt.Errorf("invalid %s '%s': %w", name, expr, err)
		}
	}

	dialogueStore := strings.ToLower(getEnvOrDefault("DIALOGUE_STORE", DialogueStoreMemory))
	if dialogueStore != DialogueStoreMemory && dialogueStore != DialogueStoreRedis {
		return Config{}, fmt.Errorf("unsupported DIALOGUE_STORE '%s' (expected %s or %s)", dialogueStore, DialogueStoreMemory, DialogueStoreRedis)
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		redisDB, err = cast.ToIntE(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB '%s': %w", v, err)
		}
	}

	webhookURL := strings.TrimSpace(os.Getenv("WEBHOOK_URL"))
	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if webhookURL != "" && httpAddr == "" {
		return Config{}, fmt.Errorf("WEBHOOK_URL requires HTTP_ADDR to receive updates")
	}

	cfg := Config{
		BotToken:                 token,
		WebhookURL:               webhookURL,
		WebhookSecret:            webhookSecret,
		DBDriver:                 driver,
		DatabaseDSN:              dsn,
		ReminderAfter:            reminderAfter,
		EscalateAfter:            escalateAfter,
		SweepPageSize:            getEnvIntOrDefault("SWEEP_PAGE_SIZE", defaultSweepPageSize),
		IncludeNeverConfirmed:    getEnvBoolOrDefault("SWEEP_INCLUDE_NEVER_CONFIRMED", true),
		ReminderSchedule:         reminderSchedule,
		EscalationSchedule:       escalationSchedule,
		PlaceholderEmergencyText: getEnvOrDefault("PLACEHOLDER_EMERGENCY_TEXT", "no emergency text configured"),
		FallbackOwnerHandle:      getEnvOrDefault("FALLBACK_OWNER_HANDLE", "The pet owner"),
		UpdateWorkers:            getEnvIntOrDefault("UPDATE_WORKERS", defaultUpdateWorkers),
		UpdateQueueSize:          getEnvIntOrDefault("UPDATE_QUEUE_SIZE", defaultUpdateQueueSize),
		DialogueStore:            dialogueStore,
		DialogueTTL:              getEnvDurationOrDefault("DIALOGUE_TTL", defaultDialogueTTL),
		RedisAddr:                getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		HTTPAddr:                 httpAddr,
		AdminTokenHash:           os.Getenv("ADMIN_TOKEN_HASH"),
		CORSAllowedOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:                getEnvOrDefault("LOG_FORMAT", "json"),
		LogFilename:              os.Getenv("LOG_FILENAME"),
		LogMaxSizeMB:             getEnvIntOrDefault("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:            getEnvIntOrDefault("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:            getEnvIntOrDefault("LOG_MAX_AGE_DAYS", 28),
	}

	return cfg, nil
}
