package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quizbot-service/internal/domain"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
		WSJWTSecret string   `yaml:"ws_jwt_secret"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		LockTTL  string `yaml:"lock_ttl"`
		DedupTTL string `yaml:"dedup_ttl"`
	} `yaml:"redis"`
	Telegram struct {
		Token        string  `yaml:"token"`
		Mode         string  `yaml:"mode"`
		WebhookURL   string  `yaml:"webhook_url"`
		WebhookPath  string  `yaml:"webhook_path"`
		AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	} `yaml:"telegram"`
	Quiz struct {
		Variants      []VariantConfig `yaml:"variants"`
		QuestionDelay string          `yaml:"question_delay"`
		Workers       int             `yaml:"workers"`
	} `yaml:"quiz"`
	Email struct {
		SendGridAPIKey string   `yaml:"sendgrid_api_key"`
		BaseURL        string   `yaml:"base_url"`
		From           string   `yaml:"from"`
		FromName       string   `yaml:"from_name"`
		Recipients     []string `yaml:"recipients"`
	} `yaml:"email"`
}

type VariantConfig struct {
	Name             string `yaml:"name"`
	Title            string `yaml:"title"`
	Source           string `yaml:"source"`
	QuestionsPerTest int    `yaml:"questions_per_test"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	TelegramPolling = "polling"
	TelegramWebhook = "webhook"
)

// Load reads YAML config from path and overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PORT", &c.Server.Port)
	str("WS_JWT_SECRET", &c.Server.WSJWTSecret)
	str("LOG_MODE", &c.Log.Mode)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.DSN)
	str("POSTGRES_URL", &c.Postgres.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	str("SENDGRID_API_KEY", &c.Email.SendGridAPIKey)
	str("EMAIL_FROM", &c.Email.From)

	if v, ok := lookup("WEBHOOK_URL"); ok && strings.TrimSpace(v) != "" {
		c.Telegram.WebhookURL = strings.TrimSpace(v)
		c.Telegram.Mode = TelegramWebhook
	}
	if v, ok := lookup("EMAIL_RECIPIENT"); ok && strings.TrimSpace(v) != "" {
		c.Email.Recipients = splitList(v)
	}
	if v, ok := lookup("ADMIN_CHAT_ID"); ok && strings.TrimSpace(v) != "" {
		ids := make([]int64, 0)
		for _, raw := range splitList(v) {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ADMIN_CHAT_ID entry %q: %w", raw, err)
			}
			ids = append(ids, id)
		}
		c.Telegram.AdminChatIDs = ids
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.DSN == "" {
		c.Database.DSN = "file:quizbot.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = TelegramPolling
	}
	if c.Telegram.WebhookPath == "" {
		c.Telegram.WebhookPath = "/telegram/webhook"
	}
	if c.Quiz.Workers <= 0 {
		c.Quiz.Workers = 4
	}
}

// Validate reports configuration that cannot be served.
func (c Config) Validate() error {
	if len(c.Quiz.Variants) == 0 {
		return fmt.Errorf("quiz.variants: at least one variant required")
	}
	seen := make(map[string]struct{}, len(c.Quiz.Variants))
	for i, v := range c.Quiz.Variants {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("quiz.variants[%d]: name required", i)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("quiz.variants[%d]: duplicate name %q", i, v.Name)
		}
		seen[v.Name] = struct{}{}
		if v.QuestionsPerTest <= 0 {
			return fmt.Errorf("quiz.variants[%d]: questions_per_test must be positive", i)
		}
		if strings.TrimSpace(v.Source) == "" {
			return fmt.Errorf("quiz.variants[%d]: source required", i)
		}
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver: unsupported %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn required")
	}
	switch c.Telegram.Mode {
	case TelegramPolling:
	case TelegramWebhook:
		if c.Telegram.Token != "" && c.Telegram.WebhookURL == "" {
			return fmt.Errorf("telegram.webhook_url required in webhook mode")
		}
	default:
		return fmt.Errorf("telegram.mode: unsupported %q", c.Telegram.Mode)
	}
	return nil
}

// Variants converts the configured variants to domain values, in configuration order.
func (c Config) Variants() []domain.Variant {
	out := make([]domain.Variant, 0, len(c.Quiz.Variants))
	for _, v := range c.Quiz.Variants {
		out = append(out, domain.Variant{
			Name:             v.Name,
			Title:            v.Title,
			Source:           v.Source,
			QuestionsPerTest: v.QuestionsPerTest,
		})
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
