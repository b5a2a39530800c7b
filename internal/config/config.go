package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// AppConfig aggregates runtime settings. Everything can be injected through
// environment variables; CONFIG_FILE optionally points at a yaml/toml/json file.
type AppConfig struct {
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	DBPath string

	RedisAddr string
	RedisDB   int

	UploadDir      string
	MaxUploadBytes int64

	// Checkout
	WhatsAppNumber string
	MinimumOrder   decimal.Decimal
	StoreName      string

	// AdminUsers maps username to bcrypt hash.
	AdminUsers map[string]string
	SessionTTL time.Duration

	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
	LoginRateLimit     int
	LoginRateWindow    time.Duration
	CheckoutClaimTTL   time.Duration

	// Order events: Redis stream outbox relayed to Kafka.
	EventsEnabled      bool
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	LogLevel  string
	LogFormat string
	LogOutput string
	LogFile   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_READ_TIMEOUT_SEC", 30)
	v.SetDefault("HTTP_WRITE_TIMEOUT_SEC", 60)
	v.SetDefault("DB_PATH", "productos.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("UPLOAD_DIR", "static/img")
	v.SetDefault("MAX_UPLOAD_MB", 5)
	v.SetDefault("WHATSAPP_NUMBER", "5491158573906")
	v.SetDefault("PEDIDO_MINIMO", "200000")
	v.SetDefault("STORE_NAME", "RM KITS")
	v.SetDefault("ADMIN_USERS", "")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "rmkits2024")
	v.SetDefault("SESSION_TTL_HOUR", 12)
	v.SetDefault("CHECKOUT_RATE_LIMIT", 10)
	v.SetDefault("CHECKOUT_RATE_WINDOW_SEC", 60)
	v.SetDefault("LOGIN_RATE_LIMIT", 5)
	v.SetDefault("LOGIN_RATE_WINDOW_SEC", 60)
	v.SetDefault("CHECKOUT_CLAIM_TTL_HOUR", 24)
	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "catalog-orders")
	v.SetDefault("KAFKA_GROUP_ID", "catalog-order-notifier")
	v.SetDefault("ORDER_EVENT_STREAM", "catalog:order_events")
	v.SetDefault("ORDER_EVENT_GROUP", "catalog-relay-group")
	v.SetDefault("ORDER_EVENT_CONSUMER", "catalog-relay-1")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FILE", "logs/catalog.log")
}

// Load reads and validates the configuration, falling back to defaults.
func Load() (AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		ReadTimeout:        time.Duration(v.GetInt("HTTP_READ_TIMEOUT_SEC")) * time.Second,
		WriteTimeout:       time.Duration(v.GetInt("HTTP_WRITE_TIMEOUT_SEC")) * time.Second,
		DBPath:             v.GetString("DB_PATH"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisDB:            v.GetInt("REDIS_DB"),
		UploadDir:          v.GetString("UPLOAD_DIR"),
		MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_MB") << 20,
		WhatsAppNumber:     v.GetString("WHATSAPP_NUMBER"),
		StoreName:          v.GetString("STORE_NAME"),
		SessionTTL:         time.Duration(v.GetInt("SESSION_TTL_HOUR")) * time.Hour,
		CheckoutRateLimit:  v.GetInt("CHECKOUT_RATE_LIMIT"),
		CheckoutRateWindow: time.Duration(v.GetInt("CHECKOUT_RATE_WINDOW_SEC")) * time.Second,
		LoginRateLimit:     v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow:    time.Duration(v.GetInt("LOGIN_RATE_WINDOW_SEC")) * time.Second,
		CheckoutClaimTTL:   time.Duration(v.GetInt("CHECKOUT_CLAIM_TTL_HOUR")) * time.Hour,
		EventsEnabled:      v.GetBool("EVENTS_ENABLED"),
		KafkaBrokers:       splitCSV(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:         v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:       v.GetString("KAFKA_GROUP_ID"),
		OrderEventStream:   v.GetString("ORDER_EVENT_STREAM"),
		OrderEventGroup:    v.GetString("ORDER_EVENT_GROUP"),
		OrderEventConsumer: v.GetString("ORDER_EVENT_CONSUMER"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		LogOutput:          v.GetString("LOG_OUTPUT"),
		LogFile:            v.GetString("LOG_FILE"),
	}

	minimum, err := decimal.NewFromString(strings.TrimSpace(v.GetString("PEDIDO_MINIMO")))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PEDIDO_MINIMO: %w", err)
	}
	if minimum.IsNegative() {
		return AppConfig{}, fmt.Errorf("PEDIDO_MINIMO must be >= 0")
	}
	cfg.MinimumOrder = minimum

	users, err := parseAdminUsers(v.GetString("ADMIN_USERS"))
	if err != nil {
		return AppConfig{}, err
	}
	if len(users) == 0 {
		// Single-user fallback: hash the plain password once at startup.
		name := strings.TrimSpace(v.GetString("ADMIN_USERNAME"))
		pass := v.GetString("ADMIN_PASSWORD")
		if name == "" || pass == "" {
			return AppConfig{}, fmt.Errorf("ADMIN_USERS or ADMIN_USERNAME/ADMIN_PASSWORD must be set")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if err != nil {
			return AppConfig{}, fmt.Errorf("hash admin password: %w", err)
		}
		users = map[string]string{name: string(hash)}
	}
	cfg.AdminUsers = users

	if cfg.DBPath == "" {
		return AppConfig{}, fmt.Errorf("DB_PATH must not be empty")
	}
	if cfg.UploadDir == "" {
		return AppConfig{}, fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return AppConfig{}, fmt.Errorf("MAX_UPLOAD_MB must be > 0")
	}
	if cfg.WhatsAppNumber == "" {
		return AppConfig{}, fmt.Errorf("WHATSAPP_NUMBER must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return AppConfig{}, fmt.Errorf("SESSION_TTL_HOUR must be > 0")
	}
	if cfg.CheckoutRateLimit <= 0 || cfg.CheckoutRateWindow <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_LIMIT and CHECKOUT_RATE_WINDOW_SEC must be > 0")
	}
	if cfg.LoginRateLimit <= 0 || cfg.LoginRateWindow <= 0 {
		return AppConfig{}, fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW_SEC must be > 0")
	}
	if cfg.CheckoutClaimTTL <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_CLAIM_TTL_HOUR must be > 0")
	}

	if cfg.EventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.OrderEventStream == "" || cfg.OrderEventGroup == "" || cfg.OrderEventConsumer == "" {
			return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM, ORDER_EVENT_GROUP and ORDER_EVENT_CONSUMER must not be empty")
		}
	}

	return cfg, nil
}

// parseAdminUsers reads "user:bcrypthash,user2:bcrypthash".
func parseAdminUsers(value string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitCSV(value) {
		name, hash, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		hash = strings.TrimSpace(hash)
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("invalid ADMIN_USERS entry %q, want user:bcrypthash", pair)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("ADMIN_USERS entry for %s is not a bcrypt hash: %w", name, err)
		}
		out[name] = hash
	}
	return out, nil
}

// splitCSV parses a comma separated list, dropping blanks.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
