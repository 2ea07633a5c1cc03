package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port int
	}
	DB struct {
		Host        string
		Port        int
		User        string
		Password    string
		DBName      string
		SSLMode     string
		Migrations  string // путь к SQL миграциям
		AutoMigrate bool
	}
	JWT struct {
		SecretKey string
		ExpiresIn int // в часах
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Log struct {
		Level string
		Dir   string
	}
	Rates struct {
		URL string
		TTL time.Duration
	}
	Reminder struct {
		Interval  time.Duration
		Recipient string
	}
	Admin struct {
		Email string
		Name  string
	}
}

// keys сопоставляет ключи viper с переменными окружения
var keys = map[string]string{
	"server.port":        "SERVER_PORT",
	"db.host":            "DB_HOST",
	"db.port":            "DB_PORT",
	"db.user":            "DB_USER",
	"db.password":        "DB_PASSWORD",
	"db.name":            "DB_NAME",
	"db.sslmode":         "DB_SSLMODE",
	"db.migrations":      "DB_MIGRATIONS",
	"db.auto_migrate":    "DB_AUTO_MIGRATE",
	"jwt.secret_key":     "JWT_SECRET_KEY",
	"jwt.expires_in":     "JWT_EXPIRES_IN",
	"smtp.host":          "SMTP_HOST",
	"smtp.port":          "SMTP_PORT",
	"smtp.username":      "SMTP_USERNAME",
	"smtp.password":      "SMTP_PASSWORD",
	"smtp.from":          "SMTP_FROM",
	"log.level":          "LOG_LEVEL",
	"log.dir":            "LOG_DIR",
	"rates.url":          "RATES_URL",
	"rates.ttl":          "RATES_TTL",
	"reminder.interval":  "REMINDER_INTERVAL",
	"reminder.recipient": "REMINDER_RECIPIENT",
	"admin.email":        "ADMIN_EMAIL",
	"admin.name":         "ADMIN_NAME",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "fabrika_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.migrations", "migrations")
	v.SetDefault("db.auto_migrate", false)

	v.SetDefault("jwt.secret_key", "your-secret-key-here")
	v.SetDefault("jwt.expires_in", 24)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@example.com")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")

	v.SetDefault("rates.url", "https://www.bnr.ro/nbrfxrates.xml")
	v.SetDefault("rates.ttl", "6h")

	v.SetDefault("reminder.interval", "8h")
	v.SetDefault("reminder.recipient", "")

	v.SetDefault("admin.email", "admin@example.com")
	v.SetDefault("admin.name", "Administrator")
}

// NewConfig создает новый экземпляр конфигурации из значений по умолчанию,
// файла CONFIG_FILE (если задан) и переменных окружения
func NewConfig() (*Config, error) {
	return Load(viper.New())
}

// Load читает конфигурацию через переданный экземпляр viper
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("ошибка привязки переменной %s: %w", env, err)
		}
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, err
	}
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	cfg := &Config{}

	// Настройки сервера
	cfg.Server.Port = v.GetInt("server.port")
	if cfg.Server.Port <= 0 {
		return nil, fmt.Errorf("неверный формат порта сервера: %q", v.GetString("server.port"))
	}

	// Настройки базы данных
	cfg.DB.Host = v.GetString("db.host")
	cfg.DB.Port = v.GetInt("db.port")
	if cfg.DB.Port <= 0 {
		return nil, fmt.Errorf("неверный формат порта базы данных: %q", v.GetString("db.port"))
	}
	cfg.DB.User = v.GetString("db.user")
	cfg.DB.Password = v.GetString("db.password")
	cfg.DB.DBName = v.GetString("db.name")
	cfg.DB.SSLMode = v.GetString("db.sslmode")
	cfg.DB.Migrations = v.GetString("db.migrations")
	cfg.DB.AutoMigrate = v.GetBool("db.auto_migrate")

	// Настройки JWT
	cfg.JWT.SecretKey = v.GetString("jwt.secret_key")
	cfg.JWT.ExpiresIn = v.GetInt("jwt.expires_in")
	if cfg.JWT.ExpiresIn <= 0 {
		return nil, fmt.Errorf("неверный формат времени жизни JWT: %q", v.GetString("jwt.expires_in"))
	}

	// Настройки SMTP
	cfg.SMTP.Host = v.GetString("smtp.host")
	cfg.SMTP.Port = v.GetInt("smtp.port")
	cfg.SMTP.Username = v.GetString("smtp.username")
	cfg.SMTP.Password = v.GetString("smtp.password")
	cfg.SMTP.From = v.GetString("smtp.from")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Dir = v.GetString("log.dir")

	// Курсы валют
	cfg.Rates.URL = v.GetString("rates.url")
	cfg.Rates.TTL = v.GetDuration("rates.ttl")

	// Напоминания о просроченных платежах
	cfg.Reminder.Interval = v.GetDuration("reminder.interval")
	if cfg.Reminder.Interval <= 0 {
		return nil, fmt.Errorf("неверный интервал напоминаний: %q", v.GetString("reminder.interval"))
	}
	cfg.Reminder.Recipient = v.GetString("reminder.recipient")

	cfg.Admin.Email = v.GetString("admin.email")
	cfg.Admin.Name = v.GetString("admin.name")

	return cfg, nil
}

// DSN возвращает строку подключения к PostgreSQL для gorm
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// MigrateURL возвращает строку подключения для golang-migrate
func (c *Config) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName, c.DB.SSLMode)
}
