// Package config предоставялет структуры и функции для парсинга и загрузки конфига.
//
// Конфиг читается из YAML-файла, путь к которому задаётся переменной окружения CONFIG_PATH.
// Секреты (ключи подписи, ключи Stripe, пароль SMTP) переопределяются переменными окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env            string `yaml:"env" env:"APP_ENV" env-default:"local"`
	PublicURL      string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	MigrationsPath string `yaml:"migrations_path" env-default:"./migrations"`

	HTTPServer      `yaml:"http_server"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	RabbitMQ        `yaml:"rabbitmq"`
	Session         `yaml:"session"`
	Guard           `yaml:"guard"`
	Billing         `yaml:"billing"`
	Uploads         `yaml:"uploads"`
	SMTP            `yaml:"smtp"`
	BootstrapAdmin  `yaml:"bootstrap_admin"`
	RateLimit       `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Storage структура для настройки хранилища.
//
// Driver "memory" поднимает хранилище в памяти процесса, удобно для локального запуска.
type Storage struct {
	Driver           string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	ConnectionString string `yaml:"connection_string" env:"DATABASE_URL"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кэш сессий.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ структура для подключения к брокеру уведомлений.
// Пустой URL отключает публикацию событий.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Session структура для работы с токеном сессии
type Session struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
	Issuer       string        `yaml:"issuer" env-default:"designhub"`
	CookieName   string        `yaml:"cookie_name" env-default:"session_token"`
	CookieSecure bool          `yaml:"cookie_secure" env:"COOKIE_SECURE"`
	SnapshotTTL  time.Duration `yaml:"snapshot_ttl" env-default:"0s"`
}

// Guard описывает пути, которые обслуживает route guard.
type Guard struct {
	SignInPath        string   `yaml:"signin_path" env-default:"/signin"`
	SignUpPath        string   `yaml:"signup_path" env-default:"/signup"`
	DashboardPath     string   `yaml:"dashboard_path" env-default:"/dashboard"`
	BillingPath       string   `yaml:"billing_path" env-default:"/dashboard/billing"`
	CheckoutPath      string   `yaml:"checkout_path" env-default:"/checkout"`
	SubscriptionGated []string `yaml:"subscription_gated" env-default:"/dashboard/requests/new"`
}

// Billing настройки Stripe.
type Billing struct {
	StripeSecretKey     string            `yaml:"stripe_secret_key" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string            `yaml:"stripe_webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	PriceIDs            map[string]string `yaml:"price_ids"`
	SuccessPath         string            `yaml:"success_path" env-default:"/dashboard?checkout=success"`
	CancelPath          string            `yaml:"cancel_path" env-default:"/dashboard/billing?checkout=cancelled"`
	PortalReturnPath    string            `yaml:"portal_return_path" env-default:"/dashboard/billing"`
}

// Uploads настройки колбэка провайдера загрузки файлов.
type Uploads struct {
	CallbackSecret string `yaml:"callback_secret" env:"UPLOAD_CALLBACK_SECRET"`
}

// SMTP настройки почтового релея.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPFrom string `yaml:"from" env:"SMTP_FROM"`
	// SMTPInsecure разрешает релей без STARTTLS (MailHog, Mailpit).
	SMTPInsecure bool `yaml:"insecure" env:"SMTP_INSECURE"`
}

// BootstrapAdmin учётная запись администратора, создаваемая при первом старте.
type BootstrapAdmin struct {
	AdminEmail    string `yaml:"email" env:"ADMIN_EMAIL"`
	AdminPassword string `yaml:"password" env:"ADMIN_PASSWORD"`
	AdminName     string `yaml:"name" env-default:"Administrator"`
}

// RateLimit ограничение частоты запросов к эндпоинтам аутентификации (на один IP).
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// ErrConfigPathNotSet возвращается, если переменная CONFIG_PATH пустая.
var ErrConfigPathNotSet = errors.New("CONFIG_PATH is not set")

// MustLoad функция для загрузки конфига, завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal(ErrConfigPathNotSet)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и проверяет обязательные поля.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecretKey == "" {
		return errors.New("session signing secret is empty")
	}
	if c.Storage.Driver != "memory" && c.Storage.ConnectionString == "" {
		return errors.New("storage connection string is empty")
	}
	return nil
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"PublicURL: %s\n"+
			"Storage: %s\n"+
			"Redis: %s (db %d)\n"+
			"RabbitMQ enabled: %t\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Session:\n"+
			"  TokenTTL: %s\n"+
			"  SnapshotTTL: %s\n"+
			"Billing enabled: %t\n",
		c.Env,
		c.PublicURL,
		c.Storage.Driver,
		c.AddressRedis,
		c.DB,
		c.RabbitMQURL != "",
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.TokenTTL,
		c.SnapshotTTL,
		c.StripeSecretKey != "",
	)
}
