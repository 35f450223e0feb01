// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	RabbitURL               string `yaml:"rabbit_url" env:"RABBIT_URL"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Billing                 `yaml:"billing"`
	Quota                   `yaml:"quota"`
	Completion              `yaml:"completion"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"0.0.0.0:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Billing настройки биллинг-провайдера: ключ API, секрет подписи вебхуков,
// идентификатор тарифа Pro и адрес возврата из портала управления подпиской.
type Billing struct {
	APIURL          string `yaml:"api_url" env:"BILLING_API_URL" env-default:"https://api.billing.example.com/v1"`
	SecretKey       string `yaml:"secret_key" env:"BILLING_SECRET_KEY"`
	WebhookSecret   string `yaml:"webhook_secret" env:"BILLING_WEBHOOK_SECRET"`
	ProPriceRef     string `yaml:"pro_price_ref" env:"BILLING_PRO_PRICE_REF"`
	PortalReturnURL string `yaml:"portal_return_url" env-default:"https://myassistanthub.com"`
}

// Quota месячные лимиты запросов по тарифам.
type Quota struct {
	FreeLimit int `yaml:"free_limit" env:"QUOTA_FREE_LIMIT" env-default:"10"`
	ProLimit  int `yaml:"pro_limit" env:"QUOTA_PRO_LIMIT" env-default:"1000"`
}

// Completion настройки внешнего провайдера генерации текста.
type Completion struct {
	BaseURL string        `yaml:"base_url" env:"COMPLETION_BASE_URL"`
	APIKey  string        `yaml:"api_key" env:"COMPLETION_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
}

// RateLimit настройки лимитера запросов на клиента.
type RateLimit struct {
	RPS   float64       `yaml:"rps" env-default:"1"`
	Burst int           `yaml:"burst" env-default:"3"`
	TTL   time.Duration `yaml:"ttl" env-default:"10m"`
}

// MustLoad функция для загрузки конфига, возвращает конфиг, сгенерированный из config/config.yaml
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Quota:\n"+
			"  FreeLimit: %d\n"+
			"  ProLimit: %d\n"+
			"Billing:\n"+
			"  ProPriceRef: %s\n"+
			"  PortalReturnURL: %s\n",
		c.Env,
		c.StorageConnectionString,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.FreeLimit,
		c.ProLimit,
		c.ProPriceRef,
		c.PortalReturnURL,
	)
}
