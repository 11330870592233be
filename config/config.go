package config

import (
	"github.com/jinzhu/configor"
)

type Config struct {
	AppConfig  AppConfig  `env:"APPCONFIG"`
	DBConfig   DBConfig   `env:"DBCONFIG"`
	AuthConfig AuthConfig `env:"AUTHCONFIG"`
}

type AppConfig struct {
	APPName     string `default:"gamesync"`
	Port        int    `default:"9090" env:"APP_PORT"`
	AllowOrigin string `default:"*" env:"ALLOW_ORIGIN"`
	LogLevel    string `default:"info" env:"LOG_LEVEL"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
}

type DBConfig struct {
	// URL selects the store: sqlite://<path> or postgresql://...
	URL           string `default:"sqlite://gamesync.db" env:"DATABASE_URL"`
	MigrationsDir string `default:"./migrations" env:"MIGRATIONS_DIR"`
}

type AuthConfig struct {
	// Provider selects the identity platform: telegram or firebase
	Provider          string `default:"telegram" env:"AUTH_PROVIDER"`
	TelegramBotToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramMaxAge    int    `default:"0" env:"TELEGRAM_MAX_AGE_MINUTES"`
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	FirebaseAPIKey    string `env:"FIREBASE_API_KEY"`
}

func LoadConfigOrPanic() Config {
	var config = Config{}
	configor.Load(&config, "config/config.dev.json")

	return config
}
