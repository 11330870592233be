package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flxgame/gamesync/config"
	"github.com/flxgame/gamesync/pkg/api"
	authproviders "github.com/flxgame/gamesync/pkg/auth/providers"
	"github.com/flxgame/gamesync/pkg/log"
	"github.com/flxgame/gamesync/pkg/repositories"
	"github.com/flxgame/gamesync/pkg/sequencer"
	"github.com/flxgame/gamesync/pkg/version"
)

func main() {
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg := config.LoadConfigOrPanic()

	level := cfg.AppConfig.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	parsedLogLevel, err := log.ParseLogLevel(level)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting %s server version %s", cfg.AppConfig.APPName, version.Get())
	ctx := context.Background()

	authProvider, err := newAuthProvider(ctx, cfg.AuthConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	repository, err := newRepository(ctx, cfg.DBConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(ctx)

	seq := sequencer.NewSequencer(sequencer.NewSequencerOptions{
		Repository: repository,
	})

	apiServerOpts := api.NewAPIServerOptions{
		Port:         cfg.AppConfig.Port,
		AllowOrigin:  cfg.AppConfig.AllowOrigin,
		AuthProvider: authProvider,
		Repository:   repository,
		Sequencer:    seq,
	}
	if cfg.AppConfig.TLSCertFile != "" && cfg.AppConfig.TLSKeyFile != "" {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: cfg.AppConfig.TLSCertFile,
			KeyFile:  cfg.AppConfig.TLSKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	if err := server.Stop(ctx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}

func newAuthProvider(ctx context.Context, cfg config.AuthConfig) (authproviders.AuthProvider, error) {
	switch cfg.Provider {
	case "telegram":
		if cfg.TelegramBotToken == "" {
			return nil, fmt.Errorf("telegram bot token must be set")
		}
		return authproviders.NewTelegramAuthProvider(authproviders.NewTelegramAuthProviderOptions{
			BotToken: cfg.TelegramBotToken,
			MaxAge:   time.Duration(cfg.TelegramMaxAge) * time.Minute,
		}), nil
	case "firebase":
		return authproviders.NewFirebaseAuthProvider(ctx, cfg.FirebaseProjectID, cfg.FirebaseAPIKey)
	default:
		return nil, fmt.Errorf("unknown auth provider %s", cfg.Provider)
	}
}

func newRepository(ctx context.Context, cfg config.DBConfig) (repositories.Repository, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		return repositories.NewSQLiteRepository(ctx, u.Host+u.Path, filepath.Join(cfg.MigrationsDir, "sqlite"))
	case "postgresql", "postgres":
		return repositories.NewPostgresRepository(ctx, u.String(), filepath.Join(cfg.MigrationsDir, "postgres"))
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
