// Package main is the entry point for the SMTP-to-Telegram gateway.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smtp2tg/smtp2tg/internal/bridge"
	"github.com/smtp2tg/smtp2tg/internal/config"
	"github.com/smtp2tg/smtp2tg/internal/provider"
	"github.com/smtp2tg/smtp2tg/internal/provider/stdout"
	"github.com/smtp2tg/smtp2tg/internal/smtp"
	"github.com/smtp2tg/smtp2tg/internal/telegram"
	smtptls "github.com/smtp2tg/smtp2tg/internal/tls"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	// Load or generate TLS certificates
	tlsConfig, err := smtptls.LoadOrGenerateTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.SMTP.Hostname)
	if err != nil {
		slog.Error("failed to setup TLS", "error", err)
		os.Exit(1)
	}

	tlsMode := "self-signed"
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		tlsMode = "file"
	}

	// Select the delivery provider
	prov, policy := selectProvider(cfg)

	maxSize, err := cfg.MaxMessageBytes()
	if err != nil {
		slog.Error("invalid message size limit", "error", err)
		os.Exit(1)
	}

	// Create SMTP server
	server := smtp.New(smtp.ServerConfig{
		ListenAddr:     cfg.SMTP.Listen,
		Hostname:       cfg.SMTP.Hostname,
		Provider:       prov,
		Policy:         policy,
		MaxMessageSize: maxSize,
		TLSConfig:      tlsConfig,
		AuthUsername:   cfg.SMTP.Username,
		AuthPassword:   cfg.SMTP.Password,
	})

	slog.Info("starting smtp2tg",
		"listen", cfg.SMTP.Listen,
		"provider", prov.Name(),
		"default_chat", cfg.Bridge.Default,
		"unknown_policy", cfg.Bridge.Unknown,
		"auth_enabled", cfg.SMTP.Username != "" && cfg.SMTP.Password != "",
		"tls_mode", tlsMode,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	// Start the server (blocks until context is cancelled)
	if err := server.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("smtp2tg stopped")
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectProvider builds the delivery backend: the Telegram bridge when a bot
// token is configured, the stdout dry-run provider otherwise. The recipient
// policy comes from the bridge; the dry-run provider accepts everything.
func selectProvider(cfg *config.Config) (provider.Provider, smtp.RecipientPolicy) {
	if cfg.DryRun() {
		slog.Info("no bot token configured, using stdout provider")
		return stdout.New(), nil
	}

	client := telegram.NewClient(telegram.ClientConfig{
		Token:     cfg.Telegram.BotToken,
		APIPrefix: cfg.Telegram.APIPrefix,
		Timeout:   time.Duration(cfg.Telegram.TimeoutSeconds * float64(time.Second)),
	})

	b := bridge.New(client, bridge.Config{
		DefaultChat: cfg.Bridge.Default,
		Recipients:  cfg.Bridge.Recipients,
		Domains:     cfg.Bridge.Domains,
		Fields:      cfg.Bridge.Fields,
		Policy:      bridge.Policy(cfg.Bridge.Unknown),
	})
	return b, b
}
