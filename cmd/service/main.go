package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/2beens/contenthub/internal"
	"github.com/2beens/contenthub/internal/config"
	"github.com/2beens/contenthub/internal/logging"
	"github.com/2beens/contenthub/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "contenthub-service",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	jwtSecret := os.Getenv("CONTENTHUB_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatalln("jwt secret not set. use CONTENTHUB_JWT_SECRET")
	}

	postgresPassword := os.Getenv("CONTENTHUB_POSTGRES_PASS")
	if postgresPassword == "" {
		log.Errorf("postgres password not set. use CONTENTHUB_POSTGRES_PASS")
	}

	redisPassword := os.Getenv("CONTENTHUB_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use CONTENTHUB_REDIS_PASS")
	}

	smtpUser := os.Getenv("CONTENTHUB_SMTP_USER")
	smtpPassword := os.Getenv("CONTENTHUB_SMTP_APP_PASSWORD")
	if !cfg.MailDevLogOnly && (smtpUser == "" || smtpPassword == "") {
		log.Fatalln("smtp credentials not set. use CONTENTHUB_SMTP_USER and CONTENTHUB_SMTP_APP_PASSWORD")
	}

	otelServiceName := os.Getenv("OTEL_SERVICE_NAME")
	if otelServiceName == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             versionInfo,
			JWTSecret:               jwtSecret,
			PostgresPassword:        postgresPassword,
			RedisPassword:           redisPassword,
			SMTPUsername:            smtpUser,
			SMTPPassword:            smtpPassword,
			HoneycombTracingEnabled: honeycombEnabled,
			OtelServiceName:         otelServiceName,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(pkg.BytesToString(stdout)), nil
}
