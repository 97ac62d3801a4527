package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onboarding/internal/config"
	"onboarding/internal/events"
	"onboarding/internal/flow"
	"onboarding/internal/limiter"
	"onboarding/internal/notify"
	"onboarding/internal/observability/logging"
	"onboarding/internal/observability/metrics"
	"onboarding/internal/service"
	impl "onboarding/internal/service/impl"
	"onboarding/internal/session"
	"onboarding/internal/store"
	httpx "onboarding/internal/transport/http"
	"onboarding/pkg/db"

	"github.com/redis/go-redis/v9"
)

const serviceName = "onboarding"

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister(serviceName)

	logger.Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) Postgres
	gdb, err := db.OpenGorm(ctx, db.Config{
		DSN:             cfg.DatabaseURL,
		LogSQL:          cfg.DBLogSQL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(ctx); err != nil {
		logger.Error("automigrate", "error", err)
		os.Exit(1)
	}

	// 2) Redis for sessions and resend throttling
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Error("redis ping", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	// 3) Outbound: mail and events
	var notifier service.Notifier
	if cfg.MailServer != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.MailServer,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailDefaultSender,
			UseSSL:   cfg.MailUseSSL,
			AppName:  cfg.AppName,
		})
	} else {
		logger.Warn("MAIL_SERVER not set, OTP codes will be logged")
		notifier = &notify.LogNotifier{AppName: cfg.AppName, Logger: logger}
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewSyncProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Error("kafka producer", "brokers", cfg.KafkaBrokers, "error", err)
			os.Exit(1)
		}
		kp := events.NewKafkaPublisher(producer, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	// 4) Services
	pw := impl.NewPasswordServiceArgon2id()
	otp := impl.NewOTPServiceImpl(st, notifier, publisher, cfg.OTPExpiry)
	auth := impl.NewAuthServiceImpl(st, pw, otp, publisher)

	resends := limiter.NewResend(rdb, limiter.Config{
		Cooldown:    cfg.OTPResendCooldown,
		Window:      cfg.OTPResendWindow,
		MaxInWindow: cfg.OTPResendMax,
	})

	codec, err := session.NewCookieCodec(session.CookieConfig{
		Name:     cfg.SessionCookieName,
		Secret:   []byte(cfg.SessionSecret),
		Issuer:   serviceName,
		Secure:   cfg.SessionCookieSecure,
		Lifetime: cfg.SessionLifetime,
	})
	if err != nil {
		logger.Error("session cookie", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(session.NewRedisStore(rdb, session.DefaultPrefix, cfg.SessionLifetime), codec)

	// 5) HTTP
	ctrl := flow.New(auth, otp, resends, logger)
	router := httpx.NewRouter(httpx.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimit:      cfg.AuthRateLimit,
		RequestTimeout: cfg.RequestTimeout,
	}, httpx.NewHandler(ctrl, sessions))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	slog.Info("onboarding service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
