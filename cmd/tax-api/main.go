package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/auth"
	"github.com/ayunierto/ascencio-tax-api/internal/availability"
	"github.com/ayunierto/ascencio-tax-api/internal/booking"
	"github.com/ayunierto/ascencio-tax-api/internal/calendar"
	"github.com/ayunierto/ascencio-tax-api/internal/calendar/googlecal"
	"github.com/ayunierto/ascencio-tax-api/internal/consumer"
	"github.com/ayunierto/ascencio-tax-api/internal/handlers"
	"github.com/ayunierto/ascencio-tax-api/internal/inbox"
	"github.com/ayunierto/ascencio-tax-api/internal/meetings"
	"github.com/ayunierto/ascencio-tax-api/internal/meetings/zoom"
	"github.com/ayunierto/ascencio-tax-api/internal/notification"
	"github.com/ayunierto/ascencio-tax-api/internal/outbox"
	"github.com/ayunierto/ascencio-tax-api/internal/settings"
	"github.com/ayunierto/ascencio-tax-api/internal/storage"
	libauth "github.com/ayunierto/ascencio-tax-api/libs/auth"
	"github.com/ayunierto/ascencio-tax-api/libs/config"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
	"github.com/ayunierto/ascencio-tax-api/libs/httpx"
	"github.com/ayunierto/ascencio-tax-api/libs/kafkax"
	otelx "github.com/ayunierto/ascencio-tax-api/libs/otel"
	"github.com/ayunierto/ascencio-tax-api/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func main() {
	service := config.String("SERVICE_NAME", "tax-api")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	appointmentsRepo := storage.NewAppointmentsRepository(pool)
	schedulesRepo := storage.NewSchedulesRepository(pool)
	servicesRepo := storage.NewServicesRepository(pool)
	staffRepo := storage.NewStaffRepository(pool)
	calendarEventsRepo := storage.NewCalendarEventsRepository(pool)
	settingsRepo := storage.NewSettingsRepository(pool)
	usersRepo := storage.NewUsersRepository(pool)
	accountingRepo := storage.NewAccountingRepository(pool)

	settingsProvider := settings.NewProvider(settingsRepo, logger)

	var calProvider calendar.Provider = calendar.NewDisabledProvider()
	if calendarID := config.String("GOOGLE_CALENDAR_ID", ""); calendarID != "" {
		calProvider = googlecal.NewClient(
			calendarID,
			config.String("GOOGLE_CLIENT_ID", ""),
			config.String("GOOGLE_CLIENT_SECRET", ""),
			config.String("GOOGLE_REFRESH_TOKEN", ""),
		)
		logger.Info("google calendar sync enabled", "calendar_id", calendarID)
	} else {
		logger.Warn("google calendar sync disabled; calendar mirror only")
	}
	calendarService := calendar.NewService(calendarEventsRepo, calProvider, logger)

	var meetingsGateway meetings.Gateway = meetings.NewDisabled()
	if accountID := config.String("ZOOM_ACCOUNT_ID", ""); accountID != "" {
		meetingsGateway = zoom.NewClient(
			accountID,
			config.String("ZOOM_CLIENT_ID", ""),
			config.String("ZOOM_CLIENT_SECRET", ""),
			config.String("ZOOM_HOST_EMAIL", ""),
		)
		logger.Info("zoom meetings enabled")
	} else {
		logger.Warn("zoom meetings disabled; appointments get placeholder links")
	}

	outboxRepo := outbox.NewRepository(pool)
	notifier := notification.NewOutboxNotifier(outboxRepo, pool)

	engine := availability.NewEngine(
		servicesRepo,
		staffRepo,
		schedulesRepo,
		appointmentsRepo,
		calendarService,
		settingsProvider,
		nil,
		logger,
	)
	bookingService := booking.NewService(
		appointmentsRepo,
		schedulesRepo,
		servicesRepo,
		staffRepo,
		usersRepo,
		calendarService,
		meetingsGateway,
		notifier,
		settingsProvider,
		nil,
		logger,
	)

	tokenTTL := 24 * time.Hour
	if v, err := strconv.Atoi(config.String("TOKEN_TTL_HOURS", "24")); err == nil && v > 0 {
		tokenTTL = time.Duration(v) * time.Hour
	}
	authService := auth.NewService(usersRepo, notifier, jwtSecret, tokenTTL, logger)
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		authService.UseJWKS(libauth.NewJWKSClient(jwksURL, 10*time.Minute))
		logger.Info("external identity provider tokens enabled", "jwks_url", jwksURL)
	}

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	var sender notification.Sender = notification.NewNoopSender()
	if smtpHost := config.String("SMTP_HOST", ""); smtpHost != "" {
		sender = notification.NewSMTPSender(smtpHost, config.String("SMTP_PORT", "1025"), config.String("SMTP_FROM", ""))
		logger.Info("email notifications enabled", "smtp_host", smtpHost)
	} else {
		logger.Warn("smtp not configured; notifications are logged only")
	}

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(kafkaBrokers) == "" {
			return
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: config.String("KAFKA_GROUP_ID", "tax-api"),
			Topic:   topic,
		}, handler)
		go eventConsumer.Run(ctx)
	}
	startConsumer(outbox.TopicAppointmentConfirmed, notification.AppointmentConfirmedHandler(sender, logger))
	startConsumer(outbox.TopicAppointmentCancelled, notification.AppointmentCancelledHandler(sender, logger))
	startConsumer(outbox.TopicUserCreated, notification.UserCreatedHandler(sender, logger))

	bookingHandler := handlers.NewBookingHandler(bookingService, engine, logger)
	authHandler := handlers.NewAuthHandler(authService, logger)
	adminHandler := handlers.NewAdminHandler(schedulesRepo, servicesRepo, staffRepo, appointmentsRepo, settingsRepo, settingsProvider, logger)
	accountingHandler := handlers.NewAccountingHandler(accountingRepo, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}

	limitPerMinute := 120
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "120")); err == nil && v > 0 {
		limitPerMinute = v
	}
	var rateLimitMW httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	mux.HandleFunc("/api/v1/appointments/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/appointments", handlers.RequireAuth(authService, bookingHandler.Appointments))
	mux.HandleFunc("/api/v1/appointments/{id}", handlers.RequireAuth(authService, bookingHandler.Appointment))

	mux.HandleFunc("/api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("/api/v1/auth/me", handlers.RequireAuth(authService, authHandler.Me))

	mux.HandleFunc("/api/v1/admin/appointments", handlers.RequireAdmin(authService, adminHandler.Appointments))
	mux.HandleFunc("/api/v1/admin/schedules", handlers.RequireAdmin(authService, adminHandler.Schedules))
	mux.HandleFunc("/api/v1/admin/schedules/{id}", handlers.RequireAdmin(authService, adminHandler.Schedule))
	mux.HandleFunc("/api/v1/admin/services", handlers.RequireAdmin(authService, adminHandler.Services))
	mux.HandleFunc("/api/v1/admin/services/{id}", handlers.RequireAdmin(authService, adminHandler.Service))
	mux.HandleFunc("/api/v1/admin/staff", handlers.RequireAdmin(authService, adminHandler.Staff))
	mux.HandleFunc("/api/v1/admin/staff/{id}", handlers.RequireAdmin(authService, adminHandler.StaffMember))
	mux.HandleFunc("/api/v1/admin/settings", handlers.RequireAdmin(authService, adminHandler.Settings))
	mux.HandleFunc("/api/v1/admin/settings/{key}", handlers.RequireAdmin(authService, adminHandler.Setting))

	mux.HandleFunc("/api/v1/accounting/categories", handlers.RequireAuth(authService, accountingHandler.Categories))
	mux.HandleFunc("/api/v1/accounting/expenses", handlers.RequireAuth(authService, accountingHandler.Expenses))
	mux.HandleFunc("/api/v1/accounting/expenses/{id}", handlers.RequireAuth(authService, accountingHandler.Expense))
	mux.HandleFunc("/api/v1/accounting/report", handlers.RequireAuth(authService, accountingHandler.Report))

	var corsOrigins []string
	if raw := config.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		corsOrigins = strings.Split(raw, ",")
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		rateLimitMW,
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
