package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/autodiag-garage/platform/libs/config"
	"github.com/autodiag-garage/platform/libs/db"
	"github.com/autodiag-garage/platform/libs/httpx"
	"github.com/autodiag-garage/platform/libs/kafkax"
	otelx "github.com/autodiag-garage/platform/libs/otel"
	"github.com/autodiag-garage/platform/libs/runtime"
	"github.com/autodiag-garage/platform/services/booking-service/internal/assignment"
	"github.com/autodiag-garage/platform/services/booking-service/internal/availability"
	"github.com/autodiag-garage/platform/services/booking-service/internal/consumer"
	"github.com/autodiag-garage/platform/services/booking-service/internal/directory"
	"github.com/autodiag-garage/platform/services/booking-service/internal/handlers"
	"github.com/autodiag-garage/platform/services/booking-service/internal/inbox"
	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
	"github.com/autodiag-garage/platform/services/booking-service/internal/outbox"
	"github.com/autodiag-garage/platform/services/booking-service/internal/policy"
	"github.com/autodiag-garage/platform/services/booking-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func parseMinutes(raw string, fallback int, logger *slog.Logger) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	mins, err := strconv.Atoi(raw)
	if err != nil || mins <= 0 {
		logger.Warn("invalid minutes value, using default", "value", raw, "default", fallback)
		return fallback
	}
	return mins
}

func parseHour(raw string, fallback time.Duration, logger *slog.Logger) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h < 0 || h > 24 {
		logger.Warn("invalid hour value, using default", "value", raw)
		return fallback
	}
	return time.Duration(h) * time.Hour
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("invalid timezone, using UTC", "err", err)
		loc = time.UTC
	}

	creationBuffer := policy.CreationBuffer(parseMinutes(config.String("CREATION_BUFFER_MINUTES", ""), 0, logger))
	assignmentWindow := policy.AssignmentWindow(parseMinutes(config.String("ASSIGNMENT_WINDOW_MINUTES", ""), 0, logger))
	workingWindow := availability.WorkingWindow{
		Open:  parseHour(config.String("WORKDAY_START_HOUR", ""), availability.DefaultWorkingWindow.Open, logger),
		Close: parseHour(config.String("WORKDAY_END_HOUR", ""), availability.DefaultWorkingWindow.Close, logger),
	}

	repo := storage.NewAppointmentRepository(pool)
	cache := storage.NewDirectoryCacheRepository(pool)
	workOrders := storage.NewWorkOrderRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	dirProvider, err := directory.NewProvider(config.String("DIRECTORY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("directory provider init failed; using cache only", "err", err)
		dirProvider = nil
	}

	resolver := assignment.NewResolver(repo, cache, assignmentWindow, assignment.FirstFit{}, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		consumerCfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, handler)
		go eventConsumer.Run(ctx)
	}

	// Directory catalog events keep the local cache current; availability and
	// assignment read only from the cache.
	startConsumer(config.String("KAFKA_SERVICE_TOPIC", "directory.service.upserted.v1"), func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			ServiceID       string  `json:"service_id"`
			Name            string  `json:"name"`
			Description     string  `json:"description"`
			DurationMinutes int     `json:"duration_minutes"`
			Price           float64 `json:"price"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.ServiceID == "" {
			logger.Error("missing service_id in event", "topic", msg.Topic)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := cache.UpsertServiceType(ctx, tx, model.ServiceType{
			ID:              payload.ServiceID,
			Name:            payload.Name,
			Description:     payload.Description,
			DurationMinutes: payload.DurationMinutes,
			Price:           payload.Price,
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})

	startConsumer(config.String("KAFKA_TECHNICIAN_TOPIC", "directory.technician.upserted.v1"), func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			TechnicianID string `json:"technician_id"`
			FirstName    string `json:"first_name"`
			LastName     string `json:"last_name"`
			Email        string `json:"email"`
			Phone        string `json:"phone"`
			Specialty    string `json:"specialty"`
			Available    bool   `json:"available"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.TechnicianID == "" {
			logger.Error("missing technician_id in event", "topic", msg.Topic)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := cache.UpsertTechnician(ctx, tx, model.Technician{
			ID:        payload.TechnicianID,
			FirstName: payload.FirstName,
			LastName:  payload.LastName,
			Email:     payload.Email,
			Phone:     payload.Phone,
			Specialty: payload.Specialty,
			Available: payload.Available,
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})

	bookingHandler := handlers.NewBookingHandler(repo, cache, dirProvider, resolver, outboxRepo, logger, handlers.Config{
		CreationBuffer: creationBuffer,
		WorkingWindow:  workingWindow,
		Location:       loc,
	})
	workOrderHandler := handlers.NewWorkOrderHandler(workOrders, repo, cache, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/detail", bookingHandler.Detail)
	mux.HandleFunc("/api/v1/appointments/assign", bookingHandler.Assign)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/workorders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			workOrderHandler.Create(w, r)
		case http.MethodGet:
			workOrderHandler.List(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/workorders/complete", workOrderHandler.Complete)
	mux.HandleFunc("/api/v1/workorders/report", workOrderHandler.Report)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
