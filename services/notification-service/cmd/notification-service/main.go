package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/autodiag-garage/platform/libs/config"
	"github.com/autodiag-garage/platform/libs/db"
	"github.com/autodiag-garage/platform/libs/httpx"
	"github.com/autodiag-garage/platform/libs/kafkax"
	otelx "github.com/autodiag-garage/platform/libs/otel"
	"github.com/autodiag-garage/platform/libs/runtime"
	"github.com/autodiag-garage/platform/services/notification-service/internal/consumer"
	"github.com/autodiag-garage/platform/services/notification-service/internal/email"
	"github.com/autodiag-garage/platform/services/notification-service/internal/inbox"
	"github.com/autodiag-garage/platform/services/notification-service/internal/message"
	"github.com/autodiag-garage/platform/services/notification-service/internal/outbox"
	"github.com/autodiag-garage/platform/services/notification-service/internal/sms"
	"github.com/autodiag-garage/platform/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type appointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	Reference     string `json:"reference"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

func writeOutboxSent(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, payload appointmentPayload, channel, providerID string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if strings.TrimSpace(providerID) == "" {
		providerID = "unknown"
	}
	eventPayload, err := json.Marshal(map[string]any{
		"appointment_id": payload.AppointmentID,
		"reference":      payload.Reference,
		"channel":        channel,
		"provider_id":    providerID,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.AppointmentID,
		EventType:     "notification.sent.v1",
		Payload:       eventPayload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func writeOutboxFailed(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, payload appointmentPayload, channel, reason string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventPayload, err := json.Marshal(map[string]any{
		"appointment_id": payload.AppointmentID,
		"reference":      payload.Reference,
		"channel":        channel,
		"error_reason":   reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.AppointmentID,
		EventType:     "notification.failed.v1",
		Payload:       eventPayload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@autodiag.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)
	emailProviderID := "smtp"

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	smsWebhookURL := config.String("SMS_WEBHOOK_URL", "")
	smsWebhookToken := config.String("SMS_WEBHOOK_TOKEN", "")
	var smsSender sms.Sender
	switch smsProvider {
	case "webhook":
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	case "noop":
		smsSender = sms.NewNoopSender()
	default:
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	}
	smsEnabled := config.String("SMS_ENABLED", "false") == "true"

	handleTopic := func(eventType string, compose func(message.Appointment) message.Message) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			var payload appointmentPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid appointment payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.AppointmentID == "" || payload.Reference == "" {
				logger.Error("missing appointment fields", "topic", msg.Topic)
				return nil
			}
			start, err := time.Parse(time.RFC3339, payload.StartTime)
			if err != nil {
				logger.Error("invalid start_time", "err", err)
				return nil
			}
			end, err := time.Parse(time.RFC3339, payload.EndTime)
			if err != nil {
				end = start.Add(time.Hour)
			}

			m := compose(message.Appointment{
				Reference:    payload.Reference,
				CustomerName: payload.CustomerName,
				StartTime:    start,
				EndTime:      end,
			})

			templateData := map[string]any{
				"reference":  payload.Reference,
				"start_time": payload.StartTime,
				"end_time":   payload.EndTime,
				"status":     payload.Status,
			}

			if payload.CustomerEmail != "" {
				status := "sent"
				failureReason := ""
				if err := emailSender.Send(payload.CustomerEmail, m.Subject, m.Body); err != nil {
					status = "failed"
					failureReason = err.Error()
					logger.Error("email send failed", "err", err, "recipient", payload.CustomerEmail)
				}
				if err := notificationsRepo.Insert(ctx, storage.Notification{
					AppointmentID: payload.AppointmentID,
					Reference:     payload.Reference,
					EventType:     eventType,
					Channel:       "email",
					Recipient:     payload.CustomerEmail,
					Payload:       templateData,
					Status:        status,
				}); err != nil {
					logger.Error("failed to persist notification", "err", err)
					return err
				}
				if status == "failed" {
					if err := writeOutboxFailed(ctx, pool, outboxRepo, payload, "email", failureReason); err != nil {
						return err
					}
				} else if err := writeOutboxSent(ctx, pool, outboxRepo, payload, "email", emailProviderID); err != nil {
					return err
				}
			}

			if smsEnabled && payload.CustomerPhone != "" {
				status := "sent"
				failureReason := ""
				if err := smsSender.Send(ctx, payload.CustomerPhone, message.SMS(m)); err != nil {
					status = "failed"
					failureReason = err.Error()
					logger.Error("sms send failed", "err", err, "recipient", payload.CustomerPhone)
				}
				if err := notificationsRepo.Insert(ctx, storage.Notification{
					AppointmentID: payload.AppointmentID,
					Reference:     payload.Reference,
					EventType:     eventType,
					Channel:       "sms",
					Recipient:     payload.CustomerPhone,
					Payload:       templateData,
					Status:        status,
				}); err != nil {
					logger.Error("failed to persist notification", "err", err)
					return err
				}
				if status == "failed" {
					if err := writeOutboxFailed(ctx, pool, outboxRepo, payload, "sms", failureReason); err != nil {
						return err
					}
				} else if err := writeOutboxSent(ctx, pool, outboxRepo, payload, "sms", smsSender.ProviderID()); err != nil {
					return err
				}
			}

			logger.Info("appointment event processed", "appointment_id", payload.AppointmentID, "event_type", eventType)
			return nil
		}
	}

	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		consumerCfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, handler)
		go eventConsumer.Run(ctx)
	}

	startConsumer(config.String("KAFKA_REQUESTED_TOPIC", "booking.appointment.requested.v1"),
		handleTopic("booking.appointment.requested.v1", message.Requested))
	startConsumer(config.String("KAFKA_CONFIRMED_TOPIC", "booking.appointment.confirmed.v1"),
		handleTopic("booking.appointment.confirmed.v1", message.Confirmed))
	startConsumer(config.String("KAFKA_CANCELLED_TOPIC", "booking.appointment.cancelled.v1"),
		handleTopic("booking.appointment.cancelled.v1", message.Cancelled))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
