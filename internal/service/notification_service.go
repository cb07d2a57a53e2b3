package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/config"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/observability"
)

const webhookTimeout = 5 * time.Second

// NotificationService reacts to session and task events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSessionAuthenticated, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventSessionEnded, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventLoginFailed, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventTaskOverdue, n.handleTaskOverdue)
}

func (n *NotificationService) handleSessionEvent(ctx context.Context, event events.Event) error {
	n.metrics.RecordSessionEvent(string(event.Type))
	n.logger.Info(string(event.Type), zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTaskOverdue(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskOverdue", zap.String("task_id", event.SubjectID), zap.Any("payload", event.Payload))
	return n.sendWebhook(ctx, event)
}

// sendWebhook posts the event as JSON to the configured webhook. Any non-2xx
// answer is an error.
func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := webhookTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(url)
	agent.JSON(event)
	agent.Timeout(timeout)

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		n.logger.Warn("webhook delivery failed", zap.String("event_type", string(event.Type)), zap.Errors("errors", errs))
		return fmt.Errorf("webhook %s: %w", event.Type, errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		n.logger.Warn("webhook rejected", zap.String("event_type", string(event.Type)), zap.Int("status", code))
		return fmt.Errorf("webhook %s: status %d", event.Type, code)
	}
	n.logger.Debug("webhook delivered", zap.String("event_type", string(event.Type)), zap.String("subject_id", event.SubjectID))
	return nil
}
