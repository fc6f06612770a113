package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lifeline-ict/notify-engine/internal/domain"
	"github.com/lifeline-ict/notify-engine/internal/observability"
	"github.com/lifeline-ict/notify-engine/internal/provider"
	"github.com/lifeline-ict/notify-engine/internal/ratelimit"
	"github.com/lifeline-ict/notify-engine/internal/repository"
	"github.com/lifeline-ict/notify-engine/internal/templates"
	"go.uber.org/zap"
)

const (
	defaultRetryLimit = 100
	defaultSubject    = "LifeLine-ICT Notification"

	// genericSendFailure is recorded when a channel fails without detail.
	genericSendFailure = "Failed to send notification"
	// retryFailedMessage marks a failed retry that is still retry-eligible.
	retryFailedMessage = "Retry attempt failed"
	// maxRetriesMessage marks a terminal failure after retry exhaustion.
	maxRetriesMessage = "Max retries exceeded"
)

// SendRequest is the caller-facing shape of one notification.
type SendRequest struct {
	Channel      domain.Channel
	Recipient    string
	Subject      string
	Message      string
	TemplateName string
	ContextData  map[string]any
	Priority     domain.Priority
	MaxRetries   *int

	UserID              *string
	AlertID             *string
	MaintenanceTicketID *string
}

// StatsOverview is the read-side statistics shape.
type StatsOverview struct {
	Total     int64   `json:"total_notifications"`
	Pending   int64   `json:"pending_notifications"`
	Sent      int64   `json:"sent_notifications"`
	Failed    int64   `json:"failed_notifications"`
	Email     int64   `json:"email_notifications"`
	SMS       int64   `json:"sms_notifications"`
	RetryRate float64 `json:"retry_rate"`
}

// NotificationService orchestrates create, render, send and status-update
// for notifications, and owns the bounded retry policy. Delivery and render
// failures are absorbed into record state; only store failures propagate.
type NotificationService struct {
	records     repository.NotificationRepository
	channels    map[domain.Channel]provider.Channel
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewNotificationService(
	records repository.NotificationRepository,
	channels map[domain.Channel]provider.Channel,
	logger *zap.Logger,
) (*NotificationService, error) {
	if records == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one delivery channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		records:  records,
		channels: channels,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetRateLimiter enables per-channel send throttling. A nil limiter leaves
// dispatch unthrottled.
func (s *NotificationService) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if s == nil {
		return
	}
	s.rateLimiter = limiter
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *NotificationService) contextLogger(ctx context.Context) *zap.Logger {
	return observability.WithContextLogger(s.logger, ctx)
}

// Send validates the request, persists a PENDING record, attempts delivery
// once and records the outcome. The record is returned whatever the
// delivery outcome; only a store failure returns an error.
func (s *NotificationService) Send(ctx context.Context, req SendRequest) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	notification, err := prepareNotification(req)
	if err != nil {
		return nil, err
	}

	if err := s.records.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification record: %w", err)
	}

	return s.attemptAndRecord(ctx, notification, false)
}

// SendBulk fans Send out across the request list. Each entry is independent:
// an invalid request produces no record and does not abort the batch.
func (s *NotificationService) SendBulk(ctx context.Context, requests []SendRequest) ([]domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]domain.Notification, 0, len(requests))
	for i := range requests {
		notification, err := s.Send(ctx, requests[i])
		if err != nil {
			s.contextLogger(ctx).Warn("bulk send entry skipped",
				zap.String("recipient", requests[i].Recipient),
				zap.Error(err),
			)
			continue
		}
		results = append(results, *notification)
	}

	return results, nil
}

// RetryFailed re-attempts delivery for up to limit pending or retry-eligible
// records. The retry count is incremented first, unconditionally; the
// terminal-failure decision compares the incremented count against the
// budget. Every processed candidate is included in the returned list.
func (s *NotificationService) RetryFailed(ctx context.Context, limit int) ([]domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultRetryLimit
	}

	candidates, err := s.records.GetPendingOrRetryable(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch retry candidates: %w", err)
	}

	processed := make([]domain.Notification, 0, len(candidates))
	for i := range candidates {
		candidate := candidates[i]

		updated, err := s.records.IncrementRetry(ctx, candidate.ID)
		if err != nil {
			s.contextLogger(ctx).Error("failed to increment retry count",
				zap.String("notificationId", candidate.ID),
				zap.Error(err),
			)
			continue
		}
		if s.metrics != nil {
			s.metrics.IncRetryAttempt(channelLabel(updated.Channel))
		}

		final, err := s.attemptAndRecord(ctx, updated, true)
		if err != nil {
			s.contextLogger(ctx).Error("failed to record retry outcome",
				zap.String("notificationId", candidate.ID),
				zap.Error(err),
			)
			processed = append(processed, *updated)
			continue
		}
		processed = append(processed, *final)
	}

	return processed, nil
}

// SendAlert fans an alert out across every (recipient, channel) pair using
// the fixed alert template at HIGH priority. Pair failures are independent.
func (s *NotificationService) SendAlert(
	ctx context.Context,
	alertData map[string]any,
	recipients []string,
	channels []domain.Channel,
) ([]domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]domain.Notification, 0, len(recipients)*len(channels))
	for _, recipient := range recipients {
		for _, channel := range channels {
			req := SendRequest{
				Channel:      channel,
				Recipient:    recipient,
				TemplateName: templates.AlertTemplateName,
				ContextData:  alertData,
				Priority:     domain.PriorityHigh,
				AlertID:      alertID(alertData),
			}
			if channel == domain.ChannelEmail {
				req.Subject = fmt.Sprintf("ALERT: %s", alertType(alertData))
			}

			notification, err := s.Send(ctx, req)
			if err != nil {
				s.contextLogger(ctx).Error("alert notification skipped",
					zap.String("recipient", recipient),
					zap.String("channel", channel.String()),
					zap.Error(err),
				)
				continue
			}
			results = append(results, *notification)
		}
	}

	return results, nil
}

// SendEmail is the convenience single-channel entry point for email.
func (s *NotificationService) SendEmail(ctx context.Context, req SendRequest) (*domain.Notification, error) {
	req.Channel = domain.ChannelEmail
	return s.Send(ctx, req)
}

// SendSMS is the convenience single-channel entry point for SMS.
func (s *NotificationService) SendSMS(ctx context.Context, req SendRequest) (*domain.Notification, error) {
	req.Channel = domain.ChannelSMS
	return s.Send(ctx, req)
}

// MarkDelivered confirms delivery for a record that was already sent. Only
// the SENT to DELIVERED transition is legal.
func (s *NotificationService) MarkDelivered(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	current, err := s.records.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if current.Status != domain.StatusSent {
		return nil, fmt.Errorf("%w: cannot mark %s notification as delivered", domain.ErrConflict, current.Status)
	}

	return s.records.MarkDelivered(ctx, current.ID)
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.records.GetByID(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	return s.records.List(ctx, params)
}

func (s *NotificationService) ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]domain.Notification, int64, error) {
	return s.records.ListByRecipient(ctx, recipient, limit, offset)
}

func (s *NotificationService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, int64, error) {
	return s.records.ListByUser(ctx, userID, limit, offset)
}

func (s *NotificationService) ListByAlert(ctx context.Context, alertID string) ([]domain.Notification, error) {
	return s.records.ListByAlert(ctx, alertID)
}

func (s *NotificationService) ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error) {
	return s.records.ListByTicket(ctx, ticketID)
}

// Stats reshapes the store aggregate into the overview surface. No caching;
// always reflects current store state.
func (s *NotificationService) Stats(ctx context.Context) (*StatsOverview, error) {
	stats, err := s.records.AggregateStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}

	return &StatsOverview{
		Total:     stats.Total,
		Pending:   stats.ByStatus[domain.StatusPending],
		Sent:      stats.ByStatus[domain.StatusSent],
		Failed:    stats.ByStatus[domain.StatusFailed],
		Email:     stats.ByChannel[domain.ChannelEmail],
		SMS:       stats.ByChannel[domain.ChannelSMS],
		RetryRate: stats.RetryRate,
	}, nil
}

// TestChannels probes external provider connectivity per channel.
func (s *NotificationService) TestChannels(ctx context.Context) map[string]bool {
	if ctx == nil {
		ctx = context.Background()
	}

	results := map[string]bool{
		"email_service": false,
		"sms_service":   false,
	}
	if ch, ok := s.channels[domain.ChannelEmail]; ok {
		results["email_service"] = ch.Probe(ctx)
	}
	if ch, ok := s.channels[domain.ChannelSMS]; ok {
		results["sms_service"] = ch.Probe(ctx)
	}

	return results
}

// attemptAndRecord performs one delivery attempt and records the outcome.
// retryPass selects the retry failure wording and the terminal-failure
// decision (incremented retry_count >= max_retries).
func (s *NotificationService) attemptAndRecord(ctx context.Context, n *domain.Notification, retryPass bool) (*domain.Notification, error) {
	deliverErr := s.deliver(ctx, n)

	if deliverErr == nil {
		updated, err := s.records.MarkSent(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to mark notification as sent: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncNotificationSent(channelLabel(n.Channel))
		}
		s.contextLogger(ctx).Info("notification sent",
			zap.String("notificationId", n.ID),
			zap.String("channel", n.Channel.String()),
			zap.Bool("retry", retryPass),
		)
		return updated, nil
	}

	errText := strings.TrimSpace(deliverErr.Error())
	if errText == "" {
		errText = genericSendFailure
	}

	terminal := false
	if retryPass {
		if n.RetryCount >= n.MaxRetries {
			errText = maxRetriesMessage
			terminal = true
		} else {
			errText = retryFailedMessage
		}
	}

	updated, err := s.records.MarkFailed(ctx, n.ID, errText)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification as failed: %w", err)
	}
	if s.metrics != nil {
		reason := "delivery_error"
		if terminal {
			reason = "retry_exhausted"
		}
		s.metrics.IncNotificationFailed(channelLabel(n.Channel), reason)
	}
	s.contextLogger(ctx).Warn("notification failed",
		zap.String("notificationId", n.ID),
		zap.String("channel", n.Channel.String()),
		zap.Bool("terminal", terminal),
		zap.Error(deliverErr),
	)

	return updated, nil
}

// deliver runs one synchronous channel attempt: rate-limit wait, template
// resolution when a template is set, then the outbound call. Every failure
// path returns an error for the caller to absorb into record state.
func (s *NotificationService) deliver(ctx context.Context, n *domain.Notification) error {
	channel, ok := s.channels[n.Channel]
	if !ok {
		return fmt.Errorf("no delivery channel registered for %s", n.Channel)
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, channelLabel(n.Channel)); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	subject := defaultSubject
	if n.Subject != nil && strings.TrimSpace(*n.Subject) != "" {
		subject = *n.Subject
	}

	sendStart := s.now()
	var err error
	if n.TemplateName != nil {
		data, decodeErr := decodeContextData(n.ContextData)
		if decodeErr != nil {
			return decodeErr
		}
		err = channel.SendTemplated(ctx, n.Recipient, subject, *n.TemplateName, data)
	} else {
		err = channel.Send(ctx, provider.Message{
			Recipient: n.Recipient,
			Subject:   subject,
			Body:      n.Message,
		})
	}
	if s.metrics != nil {
		s.metrics.ObserveSendDuration(channelLabel(n.Channel), s.now().Sub(sendStart))
	}

	return err
}

func prepareNotification(req SendRequest) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:                  uuid.NewString(),
		Channel:             req.Channel,
		Recipient:           strings.TrimSpace(req.Recipient),
		Subject:             normalizeOptionalString(&req.Subject),
		Message:             strings.TrimSpace(req.Message),
		Status:              domain.StatusPending,
		Priority:            req.Priority,
		RetryCount:          0,
		MaxRetries:          domain.DefaultMaxRetries,
		TemplateName:        normalizeOptionalString(&req.TemplateName),
		UserID:              normalizeOptionalString(req.UserID),
		AlertID:             normalizeOptionalString(req.AlertID),
		MaintenanceTicketID: normalizeOptionalString(req.MaintenanceTicketID),
	}

	if n.Priority == "" {
		n.Priority = domain.PriorityMedium
	}
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		n.MaxRetries = *req.MaxRetries
	}

	if req.ContextData != nil {
		encoded, err := json.Marshal(req.ContextData)
		if err != nil {
			return nil, fmt.Errorf("%w: context data is not serializable: %v", domain.ErrValidation, err)
		}
		value := string(encoded)
		n.ContextData = &value
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	return n, nil
}

func decodeContextData(raw *string) (map[string]any, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return map[string]any{}, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(*raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode context data: %w", err)
	}
	return data, nil
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func alertType(alertData map[string]any) string {
	if v, ok := alertData["type"]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return "System Alert"
}

func alertID(alertData map[string]any) *string {
	v, ok := alertData["alert_id"]
	if !ok || v == nil {
		return nil
	}
	value := strings.TrimSpace(fmt.Sprint(v))
	if value == "" {
		return nil
	}
	return &value
}

func channelLabel(channel domain.Channel) string {
	return strings.ToLower(channel.String())
}
