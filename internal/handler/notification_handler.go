package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lifeline-ict/notify-engine/internal/domain"
	"github.com/lifeline-ict/notify-engine/internal/observability"
	"github.com/lifeline-ict/notify-engine/internal/repository"
	"github.com/lifeline-ict/notify-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationService interface {
	Send(ctx context.Context, req service.SendRequest) (*domain.Notification, error)
	SendBulk(ctx context.Context, reqs []service.SendRequest) ([]domain.Notification, error)
	SendEmail(ctx context.Context, req service.SendRequest) (*domain.Notification, error)
	SendSMS(ctx context.Context, req service.SendRequest) (*domain.Notification, error)
	SendAlert(ctx context.Context, alertData map[string]any, recipients []string, channels []domain.Channel) ([]domain.Notification, error)
	RetryFailed(ctx context.Context, limit int) ([]domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	MarkDelivered(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]domain.Notification, int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, int64, error)
	ListByAlert(ctx context.Context, alertID string) ([]domain.Notification, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error)
	Stats(ctx context.Context) (*service.StatsOverview, error)
	TestChannels(ctx context.Context) map[string]bool
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

// RegisterNotificationRoutes wires the notification API. Specific GET routes
// must register before "/:id" so fiber does not capture them as ids.
func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	router.Post("/notifications/send", h.SendNotification)
	router.Post("/notifications/send/bulk", h.SendBulk)
	router.Post("/notifications/email/send", h.SendEmail)
	router.Post("/notifications/sms/send", h.SendSMS)
	router.Post("/notifications/alert/send", h.SendAlert)
	router.Post("/notifications/retry", h.RetryFailed)
	router.Post("/notifications/test", h.TestServices)
	router.Get("/notifications/stats/overview", h.GetStats)
	router.Get("/notifications/recipient/:recipient", h.ListByRecipient)
	router.Get("/notifications/user/:userId", h.ListByUser)
	router.Get("/notifications/alert/:alertId", h.ListByAlert)
	router.Get("/notifications/maintenance-ticket/:ticketId", h.ListByTicket)
	router.Get("/notifications", h.ListNotifications)
	router.Get("/notifications/:id", h.GetNotification)
	router.Post("/notifications/:id/delivered", h.MarkDelivered)

	return nil
}

type sendNotificationRequest struct {
	NotificationType    string         `json:"notification_type"`
	Recipient           string         `json:"recipient"`
	Subject             string         `json:"subject,omitempty"`
	Message             string         `json:"message,omitempty"`
	TemplateName        string         `json:"template_name,omitempty"`
	ContextData         map[string]any `json:"context_data,omitempty"`
	Priority            string         `json:"priority,omitempty"`
	MaxRetries          *int           `json:"max_retries,omitempty"`
	UserID              *string        `json:"user_id,omitempty"`
	AlertID             *string        `json:"alert_id,omitempty"`
	MaintenanceTicketID *string        `json:"maintenance_ticket_id,omitempty"`
}

type sendBulkRequest struct {
	Notifications []sendNotificationRequest `json:"notifications"`
}

type sendAlertRequest struct {
	AlertData  map[string]any `json:"alert_data"`
	Recipients []string       `json:"recipients"`
	Channels   []string       `json:"channels"`
}

type notificationResponse struct {
	ID                  string     `json:"id"`
	NotificationType    string     `json:"notification_type"`
	Recipient           string     `json:"recipient"`
	Subject             *string    `json:"subject,omitempty"`
	Message             string     `json:"message"`
	Status              string     `json:"status"`
	Priority            string     `json:"priority"`
	RetryCount          int        `json:"retry_count"`
	MaxRetries          int        `json:"max_retries"`
	TemplateName        *string    `json:"template_name,omitempty"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	UserID              *string    `json:"user_id,omitempty"`
	AlertID             *string    `json:"alert_id,omitempty"`
	MaintenanceTicketID *string    `json:"maintenance_ticket_id,omitempty"`
	SentAt              *time.Time `json:"sent_at,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	FailedAt            *time.Time `json:"failed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

type correlatedListResponse struct {
	Data  []notificationResponse `json:"data"`
	Total int64                  `json:"total"`
}

func (h *NotificationHandler) SendNotification(c *fiber.Ctx) error {
	var req sendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sendReq, err := requestToSendRequest(req, true)
	if err != nil {
		return toHTTPError(err)
	}

	notification, err := h.service.Send(requestContext(c), sendReq)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) SendBulk(c *fiber.Ctx) error {
	var req sendBulkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Notifications) == 0 {
		return toHTTPError(fmt.Errorf("%w: notifications is required", domain.ErrValidation))
	}

	sendReqs := make([]service.SendRequest, 0, len(req.Notifications))
	for _, item := range req.Notifications {
		sendReq, err := requestToSendRequest(item, true)
		if err != nil {
			return toHTTPError(err)
		}
		sendReqs = append(sendReqs, sendReq)
	}

	results, err := h.service.SendBulk(requestContext(c), sendReqs)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"requested": len(sendReqs),
		"created":   len(results),
		"data":      toNotificationResponses(results),
	})
}

func (h *NotificationHandler) SendEmail(c *fiber.Ctx) error {
	return h.sendFixedChannel(c, h.service.SendEmail)
}

func (h *NotificationHandler) SendSMS(c *fiber.Ctx) error {
	return h.sendFixedChannel(c, h.service.SendSMS)
}

func (h *NotificationHandler) sendFixedChannel(
	c *fiber.Ctx,
	send func(ctx context.Context, req service.SendRequest) (*domain.Notification, error),
) error {
	var req sendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sendReq, err := requestToSendRequest(req, false)
	if err != nil {
		return toHTTPError(err)
	}

	notification, err := send(requestContext(c), sendReq)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) SendAlert(c *fiber.Ctx) error {
	var req sendAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Recipients) == 0 {
		return toHTTPError(fmt.Errorf("%w: recipients is required", domain.ErrValidation))
	}

	channels := make([]domain.Channel, 0, len(req.Channels))
	if len(req.Channels) == 0 {
		channels = append(channels, domain.ChannelEmail)
	}
	for _, raw := range req.Channels {
		channel, err := domain.ParseChannelFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		channels = append(channels, channel)
	}

	results, err := h.service.SendAlert(requestContext(c), req.AlertData, req.Recipients, channels)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"created": len(results),
		"data":    toNotificationResponses(results),
	})
}

func (h *NotificationHandler) RetryFailed(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return toHTTPError(fmt.Errorf("%w: limit must be >= 0", domain.ErrValidation))
	}

	results, err := h.service.RetryFailed(requestContext(c), limit)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"processed": len(results),
		"data":      toNotificationResponses(results),
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.GetByID(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) MarkDelivered(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.MarkDelivered(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.List(requestContext(c), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *NotificationHandler) ListByRecipient(c *fiber.Ctx) error {
	recipient := strings.TrimSpace(c.Params("recipient"))
	if recipient == "" {
		return toHTTPError(fmt.Errorf("%w: recipient is required", domain.ErrValidation))
	}

	limit, offset, err := parseLimitOffset(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.ListByRecipient(requestContext(c), recipient, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(correlatedListResponse{
		Data:  toNotificationResponses(notifications),
		Total: total,
	})
}

func (h *NotificationHandler) ListByUser(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	if userID == "" {
		return toHTTPError(fmt.Errorf("%w: user id is required", domain.ErrValidation))
	}

	limit, offset, err := parseLimitOffset(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.ListByUser(requestContext(c), userID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(correlatedListResponse{
		Data:  toNotificationResponses(notifications),
		Total: total,
	})
}

func (h *NotificationHandler) ListByAlert(c *fiber.Ctx) error {
	alertID := strings.TrimSpace(c.Params("alertId"))
	if alertID == "" {
		return toHTTPError(fmt.Errorf("%w: alert id is required", domain.ErrValidation))
	}

	notifications, err := h.service.ListByAlert(requestContext(c), alertID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(correlatedListResponse{
		Data:  toNotificationResponses(notifications),
		Total: int64(len(notifications)),
	})
}

func (h *NotificationHandler) ListByTicket(c *fiber.Ctx) error {
	ticketID := strings.TrimSpace(c.Params("ticketId"))
	if ticketID == "" {
		return toHTTPError(fmt.Errorf("%w: ticket id is required", domain.ErrValidation))
	}

	notifications, err := h.service.ListByTicket(requestContext(c), ticketID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(correlatedListResponse{
		Data:  toNotificationResponses(notifications),
		Total: int64(len(notifications)),
	})
}

func (h *NotificationHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *NotificationHandler) TestServices(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.service.TestChannels(requestContext(c)))
}

// requestContext carries the request id into service-level logging.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if rid, ok := c.Locals("requestid").(string); ok && strings.TrimSpace(rid) != "" {
		ctx = observability.WithCorrelationID(ctx, strings.TrimSpace(rid))
	}
	return ctx
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("page_size", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: page_size must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("notification_type")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &channel
	}

	return params, nil
}

func parseLimitOffset(c *fiber.Ctx) (int, int, error) {
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)

	if limit < 1 || limit > maxPageSize {
		return 0, 0, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: offset must be >= 0", domain.ErrValidation)
	}

	return limit, offset, nil
}

// requestToSendRequest validates the enum fields up front so malformed input
// fails before any record is written. parseChannel is false on the
// fixed-channel endpoints where the service sets the channel itself.
func requestToSendRequest(req sendNotificationRequest, parseChannel bool) (service.SendRequest, error) {
	sendReq := service.SendRequest{
		Recipient:           req.Recipient,
		Subject:             req.Subject,
		Message:             req.Message,
		TemplateName:        req.TemplateName,
		ContextData:         req.ContextData,
		MaxRetries:          req.MaxRetries,
		UserID:              req.UserID,
		AlertID:             req.AlertID,
		MaintenanceTicketID: req.MaintenanceTicketID,
	}

	if parseChannel {
		channel, err := domain.ParseChannelFromString(req.NotificationType)
		if err != nil {
			return service.SendRequest{}, err
		}
		sendReq.Channel = channel
	}

	if raw := strings.TrimSpace(req.Priority); raw != "" {
		priority, err := domain.ParsePriorityFromString(raw)
		if err != nil {
			return service.SendRequest{}, err
		}
		sendReq.Priority = priority
	}

	return sendReq, nil
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:                  n.ID,
		NotificationType:    n.Channel.String(),
		Recipient:           n.Recipient,
		Subject:             n.Subject,
		Message:             n.Message,
		Status:              n.Status.String(),
		Priority:            n.Priority.String(),
		RetryCount:          n.RetryCount,
		MaxRetries:          n.MaxRetries,
		TemplateName:        n.TemplateName,
		ErrorMessage:        n.ErrorMessage,
		UserID:              n.UserID,
		AlertID:             n.AlertID,
		MaintenanceTicketID: n.MaintenanceTicketID,
		SentAt:              n.SentAt,
		DeliveredAt:         n.DeliveredAt,
		FailedAt:            n.FailedAt,
		CreatedAt:           n.CreatedAt,
		UpdatedAt:           n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
