package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lifeline-ict/notify-engine/internal/domain"
	"github.com/lifeline-ict/notify-engine/internal/repository"
	"github.com/lifeline-ict/notify-engine/internal/service"
)

type fakeService struct {
	sendFunc         func(ctx context.Context, req service.SendRequest) (*domain.Notification, error)
	getByIDFunc      func(ctx context.Context, id string) (*domain.Notification, error)
	statsFunc        func(ctx context.Context) (*service.StatsOverview, error)
	retryFunc        func(ctx context.Context, limit int) ([]domain.Notification, error)
	testChannelsFunc func(ctx context.Context) map[string]bool
}

func (f *fakeService) Send(ctx context.Context, req service.SendRequest) (*domain.Notification, error) {
	return f.sendFunc(ctx, req)
}

func (f *fakeService) SendBulk(ctx context.Context, reqs []service.SendRequest) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0, len(reqs))
	for _, req := range reqs {
		n, err := f.sendFunc(ctx, req)
		if err != nil {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeService) SendEmail(ctx context.Context, req service.SendRequest) (*domain.Notification, error) {
	req.Channel = domain.ChannelEmail
	return f.sendFunc(ctx, req)
}

func (f *fakeService) SendSMS(ctx context.Context, req service.SendRequest) (*domain.Notification, error) {
	req.Channel = domain.ChannelSMS
	return f.sendFunc(ctx, req)
}

func (f *fakeService) SendAlert(ctx context.Context, alertData map[string]any, recipients []string, channels []domain.Channel) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, r := range recipients {
		for _, ch := range channels {
			n, err := f.sendFunc(ctx, service.SendRequest{Channel: ch, Recipient: r, Message: "alert"})
			if err != nil {
				continue
			}
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeService) RetryFailed(ctx context.Context, limit int) ([]domain.Notification, error) {
	if f.retryFunc != nil {
		return f.retryFunc(ctx, limit)
	}
	return nil, nil
}

func (f *fakeService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	return f.getByIDFunc(ctx, id)
}

func (f *fakeService) MarkDelivered(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := f.getByIDFunc(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Status = domain.StatusDelivered
	return n, nil
}

func (f *fakeService) List(context.Context, repository.ListParams) ([]domain.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeService) ListByRecipient(context.Context, string, int, int) ([]domain.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeService) ListByUser(context.Context, string, int, int) ([]domain.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeService) ListByAlert(context.Context, string) ([]domain.Notification, error) {
	return nil, nil
}

func (f *fakeService) ListByTicket(context.Context, string) ([]domain.Notification, error) {
	return nil, nil
}

func (f *fakeService) Stats(ctx context.Context) (*service.StatsOverview, error) {
	if f.statsFunc != nil {
		return f.statsFunc(ctx)
	}
	return &service.StatsOverview{}, nil
}

func (f *fakeService) TestChannels(ctx context.Context) map[string]bool {
	if f.testChannelsFunc != nil {
		return f.testChannelsFunc(ctx)
	}
	return map[string]bool{"email_service": true, "sms_service": false}
}

func sampleNotification(id string) *domain.Notification {
	now := time.Now().UTC()
	return &domain.Notification{
		ID:         id,
		Channel:    domain.ChannelEmail,
		Recipient:  "ops@lifeline-ict.ug",
		Message:    "hello",
		Status:     domain.StatusSent,
		Priority:   domain.PriorityMedium,
		MaxRetries: domain.DefaultMaxRetries,
		SentAt:     &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newTestApp(t *testing.T, svc NotificationService) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterNotificationRoutes(app, svc); err != nil {
		t.Fatalf("RegisterNotificationRoutes() error = %v", err)
	}
	return app
}

func TestSendNotificationEndpoint(t *testing.T) {
	t.Parallel()

	var gotReq service.SendRequest
	svc := &fakeService{
		sendFunc: func(_ context.Context, req service.SendRequest) (*domain.Notification, error) {
			gotReq = req
			return sampleNotification("n-1"), nil
		},
	}
	app := newTestApp(t, svc)

	body := bytes.NewBufferString(`{
		"notification_type": "email",
		"recipient": "ops@lifeline-ict.ug",
		"subject": "Disk alert",
		"message": "Disk usage above 90%",
		"priority": "high"
	}`)
	req := httptest.NewRequest("POST", "/notifications/send", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	if gotReq.Channel != domain.ChannelEmail {
		t.Fatalf("channel = %v, want EMAIL", gotReq.Channel)
	}
	if gotReq.Priority != domain.PriorityHigh {
		t.Fatalf("priority = %v, want HIGH", gotReq.Priority)
	}

	var payload map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["id"] != "n-1" {
		t.Fatalf("response id = %v", payload["id"])
	}
	if payload["status"] != "SENT" {
		t.Fatalf("response status = %v", payload["status"])
	}
}

func TestSendNotificationInvalidChannel(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		sendFunc: func(context.Context, service.SendRequest) (*domain.Notification, error) {
			t.Fatal("service should not be called for invalid channel")
			return nil, nil
		},
	}
	app := newTestApp(t, svc)

	body := bytes.NewBufferString(`{"notification_type": "carrier_pigeon", "recipient": "x", "message": "y"}`)
	req := httptest.NewRequest("POST", "/notifications/send", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetNotificationNotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		sendFunc: func(context.Context, service.SendRequest) (*domain.Notification, error) {
			return nil, nil
		},
		getByIDFunc: func(context.Context, string) (*domain.Notification, error) {
			return nil, fmt.Errorf("%w: notification", domain.ErrNotFound)
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("GET", "/notifications/does-not-exist", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

// The stats route must resolve before the ":id" route captures it.
func TestStatsRoutePrecedence(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		sendFunc: func(context.Context, service.SendRequest) (*domain.Notification, error) {
			return nil, nil
		},
		getByIDFunc: func(_ context.Context, id string) (*domain.Notification, error) {
			t.Fatalf("GetByID called with id %q, stats route should win", id)
			return nil, nil
		},
		statsFunc: func(context.Context) (*service.StatsOverview, error) {
			return &service.StatsOverview{Total: 10, Sent: 7, Failed: 3, Email: 10, RetryRate: 30}, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("GET", "/notifications/stats/overview", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload service.StatsOverview
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Total != 10 || payload.RetryRate != 30 {
		t.Fatalf("stats = %+v", payload)
	}
}

func TestSendBulkRequiresNotifications(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		sendFunc: func(context.Context, service.SendRequest) (*domain.Notification, error) {
			return sampleNotification("n-1"), nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/notifications/send/bulk", bytes.NewBufferString(`{"notifications": []}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRetryEndpoint(t *testing.T) {
	t.Parallel()

	var gotLimit int
	svc := &fakeService{
		sendFunc: func(context.Context, service.SendRequest) (*domain.Notification, error) {
			return nil, nil
		},
		retryFunc: func(_ context.Context, limit int) ([]domain.Notification, error) {
			gotLimit = limit
			return []domain.Notification{*sampleNotification("n-1")}, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/notifications/retry?limit=25", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotLimit != 25 {
		t.Fatalf("limit = %d, want 25", gotLimit)
	}

	var payload struct {
		Processed int `json:"processed"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Processed != 1 {
		t.Fatalf("processed = %d, want 1", payload.Processed)
	}
}

func TestTestServicesEndpoint(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		sendFunc: func(context.Context, service.SendRequest) (*domain.Notification, error) {
			return nil, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("POST", "/notifications/test", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]bool
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !payload["email_service"] || payload["sms_service"] {
		t.Fatalf("payload = %v", payload)
	}
}

func TestListNotificationsRejectsBadPageSize(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		sendFunc: func(context.Context, service.SendRequest) (*domain.Notification, error) {
			return nil, nil
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest("GET", "/notifications?page_size=5000", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
