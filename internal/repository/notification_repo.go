package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lifeline-ict/notify-engine/internal/domain"
	"gorm.io/gorm"
)

// priorityRankExpr orders rows by priority tier; keep in sync with
// domain.Priority.Rank.
const priorityRankExpr = `CASE priority
	WHEN 'URGENT' THEN 4
	WHEN 'HIGH' THEN 3
	WHEN 'MEDIUM' THEN 2
	WHEN 'LOW' THEN 1
	ELSE 0 END DESC, created_at ASC`

type ListParams struct {
	Status   *domain.Status
	Channel  *domain.Channel
	Page     int
	PageSize int
}

// NotificationRepository is the persistent record store for notification
// attempts. Every mutation is a single-row update, so concurrent operations
// on different records never interfere.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]domain.Notification, int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, int64, error)
	ListByAlert(ctx context.Context, alertID string) ([]domain.Notification, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id string) (*domain.Notification, error)
	MarkDelivered(ctx context.Context, id string) (*domain.Notification, error)
	MarkFailed(ctx context.Context, id string, errorMessage string) (*domain.Notification, error)
	IncrementRetry(ctx context.Context, id string) (*domain.Notification, error)
	GetPendingOrRetryable(ctx context.Context, limit int) ([]domain.Notification, error)
	AggregateStats(ctx context.Context) (*domain.NotificationStats, error)
}

type GormNotificationRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db, now: time.Now}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return notificationModelsToDomain(models), total, nil
}

func (r *GormNotificationRepo) ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]domain.Notification, int64, error) {
	return r.listByField(ctx, "recipient = ?", recipient, limit, offset)
}

func (r *GormNotificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, int64, error) {
	return r.listByField(ctx, "user_id = ?", userID, limit, offset)
}

func (r *GormNotificationRepo) ListByAlert(ctx context.Context, alertID string) ([]domain.Notification, error) {
	notifications, _, err := r.listByField(ctx, "alert_id = ?", alertID, 0, 0)
	return notifications, err
}

func (r *GormNotificationRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error) {
	notifications, _, err := r.listByField(ctx, "maintenance_ticket_id = ?", ticketID, 0, 0)
	return notifications, err
}

func (r *GormNotificationRepo) listByField(ctx context.Context, cond string, value string, limit, offset int) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{}).Where(cond, value)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var models []NotificationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, 0, err
	}

	return notificationModelsToDomain(models), total, nil
}

func (r *GormNotificationRepo) MarkSent(ctx context.Context, id string) (*domain.Notification, error) {
	return r.updateOne(ctx, id, map[string]any{
		"status":  domain.StatusSent,
		"sent_at": r.now().UTC(),
	})
}

func (r *GormNotificationRepo) MarkDelivered(ctx context.Context, id string) (*domain.Notification, error) {
	return r.updateOne(ctx, id, map[string]any{
		"status":       domain.StatusDelivered,
		"delivered_at": r.now().UTC(),
	})
}

// MarkFailed records a failure; failed_at and error_message are overwritten
// on repeated failures. The retry count is not touched here — incrementing
// is a distinct operation owned by the retry pass.
func (r *GormNotificationRepo) MarkFailed(ctx context.Context, id string, errorMessage string) (*domain.Notification, error) {
	return r.updateOne(ctx, id, map[string]any{
		"status":        domain.StatusFailed,
		"failed_at":     r.now().UTC(),
		"error_message": errorMessage,
	})
}

// IncrementRetry bumps retry_count by exactly one and moves the record to
// RETRYING for the duration of the attempt.
func (r *GormNotificationRepo) IncrementRetry(ctx context.Context, id string) (*domain.Notification, error) {
	return r.updateOne(ctx, id, map[string]any{
		"status":      domain.StatusRetrying,
		"retry_count": gorm.Expr("retry_count + 1"),
	})
}

func (r *GormNotificationRepo) updateOne(ctx context.Context, id string, fields map[string]any) (*domain.Notification, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// GetPendingOrRetryable selects dispatch candidates: PENDING records, and
// FAILED records with retry budget left. Highest priority tier first,
// oldest first within a tier.
func (r *GormNotificationRepo) GetPendingOrRetryable(ctx context.Context, limit int) ([]domain.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry_count < max_retries)",
			domain.StatusPending, domain.StatusFailed).
		Order(priorityRankExpr)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []NotificationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	return notificationModelsToDomain(models), nil
}

type statusCountRow struct {
	Status domain.Status `gorm:"column:status"`
	Count  int64         `gorm:"column:count"`
}

type channelCountRow struct {
	Channel domain.Channel `gorm:"column:channel"`
	Count   int64          `gorm:"column:count"`
}

func (r *GormNotificationRepo) AggregateStats(ctx context.Context) (*domain.NotificationStats, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&NotificationModel{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var statusRows []statusCountRow
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusRows).Error
	if err != nil {
		return nil, err
	}

	var channelRows []channelCountRow
	err = r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Select("channel, COUNT(*) as count").
		Group("channel").
		Scan(&channelRows).Error
	if err != nil {
		return nil, err
	}

	var retried int64
	err = r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("retry_count > 0").
		Count(&retried).Error
	if err != nil {
		return nil, err
	}

	stats := &domain.NotificationStats{
		Total:     total,
		ByStatus:  make(map[domain.Status]int64, len(statusRows)),
		ByChannel: make(map[domain.Channel]int64, len(channelRows)),
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
	}
	for _, row := range channelRows {
		stats.ByChannel[row.Channel] = row.Count
	}
	if total > 0 {
		stats.RetryRate = float64(retried) / float64(total) * 100
	}

	return stats, nil
}
