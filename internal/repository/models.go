package repository

import (
	"time"

	"github.com/lifeline-ict/notify-engine/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	Channel      domain.Channel  `gorm:"type:varchar(10);not null"`
	Recipient    string          `gorm:"type:varchar(255);not null"`
	Subject      *string         `gorm:"type:varchar(255)"`
	Message      string          `gorm:"type:text;not null"`
	Status       domain.Status   `gorm:"type:varchar(20);not null"`
	Priority     domain.Priority `gorm:"type:varchar(10);not null"`
	RetryCount   int             `gorm:"not null;default:0"`
	MaxRetries   int             `gorm:"not null;default:3"`
	TemplateName *string         `gorm:"type:varchar(255)"`
	ContextData  *string         `gorm:"type:text"`

	SentAt       *time.Time `gorm:"type:timestamptz"`
	DeliveredAt  *time.Time `gorm:"type:timestamptz"`
	FailedAt     *time.Time `gorm:"type:timestamptz"`
	ErrorMessage *string    `gorm:"type:text"`

	UserID              *string `gorm:"type:varchar(64)"`
	AlertID             *string `gorm:"type:varchar(64)"`
	MaintenanceTicketID *string `gorm:"type:varchar(64)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:                  n.ID,
		Channel:             n.Channel,
		Recipient:           n.Recipient,
		Subject:             n.Subject,
		Message:             n.Message,
		Status:              n.Status,
		Priority:            n.Priority,
		RetryCount:          n.RetryCount,
		MaxRetries:          n.MaxRetries,
		TemplateName:        n.TemplateName,
		ContextData:         n.ContextData,
		SentAt:              n.SentAt,
		DeliveredAt:         n.DeliveredAt,
		FailedAt:            n.FailedAt,
		ErrorMessage:        n.ErrorMessage,
		UserID:              n.UserID,
		AlertID:             n.AlertID,
		MaintenanceTicketID: n.MaintenanceTicketID,
		CreatedAt:           n.CreatedAt,
		UpdatedAt:           n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:                  m.ID,
		Channel:             m.Channel,
		Recipient:           m.Recipient,
		Subject:             m.Subject,
		Message:             m.Message,
		Status:              m.Status,
		Priority:            m.Priority,
		RetryCount:          m.RetryCount,
		MaxRetries:          m.MaxRetries,
		TemplateName:        m.TemplateName,
		ContextData:         m.ContextData,
		SentAt:              m.SentAt,
		DeliveredAt:         m.DeliveredAt,
		FailedAt:            m.FailedAt,
		ErrorMessage:        m.ErrorMessage,
		UserID:              m.UserID,
		AlertID:             m.AlertID,
		MaintenanceTicketID: m.MaintenanceTicketID,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func notificationModelsToDomain(models []NotificationModel) []domain.Notification {
	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications
}
