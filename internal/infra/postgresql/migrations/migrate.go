package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/lifeline-ict/notify-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createNotificationsTable(),
	})

	return m.Migrate()
}

func createNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_notifications_status_channel_created ON notifications (status, channel, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient)`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications (user_id) WHERE user_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_alert_id ON notifications (alert_id) WHERE alert_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_ticket_id ON notifications (maintenance_ticket_id) WHERE maintenance_ticket_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_retryable ON notifications (created_at) WHERE status = 'FAILED' AND retry_count < max_retries`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}
