package repository

import (
	"context"
	"time"

	"motwatch-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormNotificationLogRepository implements the NotificationLogRepository
// interface against PostgreSQL.
type GormNotificationLogRepository struct {
	db *gorm.DB
}

// NotificationLogs GORM model for database mapping
type NotificationLogs struct {
	gorm.Model
	Registration string    `gorm:"column:registration;index"`
	DeviceID     string    `gorm:"column:device_id"`
	TestResult   string    `gorm:"column:test_result"`
	NewTestDate  time.Time `gorm:"column:new_test_date"`
	Status       string    `gorm:"column:status"`
	Detail       string    `gorm:"column:detail"`
	SentAt       time.Time `gorm:"column:sent_at"`
}

// TableName overrides the default table name
func (NotificationLogs) TableName() string {
	return "notification_logs"
}

// NewGormNotificationLogRepository creates a new GORM notification log
// repository and migrates the table.
func NewGormNotificationLogRepository(db *gorm.DB) (repository.NotificationLogRepository, error) {
	if err := db.AutoMigrate(&NotificationLogs{}); err != nil {
		return nil, err
	}

	return &GormNotificationLogRepository{
		db: db,
	}, nil
}

// Record inserts one delivery attempt.
func (r *GormNotificationLogRepository) Record(ctx context.Context, log *repository.NotificationLog) error {
	model := NotificationLogs{
		Registration: log.Registration,
		DeviceID:     log.DeviceID,
		TestResult:   log.TestResult,
		NewTestDate:  log.NewTestDate,
		Status:       log.Status,
		Detail:       log.Detail,
		SentAt:       log.SentAt,
	}

	result := r.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		return result.Error
	}

	log.ID = model.ID
	log.CreatedAt = model.CreatedAt

	return nil
}

// FindByRegistration returns the most recent delivery attempts for a
// registration.
func (r *GormNotificationLogRepository) FindByRegistration(ctx context.Context, registration string, limit int) ([]*repository.NotificationLog, error) {
	var models []NotificationLogs
	result := r.db.WithContext(ctx).
		Where("registration = ?", registration).
		Order("sent_at DESC").
		Limit(limit).
		Find(&models)

	if result.Error != nil {
		return nil, result.Error
	}

	var logs []*repository.NotificationLog
	for _, model := range models {
		logs = append(logs, &repository.NotificationLog{
			ID:           model.ID,
			Registration: model.Registration,
			DeviceID:     model.DeviceID,
			TestResult:   model.TestResult,
			NewTestDate:  model.NewTestDate,
			Status:       model.Status,
			Detail:       model.Detail,
			SentAt:       model.SentAt,
			CreatedAt:    model.CreatedAt,
		})
	}

	return logs, nil
}
