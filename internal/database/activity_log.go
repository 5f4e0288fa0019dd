package database

import "gorm.io/gorm"

// AppendLog writes an audit entry. Entries are immutable once written.
func AppendLog(db *gorm.DB, entry *ActivityLog) error {
	return db.Create(entry).Error
}

// AppendAlertLog writes an audit entry tied to an alert
func AppendAlertLog(db *gorm.DB, alertID uint, actor ActivityActor, action, description string, metadata JSONB) error {
	return AppendLog(db, &ActivityLog{
		AlertID:     &alertID,
		Actor:       actor,
		Action:      action,
		Description: description,
		Metadata:    metadata,
	})
}

// AppendSystemLog writes a standalone audit entry not tied to any alert
func AppendSystemLog(db *gorm.DB, action, description string, metadata JSONB) error {
	return AppendLog(db, &ActivityLog{
		Actor:       ActivityActorSystem,
		Action:      action,
		Description: description,
		Metadata:    metadata,
	})
}

// ListLogsForAlert returns an alert's audit trail oldest-first
func ListLogsForAlert(db *gorm.DB, alertID uint) ([]ActivityLog, error) {
	var logs []ActivityLog
	err := db.Where("alert_id = ?", alertID).Order("created_at asc, id asc").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// ListRecentLogs returns the most recent audit entries across all alerts
func ListRecentLogs(db *gorm.DB, limit int) ([]ActivityLog, error) {
	var logs []ActivityLog
	err := db.Order("created_at desc, id desc").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
