package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CreateAlert persists a new alert. UUID, status and expiry are assigned
// by the BeforeCreate hook when unset.
func CreateAlert(db *gorm.DB, alert *Alert) error {
	return db.Create(alert).Error
}

// GetAlertByUUID retrieves an alert by its public UUID
func GetAlertByUUID(db *gorm.DB, uuid string) (*Alert, error) {
	var alert Alert
	if err := db.Where("uuid = ?", uuid).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindAlertByDelivery looks up an existing alert by source and upstream
// delivery identifier. Returns gorm.ErrRecordNotFound when the delivery
// has not been seen before.
func FindAlertByDelivery(db *gorm.DB, source AlertSource, deliveryID string) (*Alert, error) {
	var alert Alert
	err := db.Where("source = ? AND delivery_id = ?", source, deliveryID).First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// TouchDuplicate bumps UpdatedAt on an alert that received a duplicate
// delivery. The existing row is otherwise untouched.
func TouchDuplicate(db *gorm.DB, alert *Alert) error {
	return db.Model(&Alert{}).Where("id = ?", alert.ID).
		Update("updated_at", time.Now()).Error
}

// ClaimAlert atomically transitions an alert from one of the allowed
// statuses to processing. Returns false if another worker already holds
// the claim (or the alert is in a terminal state).
func ClaimAlert(db *gorm.DB, uuid string, allowed ...AlertStatus) (bool, error) {
	if len(allowed) == 0 {
		allowed = []AlertStatus{AlertStatusPending}
	}
	result := db.Model(&Alert{}).
		Where("uuid = ? AND status IN ?", uuid, allowed).
		Update("status", AlertStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AttachAnalysis writes the analyzer's output onto the alert. Only the
// analysis slice is mutated.
func AttachAnalysis(db *gorm.DB, uuid string, analysis AlertAnalysis) error {
	if analysis.AnalyzedAt == nil {
		now := time.Now()
		analysis.AnalyzedAt = &now
	}
	return db.Model(&Alert{}).Where("uuid = ?", uuid).
		Updates(map[string]interface{}{
			"analysis_root_cause":      analysis.RootCause,
			"analysis_suggested_fix":   analysis.SuggestedFix,
			"analysis_auto_fixable":    analysis.AutoFixable,
			"analysis_auto_fix_action": analysis.AutoFixAction,
			"analysis_confidence":      analysis.Confidence,
			"analysis_analyzed_at":     analysis.AnalyzedAt,
		}).Error
}

// AttachResolution records how remediation occurred and transitions the
// alert to resolved in the same update.
func AttachResolution(db *gorm.DB, uuid string, res AlertResolution) error {
	now := time.Now()
	return db.Model(&Alert{}).Where("uuid = ?", uuid).
		Updates(map[string]interface{}{
			"resolution_type":    res.Type,
			"resolution_action":  res.Action,
			"resolution_details": res.Details,
			"resolution_pr_url":  res.PRURL,
			"status":             AlertStatusResolved,
			"resolved_at":        now,
		}).Error
}

// MarkStatus sets an alert's lifecycle status
func MarkStatus(db *gorm.DB, uuid string, status AlertStatus) error {
	return db.Model(&Alert{}).Where("uuid = ?", uuid).
		Update("status", status).Error
}

// AlertFilter narrows ListAlerts results. Zero values mean "any".
type AlertFilter struct {
	Source   AlertSource
	Status   AlertStatus
	Severity AlertSeverity
}

// ListAlerts returns alerts newest-first with optional filtering and
// offset pagination
func ListAlerts(db *gorm.DB, filter AlertFilter, limit, offset int) ([]Alert, int64, error) {
	query := db.Model(&Alert{})
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []Alert
	err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&alerts).Error
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// StalePending returns unanalyzed alerts still pending after the grace
// period. Used by the reconciliation pass to recover enqueues deferred
// by a full queue or lost to a restart.
func StalePending(db *gorm.DB, grace time.Duration) ([]Alert, error) {
	cutoff := time.Now().Add(-grace)
	var alerts []Alert
	err := db.Where("status = ? AND analysis_analyzed_at IS NULL AND created_at < ?",
		AlertStatusPending, cutoff).
		Order("created_at asc").Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// DeleteExpired purges every alert past its expiry, one transaction per
// alert so a crash mid-sweep cannot leave partial state. Activity logs
// are removed in the same transaction; the schema also carries a
// cascade-on-delete constraint for engines that enforce it.
func DeleteExpired(db *gorm.DB, now time.Time) (int, error) {
	var expired []Alert
	if err := db.Where("expires_at < ?", now).Find(&expired).Error; err != nil {
		return 0, err
	}

	deleted := 0
	for _, alert := range expired {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("alert_id = ?", alert.ID).Delete(&ActivityLog{}).Error; err != nil {
				return err
			}
			return tx.Delete(&Alert{}, alert.ID).Error
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete expired alert %s: %w", alert.UUID, err)
		}
		deleted++
	}
	return deleted, nil
}
