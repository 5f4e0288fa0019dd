package database

import "gorm.io/gorm"

// GetWebhookConfig retrieves the webhook configuration for a source
func GetWebhookConfig(db *gorm.DB, source AlertSource) (*WebhookConfig, error) {
	var cfg WebhookConfig
	if err := db.Where("source = ?", source).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListWebhookConfigs returns all webhook configurations
func ListWebhookConfigs(db *gorm.DB) ([]WebhookConfig, error) {
	var configs []WebhookConfig
	if err := db.Order("source asc").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// SaveWebhookConfig updates a source's webhook configuration
func SaveWebhookConfig(db *gorm.DB, cfg *WebhookConfig) error {
	return db.Save(cfg).Error
}

// GetNotificationConfig retrieves the singleton notification
// configuration, creating the default row if missing
func GetNotificationConfig(db *gorm.DB) (*NotificationConfig, error) {
	var cfg NotificationConfig
	err := db.First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		cfg = NotificationConfig{OnCritical: true, OnAutofix: true}
		if err := db.Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateNotificationConfig updates the singleton notification configuration
func UpdateNotificationConfig(db *gorm.DB, cfg *NotificationConfig) error {
	return db.Model(&NotificationConfig{}).Where("id = ?", cfg.ID).
		Updates(map[string]interface{}{
			"webhook_url": cfg.WebhookURL,
			"on_critical": cfg.OnCritical,
			"on_autofix":  cfg.OnAutofix,
			"on_all":      cfg.OnAll,
		}).Error
}
