package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RetentionWindow is the fixed period after which an alert and its
// activity logs are purged.
const RetentionWindow = 90 * 24 * time.Hour

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// AlertSource identifies the upstream service that produced an alert
type AlertSource string

const (
	AlertSourceCI               AlertSource = "ci"
	AlertSourceDeployment       AlertSource = "deployment"
	AlertSourceErrorTracker     AlertSource = "error_tracker"
	AlertSourceDatabasePlatform AlertSource = "database_platform"
)

// ValidAlertSources returns all registered alert sources
func ValidAlertSources() []AlertSource {
	return []AlertSource{
		AlertSourceCI,
		AlertSourceDeployment,
		AlertSourceErrorTracker,
		AlertSourceDatabasePlatform,
	}
}

// IsValidAlertSource reports whether s names a registered source
func IsValidAlertSource(s string) bool {
	for _, v := range ValidAlertSources() {
		if string(v) == s {
			return true
		}
	}
	return false
}

// AlertSeverity represents normalized severity levels
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityInfo     AlertSeverity = "info"
)

// AlertStatus represents the lifecycle state of an alert.
// Transitions are monotonic: pending -> processing -> resolved | ignored.
type AlertStatus string

const (
	AlertStatusPending    AlertStatus = "pending"
	AlertStatusProcessing AlertStatus = "processing"
	AlertStatusResolved   AlertStatus = "resolved"
	AlertStatusIgnored    AlertStatus = "ignored"
)

// AutoFixAction is the closed set of bounded corrective actions
type AutoFixAction string

const (
	AutoFixActionRetryWorkflow AutoFixAction = "retry_workflow"
	AutoFixActionRedeploy      AutoFixAction = "redeploy"
	AutoFixActionLintFix       AutoFixAction = "lint_fix"
)

// Recommendation is the risk assessor's remediation guidance
type Recommendation string

const (
	RecommendationAutoApprove          Recommendation = "auto_approve"
	RecommendationPRWithReview         Recommendation = "pr_with_review"
	RecommendationPRWithRequiredReview Recommendation = "pr_with_required_review"
	RecommendationManualReview         Recommendation = "manual_review"
)

// AlertAnalysis holds the analyzer's root-cause inference for an alert.
// Embedded in Alert; AnalyzedAt is nil until the analyzer has run.
type AlertAnalysis struct {
	RootCause     string        `gorm:"type:text" json:"root_cause"`
	SuggestedFix  string        `gorm:"type:text" json:"suggested_fix"`
	AutoFixable   bool          `gorm:"default:false" json:"auto_fixable"`
	AutoFixAction AutoFixAction `gorm:"type:varchar(50)" json:"auto_fix_action,omitempty"`
	Confidence    float64       `gorm:"type:decimal(3,2)" json:"confidence"`
	AnalyzedAt    *time.Time    `json:"analyzed_at,omitempty"`
}

// Present reports whether the analyzer has produced this analysis
func (a AlertAnalysis) Present() bool {
	return a.AnalyzedAt != nil
}

// ResolutionType distinguishes how an alert was resolved
type ResolutionType string

const (
	ResolutionTypeAutoFix ResolutionType = "autofix"
	ResolutionTypeManual  ResolutionType = "manual"
)

// AlertResolution records how remediation occurred. Embedded in Alert;
// empty Type means the alert is unresolved.
type AlertResolution struct {
	Type    ResolutionType `gorm:"type:varchar(20)" json:"type,omitempty"`
	Action  AutoFixAction  `gorm:"type:varchar(50)" json:"action,omitempty"`
	Details string         `gorm:"type:text" json:"details,omitempty"`
	PRURL   string         `gorm:"type:text" json:"pr_url,omitempty"`
}

// Present reports whether a resolution record has been attached
func (r AlertResolution) Present() bool {
	return r.Type != ""
}

// Alert is one normalized inbound event, the aggregate root of the pipeline
type Alert struct {
	ID       uint          `gorm:"primaryKey" json:"id"`
	UUID     string        `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Source   AlertSource   `gorm:"type:varchar(50);not null;index;uniqueIndex:idx_alerts_source_delivery" json:"source"`
	Type     string        `gorm:"type:varchar(100);not null" json:"type"`
	Severity AlertSeverity `gorm:"type:varchar(20);not null" json:"severity"`
	Status   AlertStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Summary     string `gorm:"type:text" json:"summary"`
	ExternalURL string `gorm:"type:text" json:"external_url"`

	// DeliveryID is the upstream delivery identifier used for deduplication.
	// Unique together with Source; nil when the source sent no identifier,
	// so ID-less deliveries never collide on the index.
	DeliveryID *string `gorm:"type:varchar(255);uniqueIndex:idx_alerts_source_delivery" json:"delivery_id,omitempty"`

	// Payload is the raw upstream payload, stored verbatim for audit/replay
	Payload JSONB `gorm:"type:jsonb" json:"payload"`

	// Structured extraction; all optional, absence never blocks processing
	Repository  string `gorm:"type:varchar(255)" json:"repository"`
	Branch      string `gorm:"type:varchar(255)" json:"branch"`
	Commit      string `gorm:"type:varchar(64)" json:"commit"`
	Environment string `gorm:"type:varchar(64)" json:"environment"`

	Analysis   AlertAnalysis   `gorm:"embedded;embeddedPrefix:analysis_" json:"analysis"`
	Resolution AlertResolution `gorm:"embedded;embeddedPrefix:resolution_" json:"resolution"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// ExpiresAt is set once at creation and never mutated
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	Logs []ActivityLog `gorm:"foreignKey:AlertID;constraint:OnDelete:CASCADE" json:"logs,omitempty"`
}

// BeforeCreate assigns the public UUID, the default status and the fixed
// expiry window
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AlertStatusPending
	}
	if a.ExpiresAt.IsZero() {
		a.ExpiresAt = time.Now().Add(RetentionWindow)
	}
	return nil
}

// Expired reports whether the alert has passed its retention window
func (a *Alert) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

func (Alert) TableName() string {
	return "alerts"
}

// ActivityActor identifies who performed a logged action
type ActivityActor string

const (
	ActivityActorSystem ActivityActor = "system"
	ActivityActorAgent  ActivityActor = "agent"
	ActivityActorUser   ActivityActor = "user"
)

// ActivityLog is an append-only audit entry. AlertID is nil for
// system-level events. Entries are never mutated; deleting an alert
// cascades deletion of its logs.
type ActivityLog struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	AlertID     *uint         `gorm:"index" json:"alert_id,omitempty"`
	Actor       ActivityActor `gorm:"type:varchar(20);not null" json:"actor"`
	Action      string        `gorm:"type:varchar(100);not null;index" json:"action"`
	Description string        `gorm:"type:text" json:"description"`
	Metadata    JSONB         `gorm:"type:jsonb" json:"metadata"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// WebhookConfig describes how a given source's webhook is received.
// Secret is stored encrypted (AES-GCM, base64).
type WebhookConfig struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	Source     AlertSource `gorm:"type:varchar(50);uniqueIndex;not null" json:"source"`
	Name       string      `gorm:"type:varchar(128);not null" json:"name"`
	Endpoint   string      `gorm:"type:varchar(255)" json:"endpoint"`
	Secret     string      `gorm:"type:text" json:"-"`
	Enabled    bool        `gorm:"default:false" json:"enabled"`
	Rules      JSONB       `gorm:"type:jsonb" json:"rules"`
	ProjectIDs JSONB       `gorm:"type:jsonb" json:"project_ids"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (WebhookConfig) TableName() string {
	return "webhook_configs"
}

// AllowedBranches returns the branch filter from Rules, or nil when the
// config accepts every branch
func (c *WebhookConfig) AllowedBranches() []string {
	if c.Rules == nil {
		return nil
	}
	raw, ok := c.Rules["branches"].([]interface{})
	if !ok {
		return nil
	}
	var branches []string
	for _, b := range raw {
		if s, ok := b.(string); ok && s != "" {
			branches = append(branches, s)
		}
	}
	return branches
}

// BranchAllowed applies the config's branch filter. An empty branch on
// the alert always passes: absence of metadata must not block processing.
func (c *WebhookConfig) BranchAllowed(branch string) bool {
	allowed := c.AllowedBranches()
	if len(allowed) == 0 || branch == "" {
		return true
	}
	for _, b := range allowed {
		if b == branch {
			return true
		}
	}
	return false
}

// NotificationConfig is the process-wide notification target and trigger
// rules. Stored as a singleton row; WebhookURL is encrypted at rest.
type NotificationConfig struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WebhookURL string    `gorm:"type:text" json:"-"`
	OnCritical bool      `gorm:"default:true" json:"on_critical"`
	OnAutofix  bool      `gorm:"default:true" json:"on_autofix"`
	OnAll      bool      `gorm:"default:false" json:"on_all"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (NotificationConfig) TableName() string {
	return "notification_configs"
}

// Enabled reports whether any delivery could ever trigger
func (n *NotificationConfig) Enabled() bool {
	return n.WebhookURL != "" && (n.OnCritical || n.OnAutofix || n.OnAll)
}
