package db

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one completed diagnostic: the contact, the raw metrics, the
// derived scoring fields and the timestamps of the follow-up integrations.
type Submission struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`

	FirstName           string `gorm:"size:100;not null" json:"firstName"`
	Email               string `gorm:"size:255;index;not null" json:"email"`
	StoreURL            string `gorm:"size:512;not null" json:"storeUrl"`
	MonthlyRevenueRange string `gorm:"size:32" json:"monthlyRevenueRange,omitempty"`

	Sessions30d       int64   `gorm:"not null" json:"sessions30d"`
	Orders30d         int64   `gorm:"not null" json:"orders30d"`
	ConversionRate    float64 `gorm:"not null" json:"conversionRate"`
	AOV               float64 `gorm:"column:aov;not null" json:"aov"`
	AbandonedCarts30d int64   `gorm:"not null" json:"abandonedCarts30d"`

	RevenueEst        float64 `gorm:"not null" json:"revenueEst"`
	RevenuePerSession float64 `gorm:"not null" json:"revenuePerSession"`
	LeakScore         int     `gorm:"index;not null" json:"leakScore"`
	LeakBucket        string  `gorm:"size:16;index;not null" json:"leakBucket"`
	TopLeak1          string  `gorm:"size:128" json:"topLeak1"`
	TopLeak2          string  `gorm:"size:128" json:"topLeak2"`

	// Teaser is the JSON the intake page rendered; FullReportHTML is the
	// emailed report. ReportKey points at the archived copy, if any.
	Teaser         datatypes.JSON `gorm:"type:jsonb" json:"teaser"`
	FullReportHTML string         `gorm:"type:text" json:"fullReportHtml,omitempty"`
	ReportKey      string         `gorm:"size:255" json:"reportKey,omitempty"`

	IPAddress   string `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent   string `gorm:"size:512" json:"userAgent,omitempty"`
	UTMSource   string `gorm:"size:255" json:"utmSource,omitempty"`
	UTMMedium   string `gorm:"size:255" json:"utmMedium,omitempty"`
	UTMCampaign string `gorm:"size:255" json:"utmCampaign,omitempty"`

	EmailSentAt     *time.Time `json:"emailSentAt"`
	OwnerNotifiedAt *time.Time `json:"ownerNotifiedAt"`
	CRMSyncedAt     *time.Time `json:"crmSyncedAt"`
}

// AdminSession records an issued admin token by its JWT id so that tokens
// can be revoked and swept once expired.
type AdminSession struct {
	ID        string    `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`
}
