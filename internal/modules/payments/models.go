package payments

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Mobile-money variants accepted at initiation. A capability tag only;
// the gateway owns any behavioural difference between networks.
const (
	ProviderMTN      = "mtn"
	ProviderVodafone = "vodafone"
	ProviderAirtel   = "airteltigo"
)

func ValidProvider(p string) bool {
	switch p {
	case ProviderMTN, ProviderVodafone, ProviderAirtel:
		return true
	}
	return false
}

// PaymentRecord is the durable state of one dues payment attempt.
// ClientReference is the idempotency key for every confirmation event;
// WebhookToken is non-null exactly until the first confirming event is
// accepted.
type PaymentRecord struct {
	ID              string  `gorm:"type:char(36);primaryKey"`
	UserID          string  `gorm:"type:char(36);not null;index:ix_payments_user_id"`
	AmountCents     int     `gorm:"not null"`
	Currency        string  `gorm:"type:char(3);not null"`
	Provider        string  `gorm:"type:varchar(32);not null"`
	Phone           string  `gorm:"type:varchar(20);not null"`
	PaymentType     string  `gorm:"type:varchar(32);not null"`
	ClientReference string  `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_client_reference"`
	Status          string  `gorm:"type:varchar(16);not null;index:ix_payments_status"`
	WebhookToken    *string `gorm:"type:varchar(64)"`

	PaymentDate *time.Time `gorm:"type:datetime(3)"`
	Notes       string     `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (PaymentRecord) TableName() string { return "payments" }

func (r *PaymentRecord) TokenPresent() bool { return r.WebhookToken != nil }

// CallbackEvent is the audit row written for every provider callback hit,
// whether or not the event ends up transitioning a record.
type CallbackEvent struct {
	ID              string         `gorm:"type:char(36);primaryKey"`
	Provider        string         `gorm:"type:varchar(32);not null"`
	ClientReference string         `gorm:"type:varchar(64);not null;index:ix_callback_events_reference"`
	TransactionID   string         `gorm:"type:varchar(128);not null"`
	PayloadJSON     datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt time.Time `gorm:"type:datetime(3);not null"`
	Outcome    *string   `gorm:"type:varchar(32)"`
}

func (CallbackEvent) TableName() string { return "payment_callback_events" }

// Event sources feeding ApplyResult.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
	SourceManual  Source = "manual"
)

// MapProviderStatus folds the provider's status vocabulary into the
// internal one. Unknown values map to ok=false: still pending, no
// transition.
func MapProviderStatus(s string) (string, bool) {
	switch s {
	case "success", "succeeded", "paid", "completed":
		return StatusCompleted, true
	case "failed", "cancelled", "declined", "expired":
		return StatusFailed, true
	}
	return "", false
}
