// Package domain defines the persistence models for consultation requests,
// consultation logs, active sessions, notifications, beneficiaries, and
// payment records. These types are mapped with GORM and form the core data
// layer of the orchestration backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ConsultationRequest is a queue ledger row: one per orchestration attempt.
// Rows are never deleted; only Status changes.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: requesting user; indexed together with Status for queue reads.
//   - ServiceType: one of the ServiceType values.
//   - Specialty: optional specialty label supplied by the caller.
//   - Priority: derived from ServiceType via Priority(); stored, never consumed.
//   - Status: waiting → assigned | cancelled (processing is reserved).
//   - Metadata: request timestamp and client label.
type ConsultationRequest struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string         `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_queue_user_status,priority:1"`
	ServiceType ServiceType    `json:"service_type" gorm:"type:varchar(32);not null;index:idx_queue_status_type,priority:2"`
	Specialty   *string        `json:"specialty,omitempty" gorm:"type:varchar(128)"`
	Priority    int            `json:"priority"     gorm:"not null;default:1"`
	Status      QueueStatus    `json:"status"       gorm:"type:varchar(16);not null;default:'waiting';index:idx_queue_user_status,priority:2;index:idx_queue_status_type,priority:1"`
	Metadata    datatypes.JSON `json:"metadata"     swaggertype:"object"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name for ConsultationRequest.
func (ConsultationRequest) TableName() string { return "consultation_queue" }

// ConsultationLog is the durable outcome of a provider call. Status moves
// from active to cancelled on an explicit cancel; rows are never deleted.
type ConsultationLog struct {
	ID                 string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	UserID             string         `json:"user_id"             gorm:"type:varchar(64);not null;index"`
	ServiceType        ServiceType    `json:"service_type"        gorm:"type:varchar(32);not null"`
	SessionID          string         `json:"session_id"          gorm:"type:varchar(128)"`
	ProfessionalName   string         `json:"professional_name"   gorm:"type:varchar(255)"`
	Specialty          string         `json:"specialty"           gorm:"type:varchar(128)"`
	ProfessionalRating *float64       `json:"professional_rating,omitempty"`
	Status             LogStatus      `json:"status"              gorm:"type:varchar(16);not null;default:'active'"`
	Success            bool           `json:"success"             gorm:"not null;default:false"`
	ErrorMessage       *string        `json:"error_message,omitempty" gorm:"type:text"`
	ConsultationURL    string         `json:"consultation_url"    gorm:"type:text"`
	EstimatedWaitTime  *int           `json:"estimated_wait_time,omitempty"`
	Metadata           datatypes.JSON `json:"metadata"            swaggertype:"object"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName returns the database table name for ConsultationLog.
func (ConsultationLog) TableName() string { return "consultation_logs" }

// ActiveSession is the per-user pointer to a live consultation. At most one
// row per user may carry status active; the storage layer enforces this with
// a partial unique index created in repo.AutoMigrate.
type ActiveSession struct {
	ID                string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	UserID            string         `json:"user_id"             gorm:"type:varchar(64);not null;index:idx_sessions_user_status,priority:1"`
	ConsultationLogID string         `json:"consultation_log_id" gorm:"type:char(36);not null;index"`
	SessionID         string         `json:"session_id"          gorm:"type:varchar(128)"`
	ServiceType       ServiceType    `json:"service_type"        gorm:"type:varchar(32);not null"`
	ProfessionalInfo  datatypes.JSON `json:"professional_info"   swaggertype:"object"`
	SessionURL        string         `json:"session_url"         gorm:"type:text"`
	Status            SessionStatus  `json:"status"              gorm:"type:varchar(16);not null;default:'active';index:idx_sessions_user_status,priority:2"`
	ExpiresAt         time.Time      `json:"expires_at"          gorm:"not null;index"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// ConsultationLog is populated by GetActiveSessions (summary join).
	ConsultationLog *ConsultationLog `json:"consultation_logs,omitempty" gorm:"foreignKey:ConsultationLogID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ActiveSession.
func (ActiveSession) TableName() string { return "active_sessions" }

// SystemNotification is an inert message for a user to list and mark read.
// Webhook-originated rows may only know the beneficiary.
type SystemNotification struct {
	ID              string           `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID          string           `json:"user_id"           gorm:"type:varchar(64);index:idx_notifications_user_created,priority:1"`
	BeneficiaryUUID *string          `json:"beneficiary_uuid,omitempty" gorm:"type:char(36);index"`
	Title           string           `json:"title"             gorm:"type:varchar(255);not null"`
	Message         string           `json:"message"           gorm:"type:text;not null"`
	Type            NotificationType `json:"type"              gorm:"type:varchar(32);not null;default:'info'"`
	Priority        string           `json:"priority,omitempty" gorm:"type:varchar(16)"`
	Read            bool             `json:"read"              gorm:"not null;default:false"`
	ActionURL       *string          `json:"action_url,omitempty" gorm:"type:text"`
	Metadata        datatypes.JSON   `json:"metadata"          swaggertype:"object"`
	CreatedAt       time.Time        `json:"created_at"        gorm:"index:idx_notifications_user_created,priority:2"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TableName returns the database table name for SystemNotification.
func (SystemNotification) TableName() string { return "system_notifications" }

// Beneficiary links a local user to the provider-issued beneficiary UUID,
// keyed by CPF.
type Beneficiary struct {
	ID                 string     `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID             string     `json:"user_id"            gorm:"type:varchar(64);index"`
	BeneficiaryUUID    string     `json:"beneficiary_uuid"   gorm:"type:char(36);not null;uniqueIndex"`
	CPF                string     `json:"cpf"                gorm:"type:char(11);not null;index:idx_beneficiaries_cpf_status,priority:1"`
	FullName           string     `json:"full_name"          gorm:"type:varchar(255);not null"`
	BirthDate          string     `json:"birth_date,omitempty" gorm:"type:varchar(10)"`
	Email              string     `json:"email,omitempty"    gorm:"type:varchar(255)"`
	Phone              string     `json:"phone,omitempty"    gorm:"type:varchar(32)"`
	ServiceType        string     `json:"service_type,omitempty" gorm:"type:varchar(32)"`
	IsPrimary          bool       `json:"is_primary"         gorm:"not null;default:true"`
	Status             string     `json:"status"             gorm:"type:varchar(16);not null;default:'active';index:idx_beneficiaries_cpf_status,priority:2"`
	HasActivePlan      bool       `json:"has_active_plan"    gorm:"not null;default:false"`
	SubscriptionStatus string     `json:"subscription_status,omitempty" gorm:"type:varchar(16)"`
	LastPaymentDate    *time.Time `json:"last_payment_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Beneficiary.
func (Beneficiary) TableName() string { return "beneficiaries" }

// SubscriptionPlan is the locally recorded plan for a beneficiary, pointing at
// the payment provider's customer and subscription.
type SubscriptionPlan struct {
	ID                  string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	UserID              string    `json:"user_id"              gorm:"type:varchar(64);index"`
	BeneficiaryID       string    `json:"beneficiary_id"       gorm:"type:char(36);not null;index"`
	PlanName            string    `json:"plan_name"            gorm:"type:varchar(128);not null"`
	ServiceType         string    `json:"service_type"         gorm:"type:varchar(32)"`
	IncludeClinical     bool      `json:"include_clinical"`
	IncludeSpecialists  bool      `json:"include_specialists"`
	IncludePsychology   bool      `json:"include_psychology"`
	IncludeNutrition    bool      `json:"include_nutrition"`
	MemberCount         int       `json:"member_count"         gorm:"not null;default:1"`
	DiscountPercentage  float64   `json:"discount_percentage"`
	BasePrice           float64   `json:"base_price"`
	TotalPrice          float64   `json:"total_price"`
	AsaasCustomerID     string    `json:"asaas_customer_id"    gorm:"type:varchar(64)"`
	AsaasSubscriptionID *string   `json:"asaas_subscription_id,omitempty" gorm:"type:varchar(64);index"`
	PaymentMethod       string    `json:"payment_method"       gorm:"type:varchar(16)"`
	BillingCycle        string    `json:"billing_cycle"        gorm:"type:varchar(16);default:'monthly'"`
	Status              string    `json:"status"               gorm:"type:varchar(16);not null;default:'pending'"`
	NextBillingDate     string    `json:"next_billing_date,omitempty" gorm:"type:varchar(10)"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for SubscriptionPlan.
func (SubscriptionPlan) TableName() string { return "subscription_plans" }

// PaymentLog records a payment lifecycle event reported by the payment provider.
type PaymentLog struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	BeneficiaryUUID string         `json:"beneficiary_uuid" gorm:"type:char(36);not null;index"`
	PaymentID       string         `json:"payment_id"       gorm:"type:varchar(64);index"`
	SubscriptionID  string         `json:"subscription_id,omitempty" gorm:"type:varchar(64)"`
	Value           float64        `json:"value"`
	Status          string         `json:"status"           gorm:"type:varchar(16);not null"`
	BillingType     string         `json:"billing_type,omitempty" gorm:"type:varchar(16)"`
	DueDate         string         `json:"due_date,omitempty" gorm:"type:varchar(10)"`
	PaymentDate     *string        `json:"payment_date,omitempty" gorm:"type:varchar(32)"`
	InvoiceURL      string         `json:"invoice_url,omitempty" gorm:"type:text"`
	BankSlipURL     string         `json:"bank_slip_url,omitempty" gorm:"type:text"`
	Metadata        datatypes.JSON `json:"metadata" swaggertype:"object"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TableName returns the database table name for PaymentLog.
func (PaymentLog) TableName() string { return "payment_logs" }

// AsaasWebhook is the audit row written for every payment-provider webhook
// before it is processed.
type AsaasWebhook struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	Event          string         `json:"event"           gorm:"type:varchar(64);not null;index:idx_webhooks_payment_event,priority:2"`
	PaymentID      string         `json:"payment_id"      gorm:"type:varchar(64);index:idx_webhooks_payment_event,priority:1"`
	SubscriptionID string         `json:"subscription_id" gorm:"type:varchar(64)"`
	CustomerID     string         `json:"customer_id"     gorm:"type:varchar(64)"`
	Payload        datatypes.JSON `json:"payload" swaggertype:"object"`
	Processed      bool           `json:"processed"       gorm:"not null;default:false"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName returns the database table name for AsaasWebhook.
func (AsaasWebhook) TableName() string { return "asaas_webhooks" }
