package domain

import "strings"

// ServiceType selects which upstream consultation endpoint serves a request.
type ServiceType string

const (
	ServiceDoctor       ServiceType = "doctor"
	ServiceSpecialist   ServiceType = "specialist"
	ServicePsychologist ServiceType = "psychologist"
	ServiceNutritionist ServiceType = "nutritionist"
)

// ParseServiceType normalizes client input. Upstream-style names
// ("psychology", "nutrition", "general_medicine") map to their service type.
func ParseServiceType(s string) (ServiceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "doctor", "general_medicine", "clinical":
		return ServiceDoctor, true
	case "specialist":
		return ServiceSpecialist, true
	case "psychologist", "psychology":
		return ServicePsychologist, true
	case "nutritionist", "nutrition":
		return ServiceNutritionist, true
	}
	return "", false
}

// Valid reports whether t is one of the known service types.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceDoctor, ServiceSpecialist, ServicePsychologist, ServiceNutritionist:
		return true
	}
	return false
}

// Priority maps a service type to its queue priority. Unknown values map to 1.
// The value is recorded on the ledger row; nothing reorders by it.
func Priority(t ServiceType) int {
	switch t {
	case ServiceDoctor:
		return 10
	case ServicePsychologist:
		return 7
	case ServiceSpecialist:
		return 5
	case ServiceNutritionist:
		return 3
	default:
		return 1
	}
}

// QueueStatus is the state of a ConsultationRequest.
type QueueStatus string

const (
	QueueWaiting    QueueStatus = "waiting"
	QueueProcessing QueueStatus = "processing"
	QueueAssigned   QueueStatus = "assigned"
	QueueCancelled  QueueStatus = "cancelled"
)

// LogStatus is the state of a ConsultationLog.
type LogStatus string

const (
	LogActive    LogStatus = "active"
	LogCancelled LogStatus = "cancelled"
	LogFailed    LogStatus = "failed"
)

// SessionStatus is the state of an ActiveSession.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
)

// NotificationType classifies a SystemNotification for display.
type NotificationType string

const (
	NotificationInfo             NotificationType = "info"
	NotificationSuccess          NotificationType = "success"
	NotificationWarning          NotificationType = "warning"
	NotificationError            NotificationType = "error"
	NotificationPaymentConfirmed NotificationType = "payment_confirmed"
	NotificationPaymentOverdue   NotificationType = "payment_overdue"
	NotificationPaymentRefunded  NotificationType = "payment_refunded"
)

// Subscription statuses mirrored from the payment provider.
const (
	SubscriptionActive   = "ACTIVE"
	SubscriptionOverdue  = "OVERDUE"
	SubscriptionRefunded = "REFUNDED"
	SubscriptionCanceled = "CANCELED"
	SubscriptionExpired  = "EXPIRED"
)
