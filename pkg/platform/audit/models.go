package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Action     string            `json:"action"`
	ActorID    uuid.UUID         `json:"actor_id"`
	ActorEmail string            `json:"actor_email,omitempty"`
	Resource   string            `json:"resource,omitempty"`
	ResourceID string            `json:"resource_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Action   string
	ActorID  uuid.UUID
	Resource string
	Since    time.Time
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ActorID != uuid.Nil && e.ActorID != f.ActorID {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

type AuditEvent string

const (
	// Auth events
	EventLoginSucceeded  AuditEvent = "login_succeeded"
	EventLoginFailed     AuditEvent = "login_failed"
	EventAccountLocked   AuditEvent = "account_locked"
	EventOTPRequested    AuditEvent = "otp_requested"
	EventOTPVerified     AuditEvent = "otp_verified"
	EventPasswordReset   AuditEvent = "password_reset"
	EventPasswordChanged AuditEvent = "password_changed"
	EventLoggedOut       AuditEvent = "logged_out"
	EventUserCreated     AuditEvent = "user_created"
	EventUserUpdated     AuditEvent = "user_updated"
	EventUserDeactivated AuditEvent = "user_deactivated"
	EventUserReactivated AuditEvent = "user_reactivated"
	EventUserDeleted     AuditEvent = "user_deleted"

	// Content events
	EventNewsCreated        AuditEvent = "news_created"
	EventNewsUpdated        AuditEvent = "news_updated"
	EventNewsPublished      AuditEvent = "news_published"
	EventNewsUnpublished    AuditEvent = "news_unpublished"
	EventNewsDeleted        AuditEvent = "news_deleted"
	EventPolicyCreated      AuditEvent = "policy_created"
	EventPolicyUpdated      AuditEvent = "policy_updated"
	EventPolicyPublished    AuditEvent = "policy_published"
	EventPolicyArchived     AuditEvent = "policy_archived"
	EventPolicyDeleted      AuditEvent = "policy_deleted"
	EventPolicyAcknowledged AuditEvent = "policy_acknowledged"

	// Directory events
	EventEmployeeCreated   AuditEvent = "employee_created"
	EventEmployeeUpdated   AuditEvent = "employee_updated"
	EventEmployeeDeleted   AuditEvent = "employee_deleted"
	EventDirectoryImported AuditEvent = "directory_imported"

	// Safety events
	EventAlertCreated     AuditEvent = "alert_created"
	EventAlertUpdated     AuditEvent = "alert_updated"
	EventAlertDeactivated AuditEvent = "alert_deactivated"
	EventAlertDeleted     AuditEvent = "alert_deleted"
	EventAlertNotified    AuditEvent = "alert_notified"
	EventTalkCreated      AuditEvent = "talk_created"
	EventTalkUpdated      AuditEvent = "talk_updated"
	EventTalkDeleted      AuditEvent = "talk_deleted"

	// App launcher events
	EventAppLinkCreated    AuditEvent = "app_link_created"
	EventAppLinkUpdated    AuditEvent = "app_link_updated"
	EventAppLinkDeleted    AuditEvent = "app_link_deleted"
	EventAppLinksReordered AuditEvent = "app_links_reordered"

	// Chatbot events
	EventFAQCreated AuditEvent = "faq_created"
	EventFAQUpdated AuditEvent = "faq_updated"
	EventFAQDeleted AuditEvent = "faq_deleted"

	// Upload events
	EventFileUploaded AuditEvent = "file_uploaded"
)
