package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the delivery lifecycle state of a notification.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusRetrying  Status = "RETRYING"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusFailed, StatusRetrying:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Priority represents the message priority level. Priority orders retry
// candidate selection, it never introduces a scheduling delay.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank maps a priority to its ordering weight, highest tier first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Field length limits (in characters).
const (
	MaxRecipientLen = 255
	MaxSubjectLen   = 255
	MaxTemplateLen  = 255
)

// DefaultMaxRetries is the retry budget applied when a request does not set one.
const DefaultMaxRetries = 3

// Notification is the durable record of one notification and its delivery
// lifecycle. The dispatcher creates it PENDING and mutates it only through
// the repository's mark/increment operations; records are never deleted here.
type Notification struct {
	ID           string   `json:"id"`
	Channel      Channel  `json:"channel"`
	Recipient    string   `json:"recipient"`
	Subject      *string  `json:"subject,omitempty"`
	Message      string   `json:"message"`
	Status       Status   `json:"status"`
	Priority     Priority `json:"priority"`
	RetryCount   int      `json:"retryCount"`
	MaxRetries   int      `json:"maxRetries"`
	TemplateName *string  `json:"templateName,omitempty"`
	// ContextData is the JSON-serialized template context, stored opaquely.
	ContextData *string `json:"contextData,omitempty"`

	SentAt       *time.Time `json:"sentAt,omitempty"`
	DeliveredAt  *time.Time `json:"deliveredAt,omitempty"`
	FailedAt     *time.Time `json:"failedAt,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`

	// Opaque correlation identifiers to other subsystems; no referential
	// enforcement in this service.
	UserID              *string `json:"userId,omitempty"`
	AlertID             *string `json:"alertId,omitempty"`
	MaintenanceTicketID *string `json:"maintenanceTicketId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *Notification) Validate() error {
	if n.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if len(n.Recipient) > MaxRecipientLen {
		return fmt.Errorf("%w: recipient exceeds %d characters", ErrValidation, MaxRecipientLen)
	}
	if !n.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, n.Channel)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}
	if n.Message == "" && n.TemplateName == nil {
		return fmt.Errorf("%w: message or template name is required", ErrValidation)
	}
	if n.Subject != nil && len(*n.Subject) > MaxSubjectLen {
		return fmt.Errorf("%w: subject exceeds %d characters", ErrValidation, MaxSubjectLen)
	}
	if n.TemplateName != nil && len(*n.TemplateName) > MaxTemplateLen {
		return fmt.Errorf("%w: template name exceeds %d characters", ErrValidation, MaxTemplateLen)
	}
	if n.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0", ErrValidation)
	}
	return nil
}

// RetryEligible reports whether a record may still be picked up by a retry
// pass: PENDING, or FAILED with remaining retry budget.
func (n *Notification) RetryEligible() bool {
	if n.Status == StatusPending {
		return true
	}
	return n.Status == StatusFailed && n.RetryCount < n.MaxRetries
}

// NotificationStats is the aggregate view derived from the record store.
type NotificationStats struct {
	Total     int64
	ByStatus  map[Status]int64
	ByChannel map[Channel]int64
	// RetryRate is the percentage of records with at least one retry attempt.
	RetryRate float64
}
