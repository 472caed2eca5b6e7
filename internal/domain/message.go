package domain

import (
	"errors"
)

// IngestOutcome labels the terminal state of a webhook delivery attempt.
type IngestOutcome string

const (
	OutcomeInvalidSignature IngestOutcome = "invalid_signature"
	OutcomeCreated          IngestOutcome = "created"
	OutcomeDuplicate        IngestOutcome = "duplicate"
)

// ErrDuplicateMessage is returned by the repository when an insert loses
// against an already stored message_id. Callers treat it as a successful
// idempotent no-op, not a failure.
var ErrDuplicateMessage = errors.New("message already exists")

// Message is the stored form of an accepted webhook delivery. Records are
// immutable once created; there is no update or delete path.
//
// TS is the caller-supplied timestamp kept as an opaque string: ordering
// and range filters are lexicographic, which matches chronological order
// only for fixed-width formats such as RFC 3339.
type Message struct {
	MessageID string  `gorm:"column:message_id;primaryKey" json:"message_id"`
	From      string  `gorm:"column:from_msisdn;type:varchar(32);not null" json:"from"`
	To        string  `gorm:"column:to_msisdn;type:varchar(32);not null" json:"to"`
	TS        string  `gorm:"column:ts;not null;index" json:"ts"`
	Text      *string `gorm:"column:text;type:varchar(4096)" json:"text"`
	CreatedAt string  `gorm:"column:created_at;not null" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// WebhookPayload is the inbound wire shape of a delivery.
// @Description Inbound webhook message payload
type WebhookPayload struct {
	MessageID string  `json:"message_id" validate:"required" example:"m1"`
	From      string  `json:"from" validate:"required,msisdn" example:"+15551234567"`
	To        string  `json:"to" validate:"required,msisdn" example:"+15557654321"`
	TS        string  `json:"ts" validate:"required" example:"2024-01-01T00:00:00Z"`
	Text      *string `json:"text" validate:"omitempty,max=4096"`
}

// ListFilter is the conjunctive filter applied by the message listing.
// Zero-valued fields are not applied.
type ListFilter struct {
	From  string
	Since string
	Query string

	Limit  int
	Offset int
}

// ListResult is the page returned by /messages.
type ListResult struct {
	Data   []Message `json:"data"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// SenderCount is one entry of the per-sender aggregate.
type SenderCount struct {
	From  string `gorm:"column:from_msisdn" json:"from"`
	Count int64  `gorm:"column:count" json:"count"`
}

// Stats is the aggregate returned by /stats. First/Last are null while the
// store is empty.
type Stats struct {
	TotalMessages     int64         `json:"total_messages"`
	SendersCount      int64         `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *string       `json:"first_message_ts"`
	LastMessageTS     *string       `json:"last_message_ts"`
}

// IngestResult describes how a verified, valid delivery was classified.
type IngestResult struct {
	MessageID string
	Outcome   IngestOutcome
	Duplicate bool
}
