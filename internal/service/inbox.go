package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/aniladanir/webhook-inbox/internal/cache"
	"github.com/aniladanir/webhook-inbox/internal/domain"
	messageRepo "github.com/aniladanir/webhook-inbox/internal/repository/message"
	"github.com/aniladanir/webhook-inbox/internal/signature"
	"github.com/go-playground/validator/v10"
)

const (
	statsCacheKey = "stats:summary"

	defaultLimit = 50
	maxLimit     = 500
)

var msisdnPattern = regexp.MustCompile(`^\+\d+$`)

// ValidationError carries per-field messages for a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload validation failed: %d invalid field(s)", len(e.Fields))
}

type Inbox interface {
	Ingest(ctx context.Context, body []byte, providedSignature string) (*domain.IngestResult, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.ListResult, error)
	Stats(ctx context.Context) (*domain.Stats, error)
	Ready(ctx context.Context) error
}

type service struct {
	messageRepo messageRepo.Repository
	cache       cache.Cache
	logger      *slog.Logger
	validate    *validator.Validate
	secret      string
	statsTTL    time.Duration
}

func NewInboxService(messageRepo messageRepo.Repository, statsCache cache.Cache, logger *slog.Logger, secret string, statsTTL time.Duration) (Inbox, error) {
	if secret == "" {
		return nil, errors.New("webhook secret must not be empty")
	}

	return &service{
		messageRepo: messageRepo,
		cache:       statsCache,
		logger:      logger,
		validate:    newPayloadValidator(),
		secret:      secret,
		statsTTL:    statsTTL,
	}, nil
}

// Ingest runs the delivery pipeline: verify signature over the raw body,
// decode and validate the payload, then insert. A lost insert race on
// message_id classifies as a duplicate, which is a success.
//
// The raw bytes must be the exact bytes received on the wire;
// re-serializing a parsed payload would break verification.
func (s *service) Ingest(ctx context.Context, body []byte, providedSignature string) (*domain.IngestResult, error) {
	if err := signature.Verify(s.secret, body, providedSignature); err != nil {
		return nil, err
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"body": "must be a valid json object"}}
	}
	if err := s.validate.Struct(&payload); err != nil {
		return nil, asValidationError(err)
	}

	msg := &domain.Message{
		MessageID: payload.MessageID,
		From:      payload.From,
		To:        payload.To,
		TS:        payload.TS,
		Text:      payload.Text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	err := s.messageRepo.Insert(ctx, msg)
	switch {
	case err == nil:
		return &domain.IngestResult{MessageID: msg.MessageID, Outcome: domain.OutcomeCreated}, nil
	case errors.Is(err, domain.ErrDuplicateMessage):
		return &domain.IngestResult{MessageID: msg.MessageID, Outcome: domain.OutcomeDuplicate, Duplicate: true}, nil
	default:
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
}

// List returns one page of messages with the pre-pagination total.
func (s *service) List(ctx context.Context, filter domain.ListFilter) (*domain.ListResult, error) {
	filter = clampPage(filter)

	messages, total, err := s.messageRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	if messages == nil {
		messages = []domain.Message{}
	}

	return &domain.ListResult{
		Data:   messages,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Stats returns the store-wide aggregate, served from cache when a cache
// is configured and the cached copy is fresh. Cache failures degrade to a
// direct read.
func (s *service) Stats(ctx context.Context) (*domain.Stats, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, statsCacheKey); err == nil {
			cached := new(domain.Stats)
			if err := json.Unmarshal([]byte(raw), cached); err == nil {
				return cached, nil
			}
		}
	}

	stats, err := s.messageRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, string(encoded), s.statsTTL); err != nil {
				s.logger.Warn("failed to cache stats", "error", err.Error())
			}
		}
	}

	return stats, nil
}

// Ready reports whether the storage backend is reachable.
func (s *service) Ready(ctx context.Context) error {
	return s.messageRepo.Ping(ctx)
}

func clampPage(filter domain.ListFilter) domain.ListFilter {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their wire names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// MSISDN: plus sign followed by digits only
	_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnPattern.MatchString(fl.Field().String())
	})

	return v
}

func asValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: map[string]string{"body": err.Error()}}
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "msisdn":
			fields[fe.Field()] = "must be a plus sign followed by digits"
		case "max":
			fields[fe.Field()] = fmt.Sprintf("must be at most %s characters", fe.Param())
		default:
			fields[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return &ValidationError{Fields: fields}
}
