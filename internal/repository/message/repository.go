package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/aniladanir/webhook-inbox/internal/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, msg *domain.Message) error
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Message, int64, error)
	Stats(ctx context.Context) (*domain.Stats, error)
	Ping(ctx context.Context) error
}

type repo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) Repository {
	return &repo{db: db}
}

// Insert stores a new message. The message_id primary key is the only
// dedup mechanism: a conflicting insert is reported as
// domain.ErrDuplicateMessage, so two concurrent deliveries of the same
// message race at the storage layer and exactly one wins.
func (r *repo) Insert(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateMessage
		}
		return err
	}
	return nil
}

// List applies the conjunctive filter, counts the full match set and
// returns one page ordered by (ts, message_id).
func (r *repo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Message{})

	if filter.From != "" {
		query = query.Where("from_msisdn = ?", filter.From)
	}
	if filter.Since != "" {
		query = query.Where("ts >= ?", filter.Since)
	}
	if filter.Query != "" {
		query = query.Where("LOWER(text) LIKE ?", "%"+strings.ToLower(filter.Query)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []domain.Message
	err := query.Order("ts ASC, message_id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// Stats aggregates the whole table. Per-sender counts are capped at the
// ten largest, ordered by count descending with the sender string as a
// deterministic tie-break.
func (r *repo) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := new(domain.Stats)
	db := r.db.WithContext(ctx)

	if err := db.Model(&domain.Message{}).Count(&stats.TotalMessages).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&domain.Message{}).
		Distinct("from_msisdn").
		Count(&stats.SendersCount).Error; err != nil {
		return nil, err
	}

	stats.MessagesPerSender = make([]domain.SenderCount, 0, 10)
	if err := db.Model(&domain.Message{}).
		Select("from_msisdn, COUNT(*) AS count").
		Group("from_msisdn").
		Order("count DESC, from_msisdn ASC").
		Limit(10).
		Scan(&stats.MessagesPerSender).Error; err != nil {
		return nil, err
	}

	var bounds struct {
		FirstTS *string `gorm:"column:first_ts"`
		LastTS  *string `gorm:"column:last_ts"`
	}
	if err := db.Model(&domain.Message{}).
		Select("MIN(ts) AS first_ts, MAX(ts) AS last_ts").
		Scan(&bounds).Error; err != nil {
		return nil, err
	}
	stats.FirstMessageTS = bounds.FirstTS
	stats.LastMessageTS = bounds.LastTS

	return stats, nil
}

// Ping reports whether the underlying database is reachable.
func (r *repo) Ping(ctx context.Context) error {
	sqlDb, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.PingContext(ctx)
}
