package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"gorm.io/gorm"
)

type SessionRepo interface {
	Create(ctx context.Context, s *model.Session) error
	GetByHandle(ctx context.Context, handle uuid.UUID) (*model.Session, error)
	UpdateTitle(ctx context.Context, id uint, title string, auto bool) error
	UpdateEmotion(ctx context.Context, id uint, snapshot string, at time.Time) (bool, error)
	MarkEnded(ctx context.Context, id uint, at time.Time, mood *int) error
	DeleteWithMessages(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID uint, offset, limit int) ([]model.Session, int64, error)

	CreateMessage(ctx context.Context, msg *model.Message) error
	CountMessages(ctx context.Context, sessionID uint) (int64, error)
	ListRecentMessages(ctx context.Context, sessionID uint, limit int) ([]model.Message, error)
}

type sessionRepo struct{ db *gorm.DB }

func NewSessionRepo(db *gorm.DB) SessionRepo {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) GetByHandle(ctx context.Context, handle uuid.UUID) (*model.Session, error) {
	var s model.Session
	if err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) UpdateTitle(ctx context.Context, id uint, title string, auto bool) error {
	return r.update(ctx, id, map[string]any{"session_title": title, "auto_title": auto})
}

// UpdateEmotion stores snapshot unless the session already holds one taken
// at a later time. It reports whether the snapshot was written.
func (r *sessionRepo) UpdateEmotion(ctx context.Context, id uint, snapshot string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND (last_emotion_updated_at IS NULL OR last_emotion_updated_at <= ?)", id, at).
		Updates(map[string]any{
			"last_emotion_analysis":   snapshot,
			"last_emotion_updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, errs.ErrSessionNotFound
	}
	return false, nil
}

func (r *sessionRepo) MarkEnded(ctx context.Context, id uint, at time.Time, mood *int) error {
	fields := map[string]any{"ended_at": at}
	if mood != nil {
		fields["mood_rating"] = *mood
	}
	return r.update(ctx, id, fields)
}

// DeleteWithMessages removes the session and its messages together or not at all.
func (r *sessionRepo) DeleteWithMessages(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Session{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrSessionNotFound
		}
		return nil
	})
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID uint, offset, limit int) ([]model.Session, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Session{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []model.Session
	err := q.Order("started_at DESC, id DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

func (r *sessionRepo) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *sessionRepo) CountMessages(ctx context.Context, sessionID uint) (int64, error) {
	var n int64
	return n, r.db.WithContext(ctx).Model(&model.Message{}).Where("session_id = ?", sessionID).Count(&n).Error
}

// ListRecentMessages returns the newest limit messages in chronological order.
func (r *sessionRepo) ListRecentMessages(ctx context.Context, sessionID uint, limit int) ([]model.Message, error) {
	var items []model.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (r *sessionRepo) update(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}
