package repo

import (
	"context"
	"errors"
	"time"

	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"gorm.io/gorm"
)

type DiaryRepo interface {
	Get(ctx context.Context, id uint) (*model.Diary, error)
	UpdateAnalysis(ctx context.Context, id uint, snapshot string, at time.Time) error
}

type diaryRepo struct{ db *gorm.DB }

func NewDiaryRepo(db *gorm.DB) DiaryRepo {
	return &diaryRepo{db: db}
}

func (r *diaryRepo) Get(ctx context.Context, id uint) (*model.Diary, error) {
	var d model.Diary
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrDiaryNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *diaryRepo) UpdateAnalysis(ctx context.Context, id uint, snapshot string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Diary{}).Where("id = ?", id).
		Updates(map[string]any{"emotion_analysis": snapshot, "analyzed_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrDiaryNotFound
	}
	return nil
}

type UserRepo interface {
	Get(ctx context.Context, id uint) (*model.User, error)
}

type userRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) UserRepo {
	return &userRepo{db: db}
}

func (r *userRepo) Get(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
