package db

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mindnote/counsel/internal/modules/model"
	"gorm.io/gorm"
)

// Migrate brings the schema up to date. Users and diaries are owned by the
// journaling side of the product; they are created here only when absent so
// that a standalone deployment and the tests have them.
func Migrate(d *gorm.DB) error {
	m := gormigrate.New(d, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_users_diaries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.User{}, &model.Diary{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("diaries", "users")
			},
		},
		{
			ID: "002_analysis_tasks",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.AnalysisTask{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("analysis_tasks")
			},
		},
		{
			ID: "003_consultation",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.Session{}, &model.Message{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("consultation_messages", "consultation_sessions")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
