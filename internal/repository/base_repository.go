package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"partygame/internal/storage"
)

type baseRepository struct {
	db *storage.PostgresDB
}

func newBaseRepository(db *storage.PostgresDB) *baseRepository {
	return &baseRepository{db: db}
}

func (r *baseRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *baseRepository) create(ctx context.Context, model interface{}) error {
	return translate(r.conn(ctx).Create(model).Error)
}

// mustAffect 將未更新任何資料列視為 ErrNotFound
func mustAffect(tx *gorm.DB) error {
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
