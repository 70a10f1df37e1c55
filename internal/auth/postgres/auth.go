package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/paypal-activation/internal"
	accountDatamodel "github.com/frahmantamala/paypal-activation/internal/core/datamodel/account"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (string, string, error) {
	var row struct {
		ID           string
		PasswordHash string
	}
	err := r.db.WithContext(ctx).
		Model(&accountDatamodel.Account{}).
		Select("id", "password_hash").
		Where("email = ?", email).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", internal.ErrAccountNotFound
		}
		return "", "", err
	}
	return row.ID, row.PasswordHash, nil
}

func (r *Repository) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&accountDatamodel.Account{}).
		Where("id = ?", accountID).
		Count(&count).Error
	return count > 0, err
}
