package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"echo-planner/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert finds or creates a user by Telegram ID. Re-registration only
// refreshes the display fields; the identifier and creation timestamp
// never change.
func (r *UserRepository) Upsert(ctx context.Context, id int64, username, firstName, lastName string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.First(&user, "id = ?", id).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"username":   username,
			"first_name": firstName,
			"last_name":  lastName,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case err == gorm.ErrRecordNotFound:
		user = model.User{
			ID:        id,
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
			AIEnabled: true,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
