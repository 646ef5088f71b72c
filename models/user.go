package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"gorm.io/gorm"
)

// User is an authenticated actor. Every mutating operation stamps the
// acting user's id as CreatedBy/ApprovedBy.
type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Username     string    `gorm:"size:100;not null;uniqueIndex" json:"username" binding:"required"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:50;not null;default:'staff'" json:"role"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = "staff"
	}
	user := User{
		Username:     input.Username,
		Name:         input.Name,
		PasswordHash: string(hashed),
		Role:         role,
		IsActive:     utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate checks credentials and issues a signed token.
func Authenticate(ctx context.Context, username string, password string) (string, *User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil, fmt.Errorf("user %s: %w", username, utils.ErrorRecordNotFound)
		}
		return "", nil, err
	}
	if user.IsActive != nil && !*user.IsActive {
		return "", nil, fmt.Errorf("user %s is inactive: %w", username, utils.ErrorValidation)
	}
	if err := utils.ComparePassword(user.PasswordHash, password); err != nil {
		return "", nil, fmt.Errorf("wrong credentials: %w", utils.ErrorValidation)
	}
	token, err := utils.JwtGenerate(user.ID, user.Name, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}
