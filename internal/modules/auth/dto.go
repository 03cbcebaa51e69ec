package auth

import (
	"time"

	"safepath/internal/domain"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" validate:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required" validate:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required" validate:"password"`
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type UserPublic struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toUserPublic(u *domain.User) UserPublic {
	return UserPublic{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
	}
}

type ResetRequestResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
