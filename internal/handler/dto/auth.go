package dto

import (
	"time"

	"github.com/timecapsule/timecapsule/internal/auth"
	"github.com/timecapsule/timecapsule/internal/model"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is a user without credentials.
type UserResponse struct {
	ID        string    `json:"id"`
	Nome      string    `json:"nome"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ToUserResponse converts a user.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Nome:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// ToTokenResponse converts an issued token; ExpiresIn is in seconds from now.
func ToTokenResponse(t auth.Token, now time.Time) TokenResponse {
	expiresIn := int64(t.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{
		AccessToken: t.Value,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	}
}
