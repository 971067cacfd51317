package auth

import "errors"

var (
	ErrNotFound           = errors.New("admin not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOrExpired   = errors.New("invalid or expired verification code")

	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)
