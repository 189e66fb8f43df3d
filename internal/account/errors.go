package account

import "errors"

var (
	ErrEmailInUse       = errors.New("email already in use")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordTooLong  = errors.New("password too long")
)
