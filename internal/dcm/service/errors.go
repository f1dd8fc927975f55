package service

import (
	"errors"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrCapacityExceeded  = errors.New("maximum number of users reached")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrInvalidRequest    = errors.New("invalid request")

	ErrUnknownMode     = domain.ErrUnknownMode
	ErrInvalidSettings = domain.ErrInvalidSettings
)
