package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrOutOfRange       = errors.New("index out of range")

	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrFarmNotFound         = fmt.Errorf("farm %w", ErrNotFound)
	ErrRequestNotFound      = fmt.Errorf("request %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrResponseOutOfRange   = fmt.Errorf("response %w", ErrOutOfRange)

	ErrRequestClosed  = errors.New("request closed")
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidDraft   = errors.New("invalid request draft")
	ErrInvalidProfile = errors.New("invalid profile")
	ErrEmptyMessage   = errors.New("empty message")
	ErrSelfMessage    = errors.New("cannot message yourself")
)
