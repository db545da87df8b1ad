package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrForbidden     = errors.New("forbidden")

	// Ledger errors
	ErrMessageNotFound   = errors.New("message not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrChatNotFound      = errors.New("chat not found")
	ErrMessageDeleted    = errors.New("message already deleted")

	// Upload errors
	ErrUploadNotFound  = errors.New("upload not found")
	ErrUploadFinished  = errors.New("upload already finished")
	ErrUploadCancelled = errors.New("upload cancelled")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)
