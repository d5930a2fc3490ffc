package app

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// that login does not reveal which accounts exist.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrInvalidToken       = errors.New("Invalid or expired token")
	ErrForbidden          = errors.New("Insufficient permissions")
	ErrRoleNotAllowed     = errors.New("role not allowed")

	ErrEmailAlreadyExists = errors.New("User with this email already exists")
	ErrLabelExists        = errors.New("Label already exists")
	ErrSweepInProgress    = errors.New("Sweep already in progress")

	ErrUserNotFound         = errors.New("User not found")
	ErrEmailNotFound        = errors.New("Email not found")
	ErrLabelNotFound        = errors.New("Email label not found")
	ErrNotificationNotFound = errors.New("Notification not found")
	ErrMessageNotFound      = errors.New("Message not found")
	ErrAttachmentNotFound   = errors.New("Attachment not found")
	ErrSweepJobNotFound     = errors.New("Sweep job not found")

	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError is a client input problem reported as 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
